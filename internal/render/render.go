package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// 渲染后的页面可能很大，设个读取上限
const maxResponseBytes = 16 << 20

// Client 调用浏览器渲染 sidecar，取回执行过 JS 之后的页面 HTML。
// sidecar 见 cmd/browser-render。
type Client struct {
	endpoint string
	http     *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type renderRequest struct {
	URL string `json:"url"`
}

type renderResponse struct {
	OK    bool   `json:"ok"`
	HTML  string `json:"html,omitempty"`
	Error string `json:"error,omitempty"`
}

// Render 请求 sidecar 渲染一个页面并返回完整 HTML
func (c *Client) Render(ctx context.Context, pageURL string) ([]byte, error) {
	payload, err := json.Marshal(renderRequest{URL: pageURL})
	if err != nil {
		return nil, fmt.Errorf("render: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("render: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render: post %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("render: endpoint returned status %d", resp.StatusCode)
	}

	var out renderResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("render: decode response: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("render: %s", out.Error)
	}
	return []byte(out.HTML), nil
}
