package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/neillidocker/aws-announcements-scraper/internal/announce"
	"github.com/neillidocker/aws-announcements-scraper/internal/logger"
)

// 单个响应体读取上限，防止异常页面撑爆内存
const maxBodyBytes = 10 << 20

const fallbackUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// HTTPError 非 200 响应
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetch: %s returned status %d", e.URL, e.StatusCode)
}

// Options 客户端参数，零值字段取默认
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	UserAgents []string
}

// Client 带重试与 UA 轮换的抓取客户端。
// 429 用 5s/10s/20s 递进退避，502/503/504 和网络错误用 1s/2s/4s 指数退避（封顶 4s），
// 其它 4xx 直接失败不重试。
type Client struct {
	http       *http.Client
	userAgents []string
	maxRetries int

	baseDelay      time.Duration
	maxDelay       time.Duration
	rateLimitDelay time.Duration
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	agents := opts.UserAgents
	if len(agents) == 0 {
		agents = []string{fallbackUserAgent}
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &Client{
		http:           &http.Client{Timeout: timeout},
		userAgents:     agents,
		maxRetries:     retries,
		baseDelay:      time.Second,
		maxDelay:       4 * time.Second,
		rateLimitDelay: 5 * time.Second,
	}
}

// Get 抓取一个页面并返回响应体，重试耗尽后返回最后一次的错误
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("fetch: build request for %s: %w", rawURL, err))
			}
			req.Header.Set("User-Agent", c.pickUserAgent())
			req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
			req.Header.Set("Accept-Language", "en-US,en;q=0.9,zh-CN;q=0.8")

			resp, err := c.http.Do(req)
			if err != nil {
				return fmt.Errorf("fetch: get %s: %w", rawURL, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				// 读掉残余响应体，让连接可以复用
				_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
				return &HTTPError{StatusCode: resp.StatusCode, URL: rawURL}
			}

			data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			if err != nil {
				return fmt.Errorf("fetch: read body from %s: %w", rawURL, err)
			}
			body = data
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)+1),
		retry.RetryIf(isRetryable),
		retry.DelayType(c.delayFor),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) pickUserAgent() string {
	return c.userAgents[rand.Intn(len(c.userAgents))]
}

// delayFor 按错误类型决定退避时长，n 从 0 开始计
func (c *Client) delayFor(n uint, err error, _ *retry.Config) time.Duration {
	log := logger.S("fetch")

	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		d := time.Duration(1<<n) * c.rateLimitDelay
		log.Warnf("rate limited (429) on %s, waiting %s before retry", httpErr.URL, d)
		return d
	}

	d := time.Duration(1<<n) * c.baseDelay
	if d > c.maxDelay {
		d = c.maxDelay
	}
	log.Warnf("request failed, retrying in %s: %v", d, err)
	return d
}

func isRetryable(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		// 其余状态码（404 之类）重试也没用
		return false
	}
	// 网络抖动类错误都值得再试
	return true
}

// ClassifyError 把抓取错误归类，供失败记录分组
func ClassifyError(err error) announce.FailureKind {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return announce.FailureHTTP
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return announce.FailureNetwork
	}
	return announce.FailureOther
}
