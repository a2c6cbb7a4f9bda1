package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/neillidocker/aws-announcements-scraper/internal/announce"
	"github.com/neillidocker/aws-announcements-scraper/internal/collector"
)

// previewLimit 摘要最多保留的字符数，与存储列宽一致
const previewLimit = 600

// 发布日期按东八区计算，站点面向中国区域
var locEast8 *time.Location

func init() {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.FixedZone("CST", 8*3600)
	}
	locEast8 = loc
}

// ProcessedAnnouncement 是写入存储层前的统一结构
type ProcessedAnnouncement struct {
	ID            string
	Source        string
	Title         string
	URL           string
	Preview       string
	Body          string
	Links         []announce.EmbeddedLink
	PublishedAt   time.Time
	PublishedDate string
	ExtractedAt   time.Time
	RawData       map[string]any
}

// SimpleProcessor 做最基础的数据清洗与 ID 生成
type SimpleProcessor struct{}

func NewSimpleProcessor() *SimpleProcessor {
	return &SimpleProcessor{}
}

// Process 按 URL 去重并补齐摘要、发布日期等派生字段。
// source 标记这一批条目来自哪个采集源。
func (p *SimpleProcessor) Process(source string, items []collector.Item) []ProcessedAnnouncement {
	out := make([]ProcessedAnnouncement, 0, len(items))
	seen := make(map[string]struct{})

	for _, it := range items {
		id := hashURL(it.URL)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		out = append(out, ProcessedAnnouncement{
			ID:            id,
			Source:        source,
			Title:         strings.TrimSpace(it.Title),
			URL:           it.URL,
			Preview:       preview(it),
			Body:          it.Body,
			Links:         it.Links,
			PublishedAt:   it.PublishedAt,
			PublishedDate: publishedDate(it.PublishedAt),
			ExtractedAt:   it.ExtractedAt,
			RawData:       it.Raw,
		})
	}

	return out
}

// preview 依次用首页摘要、正文截断、标题兜底
func preview(it collector.Item) string {
	if p := strings.TrimSpace(it.Preview); p != "" {
		return truncateRunes(p, previewLimit)
	}
	if b := strings.TrimSpace(it.Body); b != "" {
		return truncateRunes(b, previewLimit)
	}
	return strings.TrimSpace(it.Title)
}

// publishedDate 取东八区的日期部分，零值时间返回空串
func publishedDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(locEast8).Format("2006-01-02")
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "…"
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}
