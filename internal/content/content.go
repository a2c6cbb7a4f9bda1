package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/neillidocker/aws-announcements-scraper/internal/announce"
	"github.com/neillidocker/aws-announcements-scraper/internal/config"
	"github.com/neillidocker/aws-announcements-scraper/internal/logger"
)

// ErrParse 页面结构不符合预期，抽不出标题或正文
var ErrParse = errors.New("content: page structure not recognized")

// Getter 拉取页面的最小接口，由 fetch.Client 实现
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Renderer 浏览器渲染兜底，静态抓取解析失败时使用
type Renderer interface {
	Render(ctx context.Context, url string) ([]byte, error)
}

// Extractor 拉取公告详情页并解析出结构化内容
type Extractor struct {
	client   Getter
	renderer Renderer
}

// NewExtractor renderer 传 nil 表示不启用渲染兜底
func NewExtractor(client Getter, renderer Renderer) *Extractor {
	return &Extractor{client: client, renderer: renderer}
}

// Extract 抓取并解析一个公告页面。
// 首页已带日期时沿用首页的日期，页面上再解析不到就用当前时间。
func (e *Extractor) Extract(ctx context.Context, link announce.Link) (announce.Content, error) {
	log := logger.S("content")
	log.Infof("extracting content from: %s", link.URL)

	body, err := e.client.Get(ctx, link.URL)
	if err != nil {
		return announce.Content{}, err
	}

	c, err := ParsePage(body, link.URL, link.PublishedAt)
	if err == nil {
		return c, nil
	}
	if e.renderer == nil {
		return announce.Content{}, err
	}

	// 静态页面解析失败，可能是 JS 渲染的页面，走浏览器兜底
	log.Warnf("static parse failed for %s, trying browser render: %v", link.URL, err)
	rendered, rerr := e.renderer.Render(ctx, link.URL)
	if rerr != nil {
		log.Warnf("browser render failed for %s: %v", link.URL, rerr)
		return announce.Content{}, err
	}
	c, perr := ParsePage(rendered, link.URL, link.PublishedAt)
	if perr != nil {
		return announce.Content{}, err
	}
	log.Infof("extracted content from rendered page: %s", link.URL)
	return c, nil
}

// ParsePage 解析公告详情页 HTML。
// knownDate 非零时直接采用（来自首页数据），否则从页面里找。
func ParsePage(data []byte, pageURL string, knownDate time.Time) (announce.Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return announce.Content{}, fmt.Errorf("content: parse html for %s: %w", pageURL, err)
	}

	title := extractTitle(doc)
	if title == "" {
		return announce.Content{}, fmt.Errorf("%w: no title in %s", ErrParse, pageURL)
	}

	publishedAt := knownDate
	if publishedAt.IsZero() {
		publishedAt = extractPublicationDate(doc)
		if publishedAt.IsZero() {
			logger.S("content").Warnf("no publication date found in %s, using current time", pageURL)
			publishedAt = config.Now()
		}
	}

	body := extractContentText(doc)
	if body == "" {
		return announce.Content{}, fmt.Errorf("%w: no content text in %s", ErrParse, pageURL)
	}

	links := extractEmbeddedLinks(doc, pageURL)

	return announce.Content{
		Title:       title,
		URL:         pageURL,
		PublishedAt: publishedAt,
		Body:        body,
		Links:       links,
		ExtractedAt: config.Now(),
	}, nil
}

var titleSelectors = []string{
	"h1",
	".announcement-title",
	".post-title",
	".article-title",
	"title",
}

// extractTitle 按选择器优先级取第一个足够长的标题
func extractTitle(doc *goquery.Document) string {
	for _, sel := range titleSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		title := strings.TrimSpace(el.Text())
		if len([]rune(title)) > 5 {
			return title
		}
	}
	return ""
}

var dateSelectors = []string{
	".publication-date",
	".post-date",
	".article-date",
	".date",
	"time[datetime]",
	".published",
}

// extractPublicationDate 依次尝试结构化数据、常见选择器、正文里的日期
func extractPublicationDate(doc *goquery.Document) time.Time {
	if t := extractStructuredDate(doc); !t.IsZero() {
		return t
	}

	for _, sel := range dateSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if attr := el.AttrOr("datetime", ""); attr != "" {
			if t := parseDateString(attr); !t.IsZero() {
				return t
			}
		}
		if t := parseDateString(strings.TrimSpace(el.Text())); !t.IsZero() {
			return t
		}
	}

	return extractDateFromText(doc)
}

// extractStructuredDate 从 JSON-LD 和 <time datetime> 里找日期
func extractStructuredDate(doc *goquery.Document) time.Time {
	var found time.Time

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data map[string]any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		for _, field := range []string{"datePublished", "dateCreated", "dateModified"} {
			if v, ok := data[field].(string); ok {
				if t := parseDateString(v); !t.IsZero() {
					found = t
					return false
				}
			}
		}
		return true
	})
	if !found.IsZero() {
		return found
	}

	doc.Find("time[datetime]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := parseDateString(s.AttrOr("datetime", "")); !t.IsZero() {
			found = t
			return false
		}
		return true
	})
	return found
}

var textDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	regexp.MustCompile(`\d{2}/\d{2}/\d{4}`),
	regexp.MustCompile(`\d{2}-\d{2}-\d{4}`),
	regexp.MustCompile(`(?i)(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}`),
}

func extractDateFromText(doc *goquery.Document) time.Time {
	text := doc.Text()
	for _, pattern := range textDatePatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			if t := parseDateString(match); !t.IsZero() {
				return t
			}
		}
	}
	return time.Time{}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"01/02/2006",
	"01-02-2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

func parseDateString(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

var contentSelectors = []string{
	"article",
	".announcement-content",
	".post-content",
	".article-content",
	".content",
	"main",
	"#content",
	".main-content",
}

func findContentArea(doc *goquery.Document) *goquery.Selection {
	for _, sel := range contentSelectors {
		area := doc.Find(sel).First()
		if area.Length() > 0 {
			return area
		}
	}
	return findLargestTextBlock(doc)
}

// findLargestTextBlock 兜底：取文本最多的块级容器
func findLargestTextBlock(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	maxLen := 0

	doc.Find("div, section, article").Each(func(_ int, s *goquery.Selection) {
		if l := len(strings.TrimSpace(s.Text())); l > maxLen {
			maxLen = l
			best = s
		}
	})
	if best != nil && maxLen > 100 {
		return best
	}
	return nil
}

// extractContentText 抽取正文，太短视为失败
func extractContentText(doc *goquery.Document) string {
	area := findContentArea(doc)
	if area == nil {
		return ""
	}
	text := formattedText(area)
	if len([]rune(text)) > 50 {
		return text
	}
	return ""
}

var (
	excessNewlines = regexp.MustCompile(`\n\s*\n\s*\n+`)
	spaceRuns      = regexp.MustCompile(`[ \t]+`)
)

// formattedText 提取文本并保留基本段落结构：
// p/div/br 换行，标题前空一行，其余标签只取文本。
func formattedText(sel *goquery.Selection) string {
	// 先干掉脚本和样式
	sel.Find("script, style").Remove()

	var b strings.Builder
	writeFormatted(&b, sel)

	text := excessNewlines.ReplaceAllString(b.String(), "\n\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func writeFormatted(b *strings.Builder, sel *goquery.Selection) {
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		name := goquery.NodeName(child)
		if name == "#text" {
			b.WriteString(child.Text())
			return
		}
		switch name {
		case "p", "div", "br":
			b.WriteString("\n")
		case "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteString("\n\n")
		}
		writeFormatted(b, child)
	})
}

// extractEmbeddedLinks 收集正文区域里的链接，记下周边上下文
func extractEmbeddedLinks(doc *goquery.Document, baseURL string) []announce.EmbeddedLink {
	area := findContentArea(doc)
	var scope *goquery.Selection
	if area != nil {
		scope = area
	} else {
		logger.S("content").Warn("could not identify main content area, searching entire document")
		scope = doc.Selection
	}

	var links []announce.EmbeddedLink
	scope.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		text := strings.TrimSpace(a.Text())
		if text == "" {
			text = href
		}

		links = append(links, announce.EmbeddedLink{
			Text:    text,
			URL:     resolveURL(baseURL, href),
			Context: linkContext(a),
		})
	})

	logger.S("content").Infof("extracted %d embedded links", len(links))
	return links
}

// linkContext 取父元素文本作为链接上下文，太长截断
func linkContext(a *goquery.Selection) string {
	parent := a.Parent()
	if parent.Length() == 0 {
		return ""
	}
	text := strings.TrimSpace(parent.Text())
	r := []rune(text)
	if len(r) > 200 {
		return string(r[:200]) + "..."
	}
	return text
}

func resolveURL(baseURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
