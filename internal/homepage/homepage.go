package homepage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/neillidocker/aws-announcements-scraper/internal/announce"
	"github.com/neillidocker/aws-announcements-scraper/internal/logger"
)

// 首页「最新公告」区块的标题文本
const sectionHeading = "Most Recent Announcements from Amazon Web Services"

const itemTitleMarker = `"itemTitle"`

var (
	leadingDatePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)
	htmlTagPattern     = regexp.MustCompile(`<[^>]+>`)
)

// ErrNoSection 表示页面上既没有嵌入 JSON 也找不到公告区块
var ErrNoSection = errors.New("homepage: could not find announcements section")

// Parse 解析首页 HTML，抽取公告链接。
// 新版页面把公告数据嵌在 JSON 里，优先走结构化解析；
// 解析不到再退回区块定位加锚点扫描。
func Parse(data []byte, baseURL string) ([]announce.Link, error) {
	log := logger.S("homepage")
	content := string(data)

	if strings.Contains(content, itemTitleMarker) {
		if links := extractFromJSON(content, baseURL); len(links) > 0 {
			log.Infof("extracted %d links from embedded json", len(links))
			return links, nil
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("homepage: parse html: %w", err)
	}

	section := findSection(doc)
	if section == nil {
		return nil, ErrNoSection
	}

	links := extractAnchors(section, baseURL)
	log.Infof("extracted %d announcement links", len(links))
	return links, nil
}

// extractFromJSON 扫描页面里嵌入的公告 JSON。
// 先按 "itemTitle" 逐个定位最内层对象，没有收获时再找
// {"data":{"items":[...]}} 这种整体结构。
func extractFromJSON(content, baseURL string) []announce.Link {
	var links []announce.Link
	seen := make(map[string]bool)

	add := func(l announce.Link) {
		if !seen[l.URL] {
			seen[l.URL] = true
			links = append(links, l)
		}
	}

	for _, pos := range indexAll(content, itemTitleMarker) {
		obj, ok := enclosingObject(content, pos)
		if !ok {
			continue
		}
		var raw map[string]any
		if err := json.Unmarshal([]byte(obj), &raw); err != nil {
			continue
		}
		if l, ok := parseItem(raw, baseURL); ok {
			add(l)
		}
	}
	if len(links) > 0 {
		return links
	}

	for _, pos := range indexAll(content, `{"data":`) {
		obj, ok := objectAt(content, pos)
		if !ok || !strings.Contains(obj, itemTitleMarker) {
			continue
		}
		for _, item := range itemsFromStructure(obj) {
			if l, ok := parseItem(item, baseURL); ok {
				add(l)
			}
		}
	}
	return links
}

// parseItem 从单个公告对象里取字段，字段名有新旧几套命名
func parseItem(data map[string]any, baseURL string) (announce.Link, bool) {
	fields := data
	if f, ok := data["fields"].(map[string]any); ok {
		fields = f
	}

	title := strings.TrimSpace(firstString(fields, "itemTitle", "title", "heading"))
	if title == "" {
		return announce.Link{}, false
	}
	rawURL := firstString(fields, "itemLink", "url", "linkURL")
	if rawURL == "" {
		return announce.Link{}, false
	}

	link := announce.Link{
		Title: title,
		URL:   resolveURL(baseURL, rawURL),
	}

	if preview := firstString(fields, "itemBody", "body", "subheading"); preview != "" {
		link.Preview = cleanPreview(preview)
	}

	// 形如 "2025-12-06T00:00:00.000+08:00"，只取日期部分
	if ds := firstString(fields, "itemMetadataDate"); ds != "" {
		if m := leadingDatePattern.FindStringSubmatch(ds); m != nil {
			if t, err := time.Parse("2006-01-02", m[1]); err == nil {
				link.PublishedAt = t
			}
		}
	}
	return link, true
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// cleanPreview 去掉 HTML 标签并限制长度
func cleanPreview(s string) string {
	s = strings.TrimSpace(htmlTagPattern.ReplaceAllString(s, ""))
	r := []rune(s)
	if len(r) > 200 {
		return string(r[:200]) + "..."
	}
	return s
}

// enclosingObject 从 pos 向前找最内层的 '{'，再向后配对出完整对象
func enclosingObject(s string, pos int) (string, bool) {
	start := pos
	depth := 0
	for start >= 0 {
		switch s[start] {
		case '}':
			depth++
		case '{':
			if depth == 0 {
				return objectAt(s, start)
			}
			depth--
		}
		start--
	}
	return "", false
}

// objectAt 从 start 处的 '{' 向后配对到对应的 '}'
func objectAt(s string, start int) (string, bool) {
	depth := 0
	for end := start; end < len(s); end++ {
		switch s[end] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : end+1], true
			}
		}
	}
	return "", false
}

func indexAll(s, sub string) []int {
	var idxs []int
	for from := 0; ; {
		i := strings.Index(s[from:], sub)
		if i < 0 {
			break
		}
		idxs = append(idxs, from+i)
		from += i + len(sub)
	}
	return idxs
}

// itemsFromStructure 解析 {"data":{"items":[...]}} 或 {"items":[...]} 结构
func itemsFromStructure(obj string) []map[string]any {
	var data map[string]any
	if err := json.Unmarshal([]byte(obj), &data); err != nil {
		return nil
	}

	container := data
	if d, ok := data["data"].(map[string]any); ok {
		container = d
	}
	rawItems, ok := container["items"].([]any)
	if !ok {
		return nil
	}

	items := make([]map[string]any, 0, len(rawItems))
	for _, it := range rawItems {
		if m, ok := it.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}

// findSection 定位公告区块：先按标题文本向上找容器，
// 再退而求其次找 class 带 news/announcement 字样的容器。
func findSection(doc *goquery.Document) *goquery.Selection {
	var found *goquery.Selection

	doc.Find("h1, h2, h3, h4, h5, h6, p, span, strong").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if !strings.Contains(h.Text(), sectionHeading) {
			return true
		}
		cur := h.Parent()
		for depth := 0; depth < 5 && cur.Length() > 0; depth++ {
			if isContainerTag(cur) && cur.Find("a[href]").Length() > 0 {
				found = cur
				return false
			}
			cur = cur.Parent()
		}
		return true
	})
	if found != nil {
		return found
	}

	doc.Find("div, section, ul").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class := strings.ToLower(s.AttrOr("class", ""))
		if class == "" {
			return true
		}
		for _, kw := range []string{"news", "announcement", "recent", "latest"} {
			if strings.Contains(class, kw) {
				if s.Find("a[href]").Length() >= 3 {
					found = s
					return false
				}
				break
			}
		}
		return true
	})
	return found
}

func isContainerTag(s *goquery.Selection) bool {
	switch goquery.NodeName(s) {
	case "div", "section", "article":
		return true
	}
	return false
}

// extractAnchors 从区块里扫锚点，过滤掉导航类链接
func extractAnchors(section *goquery.Selection, baseURL string) []announce.Link {
	var links []announce.Link
	seen := make(map[string]bool)

	section.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		full := resolveURL(baseURL, href)
		if !isAnnouncementURL(full) {
			return
		}
		title := linkTitle(a)
		if title == "" {
			return
		}
		if seen[full] {
			return
		}
		seen[full] = true

		links = append(links, announce.Link{
			Title:   title,
			URL:     full,
			Preview: previewText(a),
		})
	})
	return links
}

var skipPathParts = []string{
	"/about/", "/contact/", "/support/", "/pricing/",
	"/documentation/", "/console/", "/signin/", "/signup/",
}

var announcementPathParts = []string{
	"/new/", "/announcement/", "/blog/", "/press/",
	"/release/", "/update/", "/launch/",
}

// isAnnouncementURL 判断链接是否像公告详情页
func isAnnouncementURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	// 其它域名的外链不要
	if u.Host != "" && !strings.Contains(u.Host, "amazonaws.cn") {
		return false
	}

	path := strings.ToLower(u.Path)
	for _, p := range skipPathParts {
		if strings.Contains(path, p) {
			return false
		}
	}
	for _, p := range announcementPathParts {
		if strings.Contains(path, p) {
			return true
		}
	}
	return len(path) > 1
}

func linkTitle(a *goquery.Selection) string {
	if t := strings.TrimSpace(a.AttrOr("title", "")); t != "" {
		return t
	}
	if t := strings.TrimSpace(a.Text()); t != "" {
		return t
	}
	if alt := strings.TrimSpace(a.Find("img").AttrOr("alt", "")); alt != "" {
		return alt
	}
	return ""
}

// previewText 在链接附近找一段像摘要的文本
func previewText(a *goquery.Selection) string {
	parent := a.Parent()
	if parent.Length() == 0 {
		return ""
	}

	var preview string
	parent.NextAll().EachWithBreak(func(_ int, sib *goquery.Selection) bool {
		text := strings.TrimSpace(sib.Text())
		if len([]rune(text)) > 20 {
			preview = truncateRunes(text, 200)
			return false
		}
		return true
	})
	if preview != "" {
		return preview
	}

	parentText := strings.TrimSpace(parent.Text())
	linkText := strings.TrimSpace(a.Text())
	if linkText != "" && parentText != "" {
		if _, after, ok := strings.Cut(parentText, linkText); ok {
			after = strings.TrimSpace(after)
			if len([]rune(after)) > 20 {
				return truncateRunes(after, 200)
			}
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
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
