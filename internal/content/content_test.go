package content

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/neillidocker/aws-announcements-scraper/internal/announce"
)

const pageURL = "https://www.amazonaws.cn/en/new/2025/cloudfront/"

const articlePage = `<html><head><title>What's New</title></head><body>
<h1>Amazon CloudFront launches in China regions</h1>
<time datetime="2025-08-04">August 4, 2025</time>
<article>
<p>Amazon CloudFront is now available in the China regions, giving customers low latency content delivery.</p>
<p>See the <a href="/en/products/cloudfront/">CloudFront page</a> for details.</p>
</article>
</body></html>`

func TestParsePageFullArticle(t *testing.T) {
	c, err := ParsePage([]byte(articlePage), pageURL, time.Time{})
	if err != nil {
		t.Fatalf("ParsePage error: %v", err)
	}

	if c.Title != "Amazon CloudFront launches in China regions" {
		t.Fatalf("Title = %q", c.Title)
	}
	if c.URL != pageURL {
		t.Fatalf("URL = %q", c.URL)
	}
	want := time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)
	if !c.PublishedAt.Equal(want) {
		t.Fatalf("PublishedAt = %v, want %v", c.PublishedAt, want)
	}
	if !strings.Contains(c.Body, "Amazon CloudFront is now available") {
		t.Fatalf("body missing first paragraph: %q", c.Body)
	}
	if !strings.Contains(c.Body, "See the CloudFront page for details.") {
		t.Fatalf("body missing second paragraph: %q", c.Body)
	}
	if c.ExtractedAt.IsZero() {
		t.Fatal("ExtractedAt should be set")
	}

	if len(c.Links) != 1 {
		t.Fatalf("expected 1 embedded link, got %d", len(c.Links))
	}
	link := c.Links[0]
	if link.Text != "CloudFront page" {
		t.Fatalf("link text = %q", link.Text)
	}
	if link.URL != "https://www.amazonaws.cn/en/products/cloudfront/" {
		t.Fatalf("link url not resolved: %q", link.URL)
	}
	if !strings.Contains(link.Context, "See the CloudFront page") {
		t.Fatalf("link context = %q", link.Context)
	}
}

// 首页带来的日期优先于页面上解析的日期
func TestParsePageUsesKnownDate(t *testing.T) {
	known := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	c, err := ParsePage([]byte(articlePage), pageURL, known)
	if err != nil {
		t.Fatalf("ParsePage error: %v", err)
	}
	if !c.PublishedAt.Equal(known) {
		t.Fatalf("PublishedAt = %v, want provided %v", c.PublishedAt, known)
	}
}

// 页面上没有日期时退回当前时间
func TestParsePageFallsBackToNow(t *testing.T) {
	page := `<html><body>
<h1>Announcement without any date</h1>
<article><p>` + strings.Repeat("Body text. ", 10) + `</p></article>
</body></html>`

	before := time.Now()
	c, err := ParsePage([]byte(page), pageURL, time.Time{})
	if err != nil {
		t.Fatalf("ParsePage error: %v", err)
	}
	if c.PublishedAt.Before(before.Add(-time.Minute)) {
		t.Fatalf("PublishedAt should be roughly now, got %v", c.PublishedAt)
	}
}

func TestParsePageNoTitle(t *testing.T) {
	page := `<html><body><article><p>` + strings.Repeat("words ", 20) + `</p></article></body></html>`
	_, err := ParsePage([]byte(page), pageURL, time.Time{})
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse for missing title, got %v", err)
	}
}

func TestParsePageShortContent(t *testing.T) {
	page := `<html><body><h1>A real announcement title</h1><article><p>too short</p></article></body></html>`
	_, err := ParsePage([]byte(page), pageURL, time.Time{})
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse for short content, got %v", err)
	}
}

// h1 太短时退到 <title>
func TestTitleSelectorFallback(t *testing.T) {
	page := `<html><head><title>Amazon EKS update for China regions</title></head><body>
<h1>New</h1>
<article><p>` + strings.Repeat("Body text. ", 10) + `</p></article>
</body></html>`

	c, err := ParsePage([]byte(page), pageURL, time.Time{})
	if err != nil {
		t.Fatalf("ParsePage error: %v", err)
	}
	if c.Title != "Amazon EKS update for China regions" {
		t.Fatalf("Title = %q", c.Title)
	}
}

func TestParseDateString(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2025-08-04", time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)},
		{"2025-08-04T10:30:00", time.Date(2025, 8, 4, 10, 30, 0, 0, time.UTC)},
		{"2025-08-04T10:30:00Z", time.Date(2025, 8, 4, 10, 30, 0, 0, time.UTC)},
		{"08/15/2025", time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)},
		{"08-15-2025", time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)},
		{"August 4, 2025", time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)},
		{"4 August 2025", time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got := parseDateString(tc.in)
		if !got.Equal(tc.want) {
			t.Fatalf("parseDateString(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"", "not a date", "2025"} {
		if got := parseDateString(bad); !got.IsZero() {
			t.Fatalf("parseDateString(%q) = %v, want zero", bad, got)
		}
	}
}

func TestStructuredDateFromJSONLD(t *testing.T) {
	page := `<html><head>
<script type="application/ld+json">{"@type":"NewsArticle","datePublished":"2025-07-15T09:00:00Z"}</script>
</head><body>
<h1>Announcement with structured data</h1>
<article><p>` + strings.Repeat("Body text. ", 10) + `</p></article>
</body></html>`

	c, err := ParsePage([]byte(page), pageURL, time.Time{})
	if err != nil {
		t.Fatalf("ParsePage error: %v", err)
	}
	want := time.Date(2025, 7, 15, 9, 0, 0, 0, time.UTC)
	if !c.PublishedAt.Equal(want) {
		t.Fatalf("PublishedAt = %v, want %v", c.PublishedAt, want)
	}
}

// 正文里的日期字样也能兜底
func TestDateFromText(t *testing.T) {
	page := `<html><body>
<h1>Announcement with inline date</h1>
<article><p>Posted on 2025-05-20. ` + strings.Repeat("Body text. ", 10) + `</p></article>
</body></html>`

	c, err := ParsePage([]byte(page), pageURL, time.Time{})
	if err != nil {
		t.Fatalf("ParsePage error: %v", err)
	}
	want := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	if !c.PublishedAt.Equal(want) {
		t.Fatalf("PublishedAt = %v, want %v", c.PublishedAt, want)
	}
}

func TestFormattedText(t *testing.T) {
	page := `<html><body><article>
<script>var ignored = 1;</script>
<style>.x { color: red }</style>
<h2>Heading</h2>
<p>First    paragraph.</p>
<p>Second<br>line.</p>
</article></body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}

	got := formattedText(doc.Find("article"))
	if strings.Contains(got, "ignored") || strings.Contains(got, "color") {
		t.Fatalf("script/style leaked into text: %q", got)
	}
	// 连续空格收敛成一个
	if !strings.Contains(got, "First paragraph.") {
		t.Fatalf("whitespace not normalized: %q", got)
	}
	if !strings.Contains(got, "Second\nline.") {
		t.Fatalf("br should break line: %q", got)
	}
	if !strings.HasPrefix(got, "Heading") {
		t.Fatalf("leading whitespace not trimmed: %q", got)
	}
}

func TestEmbeddedLinkRules(t *testing.T) {
	page := `<html><body>
<h1>Announcement about embedded links</h1>
<article>
<p>` + strings.Repeat("Body text. ", 10) + `</p>
<p><a href="#section">skip anchors</a></p>
<p><a href="https://docs.amazonaws.cn/guide/"></a></p>
<p>` + strings.Repeat("c", 250) + `<a href="/en/new/other/">other</a></p>
</article>
</body></html>`

	c, err := ParsePage([]byte(page), pageURL, time.Time{})
	if err != nil {
		t.Fatalf("ParsePage error: %v", err)
	}
	if len(c.Links) != 2 {
		t.Fatalf("expected 2 links (anchor skipped), got %d", len(c.Links))
	}
	// 无文本的链接用 URL 顶替
	if c.Links[0].Text != "https://docs.amazonaws.cn/guide/" {
		t.Fatalf("empty link text should fall back to href: %q", c.Links[0].Text)
	}
	// 上下文超长要截断
	if !strings.HasSuffix(c.Links[1].Context, "...") || len([]rune(c.Links[1].Context)) != 203 {
		t.Fatalf("context not truncated: len=%d", len([]rune(c.Links[1].Context)))
	}
}

type stubGetter struct {
	body []byte
	err  error
}

func (s stubGetter) Get(ctx context.Context, url string) ([]byte, error) {
	return s.body, s.err
}

type stubRenderer struct {
	body  []byte
	err   error
	calls int
}

func (s *stubRenderer) Render(ctx context.Context, url string) ([]byte, error) {
	s.calls++
	return s.body, s.err
}

// 静态解析失败时走浏览器渲染兜底
func TestExtractorRenderFallback(t *testing.T) {
	emptyPage := []byte(`<html><body><div id="app"></div></body></html>`)
	renderer := &stubRenderer{body: []byte(articlePage)}

	e := NewExtractor(stubGetter{body: emptyPage}, renderer)
	c, err := e.Extract(context.Background(), announce.Link{URL: pageURL})
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if renderer.calls != 1 {
		t.Fatalf("renderer called %d times, want 1", renderer.calls)
	}
	if c.Title != "Amazon CloudFront launches in China regions" {
		t.Fatalf("Title = %q", c.Title)
	}
}

// 没配置渲染器时直接返回解析错误
func TestExtractorNoRenderer(t *testing.T) {
	emptyPage := []byte(`<html><body><div id="app"></div></body></html>`)
	e := NewExtractor(stubGetter{body: emptyPage}, nil)
	_, err := e.Extract(context.Background(), announce.Link{URL: pageURL})
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

// 抓取失败时不再尝试渲染
func TestExtractorFetchError(t *testing.T) {
	renderer := &stubRenderer{body: []byte(articlePage)}
	e := NewExtractor(stubGetter{err: errors.New("connection refused")}, renderer)
	_, err := e.Extract(context.Background(), announce.Link{URL: pageURL})
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if renderer.calls != 0 {
		t.Fatalf("renderer should not be called on fetch error, got %d calls", renderer.calls)
	}
}
