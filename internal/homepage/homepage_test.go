package homepage

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const baseURL = "https://www.amazonaws.cn/en/new/"

// 新版首页：公告数据嵌在脚本里的 JSON 中
const jsonPage = `<!DOCTYPE html>
<html><head><title>What's New</title>
<script>window.__DATA__ = {"data":{"items":[
{"fields":{"itemTitle":"Amazon EC2 adds new instance types","itemLink":"/en/new/2025/ec2-instances/","itemBody":"<p>EC2 now supports more instance families.</p>","itemMetadataDate":"2025-08-04T00:00:00.000+08:00"}},
{"fields":{"itemTitle":"Amazon S3 lowers prices","itemLink":"https://www.amazonaws.cn/en/new/2025/s3-prices/","itemBody":"S3 price cut."}}
]}};</script>
</head><body></body></html>`

func TestParseEmbeddedJSON(t *testing.T) {
	links, err := Parse([]byte(jsonPage), baseURL)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}

	first := links[0]
	if first.Title != "Amazon EC2 adds new instance types" {
		t.Fatalf("title = %q", first.Title)
	}
	if first.URL != "https://www.amazonaws.cn/en/new/2025/ec2-instances/" {
		t.Fatalf("relative url not resolved: %q", first.URL)
	}
	if first.Preview != "EC2 now supports more instance families." {
		t.Fatalf("html tags not stripped from preview: %q", first.Preview)
	}
	want := time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(want) {
		t.Fatalf("publication date = %v, want %v", first.PublishedAt, want)
	}

	second := links[1]
	if second.URL != "https://www.amazonaws.cn/en/new/2025/s3-prices/" {
		t.Fatalf("absolute url should pass through: %q", second.URL)
	}
	if second.HasPublishedAt() {
		t.Fatal("second link has no date and should report none")
	}
}

// 同一 URL 出现多次时只保留一条
func TestParseJSONDeduplicates(t *testing.T) {
	page := `<html><script>var a = {"itemTitle":"Dup","itemLink":"/en/new/dup/"};
var b = {"itemTitle":"Dup again","itemLink":"/en/new/dup/"};</script></html>`

	links, err := Parse([]byte(page), baseURL)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 unique link, got %d", len(links))
	}
	if links[0].Title != "Dup" {
		t.Fatalf("first occurrence should win, got %q", links[0].Title)
	}
}

// 旧版页面：按区块标题定位再扫锚点
func TestParseAnchorFallback(t *testing.T) {
	page := `<html><body>
<div class="content">
  <h2>Most Recent Announcements from Amazon Web Services</h2>
  <ul>
    <li><a href="/en/new/2025/feature-a/">Feature A launched</a></li>
    <li><a href="https://www.amazonaws.cn/en/new/2025/feature-b/" title="Feature B">more</a></li>
    <li><a href="/en/pricing/">Pricing</a></li>
    <li><a href="https://example.com/new/external/">External</a></li>
    <li><a href="#">Back to top</a></li>
  </ul>
</div>
</body></html>`

	links, err := Parse([]byte(page), baseURL)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links after filtering, got %d: %+v", len(links), links)
	}
	if links[0].Title != "Feature A launched" {
		t.Fatalf("links[0].Title = %q", links[0].Title)
	}
	if links[0].URL != "https://www.amazonaws.cn/en/new/2025/feature-a/" {
		t.Fatalf("links[0].URL = %q", links[0].URL)
	}
	// title 属性优先于链接文本
	if links[1].Title != "Feature B" {
		t.Fatalf("links[1].Title = %q", links[1].Title)
	}
}

func TestParsePreviewFromSibling(t *testing.T) {
	page := `<html><body>
<div class="news">
  <h3>Most Recent Announcements from Amazon Web Services</h3>
  <div><a href="/en/new/2025/p/">Some launch</a></div>
  <p>This is a longer preview text with more than twenty characters.</p>
</div>
</body></html>`

	links, err := Parse([]byte(page), baseURL)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if !strings.Contains(links[0].Preview, "longer preview text") {
		t.Fatalf("preview not picked up from sibling: %q", links[0].Preview)
	}
}

// 没有标题时按 class 关键字找含多个链接的容器
func TestParseClassKeywordFallback(t *testing.T) {
	page := `<html><body>
<div class="recent-news">
  <a href="/en/new/2025/a/">Announcement A</a>
  <a href="/en/new/2025/b/">Announcement B</a>
  <a href="/en/new/2025/c/">Announcement C</a>
</div>
</body></html>`

	links, err := Parse([]byte(page), baseURL)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(links) != 3 {
		t.Fatalf("expected 3 links, got %d", len(links))
	}
}

func TestParseNoSection(t *testing.T) {
	page := `<html><body><p>nothing to see here</p></body></html>`
	_, err := Parse([]byte(page), baseURL)
	if !errors.Is(err, ErrNoSection) {
		t.Fatalf("err = %v, want ErrNoSection", err)
	}
}

func TestIsAnnouncementURL(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://www.amazonaws.cn/en/new/2025/x/", true},
		{"https://www.amazonaws.cn/en/announcement/y/", true},
		{"https://www.amazonaws.cn/en/products/ec2/", true},
		{"https://www.amazonaws.cn/", false},
		{"https://www.amazonaws.cn/en/pricing/calculator/", false},
		{"https://www.amazonaws.cn/en/documentation/s3/", false},
		{"https://example.com/en/new/", false},
		{"mailto:someone@amazonaws.cn", false},
		{"javascript:void(0)", false},
	}
	for _, tc := range cases {
		if got := isAnnouncementURL(tc.url); got != tc.want {
			t.Fatalf("isAnnouncementURL(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestCleanPreview(t *testing.T) {
	if got := cleanPreview("<p>Hello <b>world</b></p>"); got != "Hello world" {
		t.Fatalf("cleanPreview = %q", got)
	}

	long := strings.Repeat("x", 250)
	got := cleanPreview(long)
	if len([]rune(got)) != 203 || !strings.HasSuffix(got, "...") {
		t.Fatalf("long preview not truncated correctly: len=%d", len([]rune(got)))
	}
}

func TestItemsFromStructure(t *testing.T) {
	obj := `{"data":{"items":[{"fields":{"itemTitle":"A","itemLink":"/en/new/a/"}},{"fields":{"itemTitle":"B","itemLink":"/en/new/b/"}}]}}`
	items := itemsFromStructure(obj)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	// 不带 data 包装的变体
	obj = `{"items":[{"itemTitle":"C","itemLink":"/en/new/c/"}]}`
	items = itemsFromStructure(obj)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}

func TestEnclosingObject(t *testing.T) {
	s := `prefix {"meta":{"x":1},"itemTitle":"T"} suffix`
	pos := strings.Index(s, `"itemTitle"`)
	obj, ok := enclosingObject(s, pos)
	if !ok {
		t.Fatal("expected to find enclosing object")
	}
	if obj != `{"meta":{"x":1},"itemTitle":"T"}` {
		t.Fatalf("enclosingObject = %q", obj)
	}
}
