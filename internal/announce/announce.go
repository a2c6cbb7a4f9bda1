package announce

import "time"

// Link 首页公告区解析出的一条公告链接
type Link struct {
	Title string
	URL   string
	// Preview 首页上的摘要文案，可能为空；长度控制在 200 字符以内
	Preview string
	// PublishedAt 首页内嵌数据中携带的发布日期，未知时为零值
	PublishedAt time.Time
}

// HasPublishedAt 判断首页数据是否带了发布日期
func (l Link) HasPublishedAt() bool {
	return !l.PublishedAt.IsZero()
}

// EmbeddedLink 公告正文内出现的链接及其上下文
type EmbeddedLink struct {
	Text    string `json:"text"`
	URL     string `json:"url"`
	Context string `json:"context"`
}

// Content 公告详情页抽取出的完整内容
type Content struct {
	Title       string
	URL         string
	PublishedAt time.Time
	Body        string
	Links       []EmbeddedLink
	ExtractedAt time.Time
}

// FailureKind 按来源对抽取失败做粗分类，方便输出与统计
type FailureKind string

const (
	FailureHTTP    FailureKind = "http"
	FailureNetwork FailureKind = "network"
	FailureParse   FailureKind = "parse"
	FailureOther   FailureKind = "other"
)

// Failure 一次失败的抽取记录
type Failure struct {
	URL     string
	Message string
	Kind    FailureKind
	At      time.Time
}

// Result 一轮抓取的完整结果
type Result struct {
	Extracted []Content
	Failures  []Failure
	// TotalProcessed 首页上发现的公告链接总数（含被日期过滤掉的）
	TotalProcessed int
	Elapsed        time.Duration
}
