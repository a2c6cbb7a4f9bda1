package collector

import (
	"github.com/neillidocker/aws-announcements-scraper/internal/announce"
)

// Item 采集到的一条公告，正文之外带上首页上下文
type Item struct {
	announce.Content
	// Preview 首页摘要，正文截断之外的展示兜底
	Preview string
	// Raw 采集过程的原始上下文，入库时放进 extra_data
	Raw map[string]any
}

// Fetcher 抽象一个公告来源，目前按站点语言版本划分
type Fetcher interface {
	Name() string
	Fetch() ([]Item, error)
}
