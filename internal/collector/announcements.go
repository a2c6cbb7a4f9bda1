package collector

import (
	"errors"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/neillidocker/aws-announcements-scraper/internal/announce"
	"github.com/neillidocker/aws-announcements-scraper/internal/config"
	"github.com/neillidocker/aws-announcements-scraper/internal/content"
	"github.com/neillidocker/aws-announcements-scraper/internal/homepage"
	"github.com/neillidocker/aws-announcements-scraper/internal/logger"
)

const collectorUA = "AWSAnnouncementsBot/1.0"

// 公告站点只在这两个域名上，详情链接不会跳出去
var defaultDomains = []string{"www.amazonaws.cn", "amazonaws.cn"}

// AnnouncementsFetcher 抓取 AWS 中国站某个语言版本的公告：
// 先抓 what's-new 首页拿链接，再逐条访问详情页做内容抽取。
type AnnouncementsFetcher struct {
	Language string
	BaseURL  string
	// Delay 相邻请求的间隔，0 表示不限速
	Delay time.Duration
	// Domains 允许访问的域名，留空使用默认的 amazonaws.cn
	Domains []string
}

func NewAnnouncementsFetcher(language string, cfg *config.Config) *AnnouncementsFetcher {
	lang := config.NormalizeLanguage(language)
	return &AnnouncementsFetcher{
		Language: lang,
		BaseURL:  cfg.BaseURLFor(lang),
		Delay:    cfg.RateLimitDuration(),
	}
}

func (f *AnnouncementsFetcher) Name() string {
	return "awscn-" + f.Language
}

func (f *AnnouncementsFetcher) Fetch() ([]Item, error) {
	log := logger.S("collector")
	log.Infof("fetch aws announcements (%s)...", f.Language)

	domains := f.Domains
	if len(domains) == 0 {
		domains = defaultDomains
	}

	c := colly.NewCollector(
		colly.AllowedDomains(domains...),
		colly.UserAgent(collectorUA),
	)
	c.SetRequestTimeout(20 * time.Second)
	if f.Delay > 0 {
		_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: f.Delay})
	}

	// 详情页用克隆出来的 collector，继承域名与限速配置
	detail := c.Clone()

	var (
		items []Item
		known = make(map[string]announce.Link)
	)

	// 首页响应整体交给解析器，内嵌 JSON 和 DOM 两种形态都能处理
	c.OnResponse(func(r *colly.Response) {
		links, err := homepage.Parse(r.Body, r.Request.URL.String())
		if err != nil {
			log.Errorf("parse homepage (%s): %v", f.Language, err)
			return
		}
		log.Infof("found %d announcement links (%s)", len(links), f.Language)
		for _, l := range links {
			known[l.URL] = l
			if err := detail.Visit(l.URL); err != nil && !errors.Is(err, colly.ErrAlreadyVisited) {
				log.Warnf("visit %s: %v", l.URL, err)
			}
		}
	})

	detail.OnResponse(func(r *colly.Response) {
		pageURL := r.Request.URL.String()
		link := known[pageURL]

		page, err := content.ParsePage(r.Body, pageURL, link.PublishedAt)
		if err != nil {
			log.Warnf("extract %s: %v", pageURL, err)
			return
		}

		item := Item{Content: page, Preview: link.Preview}
		if link.Title != "" && link.Title != page.Title {
			// 首页标题和详情页标题不一致时两边都留着
			item.Raw = map[string]any{"homepage_title": link.Title}
		}
		items = append(items, item)
	})

	detail.OnError(func(r *colly.Response, err error) {
		log.Warnf("fetch %s: %v", r.Request.URL, err)
	})

	if err := c.Visit(f.BaseURL); err != nil {
		log.Errorf("fetch aws announcements (%s) failed: %v", f.Language, err)
		return nil, err
	}

	if len(items) == 0 {
		log.Warnf("fetch aws announcements (%s) got 0 items", f.Language)
	}
	return items, nil
}
