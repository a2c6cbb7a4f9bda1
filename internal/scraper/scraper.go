package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neillidocker/aws-announcements-scraper/internal/announce"
	"github.com/neillidocker/aws-announcements-scraper/internal/config"
	"github.com/neillidocker/aws-announcements-scraper/internal/content"
	"github.com/neillidocker/aws-announcements-scraper/internal/datefilter"
	"github.com/neillidocker/aws-announcements-scraper/internal/export"
	"github.com/neillidocker/aws-announcements-scraper/internal/fetch"
	"github.com/neillidocker/aws-announcements-scraper/internal/homepage"
	"github.com/neillidocker/aws-announcements-scraper/internal/logger"
	"github.com/neillidocker/aws-announcements-scraper/internal/render"
)

// Orchestrator 串起单轮抓取的完整流程：
// 首页抓取 → 链接解析 → 日期过滤 → 逐条抽取 → 结果落盘。
type Orchestrator struct {
	cfg       *config.Config
	client    *fetch.Client
	extractor *content.Extractor
	writer    *export.Writer
}

// New 按配置组装全部组件。配置需已通过 Validate。
func New(cfg *config.Config) (*Orchestrator, error) {
	writer, err := export.NewWriter(cfg)
	if err != nil {
		return nil, fmt.Errorf("scraper: init writer: %w", err)
	}

	client := fetch.NewClient(fetch.Options{
		Timeout:    cfg.TimeoutDuration(),
		MaxRetries: cfg.HTTP.MaxRetries,
		UserAgents: cfg.HTTP.UserAgents,
	})

	var renderer content.Renderer
	if cfg.Scraping.RenderEndpoint != "" {
		renderer = render.NewClient(cfg.Scraping.RenderEndpoint)
	}

	return &Orchestrator{
		cfg:       cfg,
		client:    client,
		extractor: content.NewExtractor(client, renderer),
		writer:    writer,
	}, nil
}

// Run 执行一轮抓取并写出结果文件。
// 首页抓取或解析失败时返回仅含一条失败记录的结果以及错误本身；
// 单条公告抽取失败只记入 Result.Failures，不会中断整轮。
// 上下文取消会在两次请求之间停下，返回已完成的部分和 ctx 的错误。
func (o *Orchestrator) Run(ctx context.Context) (*announce.Result, error) {
	log := logger.S("scraper")
	lang := config.NormalizeLanguage(o.cfg.Scraping.Language)
	targetURL := o.cfg.BaseURLFor(lang)
	start := time.Now()

	log.Info("starting aws announcements scraping workflow")
	log.Infof("language: %s (%s)", config.LanguageName(lang), lang)
	log.Infof("target url: %s", targetURL)

	log.Info("step 1: fetching and parsing homepage")
	links, err := o.fetchHomepageLinks(ctx, targetURL)
	if err != nil {
		log.Errorf("failed to fetch or parse homepage: %v", err)
		res := &announce.Result{
			Failures: []announce.Failure{{
				URL:     targetURL,
				Message: err.Error(),
				Kind:    classify(err),
				At:      config.Now(),
			}},
			Elapsed: time.Since(start),
		}
		return res, fmt.Errorf("scraper: homepage: %w", err)
	}

	if len(links) == 0 {
		log.Warn("no announcement links found on homepage")
		return &announce.Result{Elapsed: time.Since(start)}, nil
	}
	totalFound := len(links)
	log.Infof("found %d announcement links", totalFound)

	log.Info("step 2: applying date filter to announcement links")
	filtered := o.filterLinks(links)

	log.Info("step 3: extracting content from filtered announcements")
	extracted, failures, err := o.extractAll(ctx, filtered)

	result := &announce.Result{
		Extracted:      extracted,
		Failures:       failures,
		TotalProcessed: totalFound,
		Elapsed:        time.Since(start),
	}
	if err != nil {
		return result, err
	}

	log.Info("step 4: storing results")
	path, err := o.writer.Store(result)
	if err != nil {
		return result, fmt.Errorf("scraper: store results: %w", err)
	}
	log.Infof("results stored to: %s", path)

	o.logSummary(result, totalFound)
	return result, nil
}

func (o *Orchestrator) fetchHomepageLinks(ctx context.Context, targetURL string) ([]announce.Link, error) {
	log := logger.S("scraper")

	log.Infof("fetching homepage: %s", targetURL)
	data, err := o.client.Get(ctx, targetURL)
	if err != nil {
		return nil, err
	}

	log.Info("parsing homepage for announcement links")
	return homepage.Parse(data, targetURL)
}

// filterLinks 在抽取之前按月份过滤链接，省掉无谓的详情页请求。
// 过滤串非法时放行全部链接，与配置校验互为兜底。
func (o *Orchestrator) filterLinks(links []announce.Link) []announce.Link {
	log := logger.S("scraper")

	f, err := datefilter.Parse(o.cfg.Filtering.DateFilter)
	if err != nil {
		log.Errorf("date filtering failed: %v", err)
		log.Info("returning unfiltered announcement links")
		return links
	}
	if f == nil {
		log.Info("no date filter configured, returning all announcement links")
		return links
	}
	return datefilter.Apply(links, f)
}

func (o *Orchestrator) extractAll(ctx context.Context, links []announce.Link) ([]announce.Content, []announce.Failure, error) {
	log := logger.S("scraper")
	extracted := make([]announce.Content, 0, len(links))
	var failures []announce.Failure
	delay := o.cfg.RateLimitDuration()

	for i, link := range links {
		n := i + 1
		log.Infof("processing announcement %d/%d: %s", n, len(links), link.Title)

		c, err := o.extractor.Extract(ctx, link)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return extracted, failures, ctxErr
			}
			failures = append(failures, announce.Failure{
				URL:     link.URL,
				Message: err.Error(),
				Kind:    classify(err),
				At:      config.Now(),
			})
			log.Errorf("failed to extract content from %s: %v", link.URL, err)
		} else {
			extracted = append(extracted, c)
			log.Infof("successfully extracted content from: %s", link.URL)
		}

		// 限速只发生在两次请求之间，最后一条之后不再等待
		if n < len(links) && delay > 0 {
			log.Debugf("rate limiting: waiting %s before next request", delay)
			select {
			case <-ctx.Done():
				return extracted, failures, ctx.Err()
			case <-time.After(delay):
			}
		}

		if n%10 == 0 || n == len(links) {
			log.Infof("progress: %d/%d (%.1f%%) - success: %d, failed: %d",
				n, len(links), float64(n)/float64(len(links))*100, len(extracted), len(failures))
		}
	}

	log.Infof("content extraction complete: %d successful, %d failed", len(extracted), len(failures))
	return extracted, failures, nil
}

// classify 把抽取错误归类到统一的失败类型上
func classify(err error) announce.FailureKind {
	if errors.Is(err, content.ErrParse) || errors.Is(err, homepage.ErrNoSection) {
		return announce.FailureParse
	}
	return fetch.ClassifyError(err)
}

func (o *Orchestrator) logSummary(result *announce.Result, totalFound int) {
	log := logger.S("scraper")
	banner := strings.Repeat("=", 60)

	total := result.TotalProcessed
	if total < 1 {
		total = 1
	}

	log.Info(banner)
	log.Info("scraping workflow completed")
	log.Info(banner)
	log.Infof("total links found: %d", totalFound)
	log.Infof("total processed: %d", result.TotalProcessed)
	log.Infof("successful extractions: %d", len(result.Extracted))
	log.Infof("failed extractions: %d", len(result.Failures))
	log.Infof("success rate: %.1f%%", float64(len(result.Extracted))/float64(total)*100)
	log.Infof("execution time: %.2f seconds", result.Elapsed.Seconds())

	if o.cfg.Filtering.DateFilter != "" {
		log.Infof("date filter applied: %s", o.cfg.Filtering.DateFilter)
	}
	lang := config.NormalizeLanguage(o.cfg.Scraping.Language)
	log.Infof("language: %s (%s)", config.LanguageName(lang), lang)
	log.Infof("output format: %s", o.cfg.Output.Format)
	log.Infof("output directory: %s", o.cfg.Output.Directory)

	if len(result.Failures) > 0 {
		log.Warn("failed extractions:")
		shown := result.Failures
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, f := range shown {
			log.Warnf("  - %s: %s - %s", f.URL, f.Kind, f.Message)
		}
		if rest := len(result.Failures) - 5; rest > 0 {
			log.Warnf("  ... and %d more failures", rest)
		}
	}
	log.Info(banner)
}
