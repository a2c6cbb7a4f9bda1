package main

import (
	"log"
	"os"

	"github.com/neillidocker/aws-announcements-scraper/internal/collector"
	"github.com/neillidocker/aws-announcements-scraper/internal/config"
	"github.com/neillidocker/aws-announcements-scraper/internal/logger"
	"github.com/neillidocker/aws-announcements-scraper/internal/processor"
	"github.com/neillidocker/aws-announcements-scraper/internal/scheduler"
	"github.com/neillidocker/aws-announcements-scraper/internal/storage"
)

// 一个仅执行一次采集任务的命令行入口：适合手动触发或容器里的定时任务
func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer logger.Sync()

	store, err := storage.NewStore(cfg.Service.PostgresDSN, cfg.Service.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	// 确保各语言版本的采集源存在（与 cmd/api 保持一致）
	jobs := make([]scheduler.FetcherJob, 0, len(cfg.Service.Languages))
	for _, lang := range cfg.Service.Languages {
		lang = config.NormalizeLanguage(lang)
		code := "awscn-" + lang
		name := "AWS China What's New (" + config.LanguageName(lang) + ")"
		if _, err := store.EnsureSource(code, name, cfg.BaseURLFor(lang)); err != nil {
			log.Fatalf("ensure source %s failed: %v", code, err)
		}
		jobs = append(jobs, scheduler.FetcherJob{
			Fetcher:  collector.NewAnnouncementsFetcher(lang, cfg),
			CronSpec: cfg.Service.CronSpec,
		})
	}

	p := processor.NewSimpleProcessor()
	s, err := scheduler.New(jobs, p, store)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}

	// 只执行一轮采集任务后退出
	s.RunOnce()
}
