package main

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/neillidocker/aws-announcements-scraper/internal/api"
	"github.com/neillidocker/aws-announcements-scraper/internal/collector"
	"github.com/neillidocker/aws-announcements-scraper/internal/config"
	"github.com/neillidocker/aws-announcements-scraper/internal/logger"
	"github.com/neillidocker/aws-announcements-scraper/internal/processor"
	"github.com/neillidocker/aws-announcements-scraper/internal/scheduler"
	"github.com/neillidocker/aws-announcements-scraper/internal/storage"
)

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

	// 确保各语言版本的采集源存在
	for _, lang := range cfg.Service.Languages {
		lang = config.NormalizeLanguage(lang)
		code := "awscn-" + lang
		name := "AWS China What's New (" + config.LanguageName(lang) + ")"
		if _, err := store.EnsureSource(code, name, cfg.BaseURLFor(lang)); err != nil {
			log.Fatalf("ensure source %s failed: %v", code, err)
		}
	}

	// 每个语言版本一个采集任务，共用同一个调度周期
	jobs := make([]scheduler.FetcherJob, 0, len(cfg.Service.Languages))
	for _, lang := range cfg.Service.Languages {
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
	s.Start()

	// API
	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.Service.BasicAuthUser != "" && cfg.Service.BasicAuthPass != "" {
		r.Use(basicAuthMiddleware(cfg.Service.BasicAuthUser, cfg.Service.BasicAuthPass))
	}

	apiServer := api.NewServer(store, s)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.Service.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}

// basicAuthMiddleware 为整个站点增加一个简单的 Basic Auth 访问密码。
// 仅当配置了 APP_BASIC_USER / APP_BASIC_PASS 时启用。
// /health 不做认证，便于健康检查。
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
