package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/neillidocker/aws-announcements-scraper/internal/logger"
)

// Config 汇总抓取与服务两种运行形态的全部配置。
// 文件里没出现的字段保持默认值，文件支持 JSON / YAML（按扩展名识别）。
type Config struct {
	Scraping  ScrapingConfig  `json:"scraping" yaml:"scraping"`
	HTTP      HTTPConfig      `json:"http" yaml:"http"`
	Output    OutputConfig    `json:"output" yaml:"output"`
	Filtering FilteringConfig `json:"filtering" yaml:"filtering"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Service   ServiceConfig   `json:"service" yaml:"service"`
}

type ScrapingConfig struct {
	// Language en 或 zh，决定抓取哪个语言版本的站点
	Language string            `json:"language" yaml:"language"`
	BaseURLs map[string]string `json:"base_urls" yaml:"base_urls"`
	// RenderEndpoint 浏览器渲染 sidecar 地址，空表示不启用兜底渲染
	RenderEndpoint string `json:"render_endpoint" yaml:"render_endpoint"`
}

type HTTPConfig struct {
	// Timeout 单个请求超时，单位秒
	Timeout        int      `json:"timeout" yaml:"timeout"`
	MaxRetries     int      `json:"max_retries" yaml:"max_retries"`
	RateLimitDelay float64  `json:"rate_limit_delay" yaml:"rate_limit_delay"`
	UserAgents     []string `json:"user_agents" yaml:"user_agents"`
}

type OutputConfig struct {
	Format           string `json:"format" yaml:"format"`
	Directory        string `json:"directory" yaml:"directory"`
	FilenameTemplate string `json:"filename_template" yaml:"filename_template"`
	IncludeMetadata  bool   `json:"include_metadata" yaml:"include_metadata"`
}

type FilteringConfig struct {
	// DateFilter YYYY-MM，空表示不过滤
	DateFilter        string `json:"date_filter" yaml:"date_filter"`
	DuplicateHandling string `json:"duplicate_handling" yaml:"duplicate_handling"`
}

type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
	File  string `json:"file" yaml:"file"`
}

// ServiceConfig 常驻服务（cmd/api）用到的配置，环境变量优先
type ServiceConfig struct {
	AppPort       string `json:"app_port" yaml:"app_port"`
	PostgresDSN   string `json:"postgres_dsn" yaml:"postgres_dsn"`
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
	CronSpec      string `json:"cron_spec" yaml:"cron_spec"`
	BasicAuthUser string `json:"basic_auth_user" yaml:"basic_auth_user"`
	BasicAuthPass string `json:"basic_auth_pass" yaml:"basic_auth_pass"`
	// Languages 服务模式要采集的语言版本
	Languages []string `json:"languages" yaml:"languages"`
}

const (
	DefaultBaseURLEN = "https://www.amazonaws.cn/en/new/"
	DefaultBaseURLZH = "https://www.amazonaws.cn/new/"
)

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:89.0) Gecko/20100101 Firefox/89.0",
}

// Default 返回一份全新的默认配置
func Default() *Config {
	return &Config{
		Scraping: ScrapingConfig{
			Language: "en",
			BaseURLs: map[string]string{
				"en": DefaultBaseURLEN,
				"zh": DefaultBaseURLZH,
			},
		},
		HTTP: HTTPConfig{
			Timeout:        300,
			MaxRetries:     3,
			RateLimitDelay: 1.0,
			UserAgents:     append([]string(nil), defaultUserAgents...),
		},
		Output: OutputConfig{
			Format:           "json",
			Directory:        "./output",
			FilenameTemplate: "aws_announcements_{timestamp}",
			IncludeMetadata:  true,
		},
		Filtering: FilteringConfig{
			DuplicateHandling: "skip",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
		Service: ServiceConfig{
			AppPort:     "9000",
			PostgresDSN: "host=localhost user=awscn password=awscn dbname=awscn_announcements port=5432 sslmode=disable TimeZone=UTC",
			RedisAddr:   "localhost:6379",
			CronSpec:    "*/30 * * * *",
			Languages:   []string{"en", "zh"},
		},
	}
}

// Load 以默认值为底，依次叠加配置文件与环境变量。
// 文件不存在只告警不报错，文件损坏则返回错误。
func Load(path string) (*Config, error) {
	// .env 存在时先读入进程环境，缺失不算错误
	_ = godotenv.Load(".env")

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			logger.S("config").Warnf("configuration file %s not found, using defaults", path)
		} else if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		} else {
			if err := unmarshalByExt(path, data, cfg); err != nil {
				return nil, err
			}
			logger.S("config").Infof("configuration loaded from %s", path)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func unmarshalByExt(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parse yaml %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parse json %s: %w", path, err)
		}
	}
	return nil
}

// applyEnv 环境变量覆盖，主要面向容器部署的服务模式
func (c *Config) applyEnv() {
	c.Service.AppPort = getEnv("APP_PORT", c.Service.AppPort)
	c.Service.PostgresDSN = getEnv("POSTGRES_DSN", c.Service.PostgresDSN)
	c.Service.RedisAddr = getEnv("REDIS_ADDR", c.Service.RedisAddr)
	c.Service.CronSpec = getEnv("CRON_SPEC", c.Service.CronSpec)
	c.Service.BasicAuthUser = getEnv("APP_BASIC_USER", c.Service.BasicAuthUser)
	c.Service.BasicAuthPass = getEnv("APP_BASIC_PASS", c.Service.BasicAuthPass)
	c.Scraping.RenderEndpoint = getEnv("RENDER_ENDPOINT", c.Scraping.RenderEndpoint)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Save 将当前配置写回文件，格式按扩展名决定
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create dir for %s: %w", path, err)
		}
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

var dateFilterPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

var validFormats = map[string]bool{"json": true, "csv": true, "txt": true, "html": true}

var validDuplicateModes = map[string]bool{"skip": true, "overwrite": true, "version": true}

// Validate 检查配置是否可用，返回第一个发现的问题
func (c *Config) Validate() error {
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("config: http timeout must be positive, got %d", c.HTTP.Timeout)
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("config: max retries must be non-negative, got %d", c.HTTP.MaxRetries)
	}
	if c.HTTP.RateLimitDelay < 0 {
		return fmt.Errorf("config: rate limit delay must be non-negative, got %v", c.HTTP.RateLimitDelay)
	}
	if !validFormats[c.Output.Format] {
		return fmt.Errorf("config: output format must be one of json/csv/txt/html, got %q", c.Output.Format)
	}
	if c.Output.Directory != "" {
		if err := os.MkdirAll(c.Output.Directory, 0o755); err != nil {
			return fmt.Errorf("config: cannot create output directory %s: %w", c.Output.Directory, err)
		}
	}
	if !validDuplicateModes[c.Filtering.DuplicateHandling] {
		return fmt.Errorf("config: duplicate handling must be one of skip/overwrite/version, got %q", c.Filtering.DuplicateHandling)
	}
	if c.Filtering.DateFilter != "" && !dateFilterPattern.MatchString(c.Filtering.DateFilter) {
		return fmt.Errorf("config: date filter must be in YYYY-MM format, got %q", c.Filtering.DateFilter)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: logging level must be one of DEBUG/INFO/WARNING/ERROR/CRITICAL, got %q", c.Logging.Level)
	}
	if lang := c.Scraping.Language; lang != "en" && lang != "zh" {
		return fmt.Errorf("config: language must be en or zh, got %q", lang)
	}
	return nil
}

// NormalizeLanguage 把命令行允许的 english/chinese 归一到 en/zh
func NormalizeLanguage(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "zh", "chinese":
		return "zh"
	default:
		return "en"
	}
}

// LanguageName 日志里展示用的语言名
func LanguageName(lang string) string {
	if lang == "zh" {
		return "Chinese"
	}
	return "English"
}

// BaseURLFor 返回某语言版本的首页地址，没配置时退回英文默认地址
func (c *Config) BaseURLFor(lang string) string {
	if u, ok := c.Scraping.BaseURLs[lang]; ok && u != "" {
		return u
	}
	logger.S("config").Warnf("no URL configured for language %q, using default: %s", lang, DefaultBaseURLEN)
	return DefaultBaseURLEN
}

// TimeoutDuration HTTP 超时时长
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.HTTP.Timeout) * time.Second
}

// Now returns current time, 方便后续做可测试封装
func Now() time.Time {
	return time.Now()
}

// RateLimitDuration 请求间隔时长
func (c *Config) RateLimitDuration() time.Duration {
	return time.Duration(c.HTTP.RateLimitDelay * float64(time.Second))
}
