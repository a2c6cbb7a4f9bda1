package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/neillidocker/aws-announcements-scraper/internal/config"
	"github.com/neillidocker/aws-announcements-scraper/internal/datefilter"
	"github.com/neillidocker/aws-announcements-scraper/internal/logger"
	"github.com/neillidocker/aws-announcements-scraper/internal/scraper"
)

const version = "1.0.0"

var (
	configPath     string
	language       string
	dateFilter     string
	outputFormat   string
	outputDir      string
	timeoutSec     int
	maxRetries     int
	rateLimitDelay float64
	logLevel       string
	logFile        string
	dryRun         bool
)

var errNoExtractions = errors.New("no announcements were successfully extracted")

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scraper",
		Short:   "Extract announcement content from the AWS China what's-new pages",
		Version: version,
		Long: `Fetches the AWS China announcements homepage, extracts the full content of
each announcement and writes the results to the output directory in the
chosen format. Supports both the English and the Chinese site.`,
		Example: `  # 默认设置抓取英文站，结果写到 ./output
  scraper

  # 只要 2026 年 1 月的公告，存成 CSV
  scraper --date-filter 2026-01 --output-format csv

  # 抓中文站并输出 HTML 报告
  scraper --language zh --output-format html

  # 自定义配置文件加调试日志
  scraper --config config/scraper.yaml --log-level DEBUG`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runScrape,
	}
	cmd.SetVersionTemplate("AWS Announcements Scraper {{.Version}}\n")

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "path to configuration file (JSON or YAML)")
	f.StringVarP(&language, "language", "L", "en", "language version to scrape: en/english or zh/chinese")
	f.StringVarP(&dateFilter, "date-filter", "d", "", "filter announcements by month (YYYY-MM)")
	f.StringVarP(&outputFormat, "output-format", "f", "json", "output format: json, csv, txt or html")
	f.StringVarP(&outputDir, "output-dir", "o", "./output", "output directory for result files")
	f.IntVar(&timeoutSec, "timeout", 300, "HTTP request timeout in seconds")
	f.IntVar(&maxRetries, "max-retries", 3, "maximum retry attempts per request")
	f.Float64Var(&rateLimitDelay, "rate-limit-delay", 1.0, "delay between requests in seconds")
	f.StringVarP(&logLevel, "log-level", "l", "INFO", "log level: DEBUG, INFO, WARNING, ERROR or CRITICAL")
	f.StringVar(&logFile, "log-file", "", "log file path (default console only)")
	f.BoolVar(&dryRun, "dry-run", false, "validate configuration and show the plan without scraping")
	return cmd
}

func main() {
	os.Exit(run(newRootCmd()))
}

func run(root *cobra.Command) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logger.Sync()

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "\noperation cancelled by user")
			return 130
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func runScrape(cmd *cobra.Command, _ []string) error {
	if err := validateFlags(cmd); err != nil {
		return err
	}

	// 先用命令行级别把日志立起来，配置合并完如有变化再重建
	if err := logger.Init(logLevel, logFile); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if cfg.Logging.Level != logLevel || cfg.Logging.File != logFile {
		if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
			return err
		}
	}

	log := logger.S("cli")
	log.Info("aws announcements scraper starting...")
	source := configPath
	if source == "" {
		source = "defaults"
	}
	log.Infof("configuration: %s", source)
	log.Infof("language: %s", strings.ToUpper(cfg.Scraping.Language))
	if cfg.Filtering.DateFilter != "" {
		log.Infof("date filter: %s", cfg.Filtering.DateFilter)
	}
	log.Infof("output format: %s", cfg.Output.Format)
	log.Infof("output directory: %s", cfg.Output.Directory)

	if dryRun {
		log.Info("dry run mode - no actual scraping will be performed")
		log.Info("configuration validation successful")
		log.Info("would scrape aws announcements with current settings")
		return nil
	}

	o, err := scraper.New(cfg)
	if err != nil {
		return err
	}

	result, err := o.Run(cmd.Context())
	if err != nil {
		return err
	}

	success := len(result.Extracted)
	failed := len(result.Failures)
	log.Infof("results: %d successful, %d failed", success, failed)
	log.Infof("total execution time: %.2f seconds", result.Elapsed.Seconds())

	if success == 0 && failed > 0 {
		return errNoExtractions
	}
	if failed > 0 {
		log.Warnf("some extractions failed (%d failures)", failed)
	}
	return nil
}

// validateFlags 在任何网络请求之前把命令行参数全部检查一遍
func validateFlags(cmd *cobra.Command) error {
	if dateFilter != "" {
		if _, err := datefilter.Parse(dateFilter); err != nil {
			return fmt.Errorf("invalid --date-filter: %w", err)
		}
	}
	switch strings.ToLower(language) {
	case "en", "english", "zh", "chinese":
	default:
		return fmt.Errorf("invalid --language %q: must be en, english, zh or chinese", language)
	}
	switch outputFormat {
	case "json", "csv", "txt", "html":
	default:
		return fmt.Errorf("invalid --output-format %q: must be json, csv, txt or html", outputFormat)
	}
	if timeoutSec <= 0 {
		return fmt.Errorf("invalid --timeout: value must be positive, got %d", timeoutSec)
	}
	if maxRetries < 0 {
		return fmt.Errorf("invalid --max-retries: value must be non-negative, got %d", maxRetries)
	}
	if rateLimitDelay < 0 {
		return fmt.Errorf("invalid --rate-limit-delay: value must be non-negative, got %v", rateLimitDelay)
	}
	if _, err := logger.ParseLevel(logLevel); err != nil {
		return fmt.Errorf("invalid --log-level %q: must be DEBUG, INFO, WARNING, ERROR or CRITICAL", logLevel)
	}
	if cmd.Flags().Changed("output-dir") {
		if err := ensureWritableDir(outputDir); err != nil {
			return err
		}
	}
	return nil
}

// applyFlagOverrides 命令行显式给出的参数覆盖配置文件。
// 优先级：默认值 < 配置文件 < 命令行。
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("language") {
		cfg.Scraping.Language = config.NormalizeLanguage(language)
	}
	if flags.Changed("date-filter") {
		cfg.Filtering.DateFilter = dateFilter
	}
	if flags.Changed("output-format") {
		cfg.Output.Format = outputFormat
	}
	if flags.Changed("output-dir") {
		cfg.Output.Directory = outputDir
	}
	if flags.Changed("timeout") {
		cfg.HTTP.Timeout = timeoutSec
	}
	if flags.Changed("max-retries") {
		cfg.HTTP.MaxRetries = maxRetries
	}
	if flags.Changed("rate-limit-delay") {
		cfg.HTTP.RateLimitDelay = rateLimitDelay
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-file") {
		cfg.Logging.File = logFile
	}
}

// ensureWritableDir 创建目录并实际写一个探针文件验证权限
func ensureWritableDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("cannot create output directory %s: %w", path, err)
	}
	probe := filepath.Join(path, ".write_test")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("no write permission for directory %s: %w", path, err)
	}
	_ = f.Close()
	_ = os.Remove(probe)
	return nil
}
