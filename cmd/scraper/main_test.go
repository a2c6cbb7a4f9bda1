package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/neillidocker/aws-announcements-scraper/internal/config"
)

func TestValidateFlagsRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"bad date filter month", []string{"--date-filter", "2026-13", "--dry-run"}},
		{"bad date filter shape", []string{"--date-filter", "jan-2026", "--dry-run"}},
		{"bad language", []string{"--language", "fr", "--dry-run"}},
		{"bad output format", []string{"--output-format", "xml", "--dry-run"}},
		{"zero timeout", []string{"--timeout", "0", "--dry-run"}},
		{"negative retries", []string{"--max-retries", "-1", "--dry-run"}},
		{"negative delay", []string{"--rate-limit-delay", "-0.5", "--dry-run"}},
		{"bad log level", []string{"--log-level", "TRACE", "--dry-run"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs(tc.args)
			if err := root.ExecuteContext(context.Background()); err == nil {
				t.Fatalf("args %v should be rejected", tc.args)
			}
		})
	}
}

func TestDryRunSucceeds(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"--dry-run", "--output-dir", t.TempDir(), "--date-filter", "2026-01"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("dry run: %v", err)
	}
}

func TestFlagOverridesBeatConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "scraper.json")
	body := `{"http":{"timeout":60},"output":{"format":"csv"},"scraping":{"language":"zh"}}`
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	// 只显式改 timeout，其余应保持文件里的值
	root := newRootCmd()
	if err := root.Flags().Set("timeout", "45"); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	applyFlagOverrides(root, cfg)

	if cfg.HTTP.Timeout != 45 {
		t.Fatalf("timeout = %d, want flag override 45", cfg.HTTP.Timeout)
	}
	if cfg.Output.Format != "csv" {
		t.Fatalf("format = %q, want csv from file", cfg.Output.Format)
	}
	if cfg.Scraping.Language != "zh" {
		t.Fatalf("language = %q, want zh from file", cfg.Scraping.Language)
	}
}

func TestLanguageFlagNormalized(t *testing.T) {
	root := newRootCmd()
	if err := root.Flags().Set("language", "chinese"); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	applyFlagOverrides(root, cfg)
	if cfg.Scraping.Language != "zh" {
		t.Fatalf("language = %q, want zh", cfg.Scraping.Language)
	}
}

func TestEnsureWritableDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	if err := ensureWritableDir(dir); err != nil {
		t.Fatalf("ensureWritableDir: %v", err)
	}
	// 探针文件不能留在目录里
	if _, err := os.Stat(filepath.Join(dir, ".write_test")); !os.IsNotExist(err) {
		t.Fatal("probe file should be removed")
	}
}

func TestVersionOutput(t *testing.T) {
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"--version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if got := buf.String(); got != "AWS Announcements Scraper 1.0.0\n" {
		t.Fatalf("version output = %q", got)
	}
}
