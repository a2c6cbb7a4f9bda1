package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/neillidocker/aws-announcements-scraper/internal/announce"
	"github.com/neillidocker/aws-announcements-scraper/internal/config"
	"github.com/neillidocker/aws-announcements-scraper/internal/logger"
)

const scraperVersion = "1.0.0"

const (
	isoLayout   = "2006-01-02T15:04:05"
	plainLayout = "2006-01-02 15:04:05"
)

// Writer 把一轮抓取结果写成 json/csv/txt/html 文件。
// skip 去重模式下同一个 Writer 的多次写入共享已见 URL 集合。
type Writer struct {
	cfg        *config.Config
	storedURLs map[string]bool
}

func NewWriter(cfg *config.Config) (*Writer, error) {
	if err := os.MkdirAll(cfg.Output.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("export: create output directory %s: %w", cfg.Output.Directory, err)
	}
	return &Writer{
		cfg:        cfg,
		storedURLs: make(map[string]bool),
	}, nil
}

// Store 按配置的格式写出结果文件，返回文件路径
func (w *Writer) Store(result *announce.Result) (string, error) {
	log := logger.S("export")
	log.Infof("storing %d successful extractions", len(result.Extracted))

	filtered := w.handleDuplicates(result.Extracted)

	ts := config.Now().Format("20060102_150405")
	filename := strings.ReplaceAll(w.cfg.Output.FilenameTemplate, "{timestamp}", ts)

	var (
		path string
		err  error
	)
	switch w.cfg.Output.Format {
	case "json":
		path, err = w.writeJSON(filtered, result, filename)
	case "csv":
		path, err = w.writeCSV(filtered, result, filename)
	case "txt":
		path, err = w.writeText(filtered, result, filename)
	case "html":
		path, err = w.writeHTML(filtered, result, filename)
	default:
		return "", fmt.Errorf("export: unsupported output format %q", w.cfg.Output.Format)
	}
	if err != nil {
		return "", err
	}

	log.Infof("data stored successfully to %s", path)
	return path, nil
}

// handleDuplicates 按配置处理重复 URL：
// skip 丢弃，overwrite 保留全部，version 给重复项的标题加版本号。
func (w *Writer) handleDuplicates(items []announce.Content) []announce.Content {
	switch w.cfg.Filtering.DuplicateHandling {
	case "overwrite":
		for _, a := range items {
			w.storedURLs[a.URL] = true
		}
		return items

	case "version":
		counts := make(map[string]int)
		out := make([]announce.Content, 0, len(items))
		for _, a := range items {
			counts[a.URL]++
			if n := counts[a.URL]; n > 1 {
				a.Title = fmt.Sprintf("%s (v%d)", a.Title, n)
			}
			w.storedURLs[a.URL] = true
			out = append(out, a)
		}
		return out

	default:
		out := make([]announce.Content, 0, len(items))
		for _, a := range items {
			if w.storedURLs[a.URL] {
				logger.S("export").Debugf("skipping duplicate url: %s", a.URL)
				continue
			}
			w.storedURLs[a.URL] = true
			out = append(out, a)
		}
		return out
	}
}

type jsonEmbeddedLink struct {
	Text    string `json:"text"`
	URL     string `json:"url"`
	Context string `json:"context"`
}

type jsonAnnouncement struct {
	Title               string             `json:"title"`
	URL                 string             `json:"url"`
	PublicationDate     string             `json:"publication_date"`
	ContentText         string             `json:"content_text"`
	EmbeddedLinks       []jsonEmbeddedLink `json:"embedded_links"`
	ExtractionTimestamp string             `json:"extraction_timestamp"`
}

type jsonSummary struct {
	TotalProcessed        int     `json:"total_processed"`
	SuccessfulExtractions int     `json:"successful_extractions"`
	FailedExtractions     int     `json:"failed_extractions"`
	ExecutionTime         float64 `json:"execution_time"`
}

type jsonConfigInfo struct {
	Timeout    int    `json:"timeout"`
	MaxRetries int    `json:"max_retries"`
	DateFilter string `json:"date_filter"`
}

type jsonMetadata struct {
	ExtractionTimestamp string         `json:"extraction_timestamp"`
	ScraperVersion      string         `json:"scraper_version"`
	OutputFormat        string         `json:"output_format"`
	DuplicateHandling   string         `json:"duplicate_handling"`
	Configuration       jsonConfigInfo `json:"configuration"`
}

type jsonFailure struct {
	URL          string `json:"url"`
	ErrorMessage string `json:"error_message"`
	ErrorType    string `json:"error_type"`
	Timestamp    string `json:"timestamp"`
}

type jsonOutput struct {
	Announcements     []jsonAnnouncement `json:"announcements"`
	Summary           jsonSummary        `json:"summary"`
	Metadata          *jsonMetadata      `json:"metadata,omitempty"`
	FailedExtractions []jsonFailure      `json:"failed_extractions,omitempty"`
}

func (w *Writer) writeJSON(items []announce.Content, result *announce.Result, filename string) (string, error) {
	out := jsonOutput{
		Announcements: make([]jsonAnnouncement, 0, len(items)),
		Summary: jsonSummary{
			TotalProcessed:        result.TotalProcessed,
			SuccessfulExtractions: len(items),
			FailedExtractions:     len(result.Failures),
			ExecutionTime:         result.Elapsed.Seconds(),
		},
	}

	for _, a := range items {
		ja := jsonAnnouncement{
			Title:               a.Title,
			URL:                 a.URL,
			PublicationDate:     a.PublishedAt.Format(isoLayout),
			ContentText:         a.Body,
			EmbeddedLinks:       make([]jsonEmbeddedLink, 0, len(a.Links)),
			ExtractionTimestamp: a.ExtractedAt.Format(isoLayout),
		}
		for _, l := range a.Links {
			ja.EmbeddedLinks = append(ja.EmbeddedLinks, jsonEmbeddedLink{Text: l.Text, URL: l.URL, Context: l.Context})
		}
		out.Announcements = append(out.Announcements, ja)
	}

	if w.cfg.Output.IncludeMetadata {
		out.Metadata = &jsonMetadata{
			ExtractionTimestamp: config.Now().Format(isoLayout),
			ScraperVersion:      scraperVersion,
			OutputFormat:        w.cfg.Output.Format,
			DuplicateHandling:   w.cfg.Filtering.DuplicateHandling,
			Configuration: jsonConfigInfo{
				Timeout:    w.cfg.HTTP.Timeout,
				MaxRetries: w.cfg.HTTP.MaxRetries,
				DateFilter: w.cfg.Filtering.DateFilter,
			},
		}
		for _, f := range result.Failures {
			out.FailedExtractions = append(out.FailedExtractions, jsonFailure{
				URL:          f.URL,
				ErrorMessage: f.Message,
				ErrorType:    string(f.Kind),
				Timestamp:    f.At.Format(isoLayout),
			})
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: marshal json: %w", err)
	}

	path := filepath.Join(w.cfg.Output.Directory, filename+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}
	return path, nil
}

func (w *Writer) writeCSV(items []announce.Content, result *announce.Result, filename string) (string, error) {
	path := filepath.Join(w.cfg.Output.Directory, filename+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)

	headers := []string{"title", "url", "publication_date", "content_text", "embedded_links_count", "extraction_timestamp"}
	if w.cfg.Output.IncludeMetadata {
		headers = append(headers, "total_processed", "execution_time")
	}
	if err := cw.Write(headers); err != nil {
		return "", fmt.Errorf("export: write csv header: %w", err)
	}

	for _, a := range items {
		row := []string{
			a.Title,
			a.URL,
			a.PublishedAt.Format(isoLayout),
			a.Body,
			strconv.Itoa(len(a.Links)),
			a.ExtractedAt.Format(isoLayout),
		}
		if w.cfg.Output.IncludeMetadata {
			row = append(row,
				strconv.Itoa(result.TotalProcessed),
				strconv.FormatFloat(result.Elapsed.Seconds(), 'f', -1, 64),
			)
		}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("export: write csv row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("export: flush csv: %w", err)
	}
	return path, nil
}

func (w *Writer) writeText(items []announce.Content, result *announce.Result, filename string) (string, error) {
	var b strings.Builder

	if w.cfg.Output.IncludeMetadata {
		b.WriteString("AWS Announcements Scraping Results\n")
		b.WriteString(strings.Repeat("=", 40) + "\n\n")
		fmt.Fprintf(&b, "Extraction Date: %s\n", config.Now().Format(plainLayout))
		fmt.Fprintf(&b, "Total Processed: %d\n", result.TotalProcessed)
		fmt.Fprintf(&b, "Successful Extractions: %d\n", len(items))
		fmt.Fprintf(&b, "Failed Extractions: %d\n", len(result.Failures))
		fmt.Fprintf(&b, "Execution Time: %.2f seconds\n", result.Elapsed.Seconds())
		fmt.Fprintf(&b, "Duplicate Handling: %s\n\n", w.cfg.Filtering.DuplicateHandling)
	}

	for i, a := range items {
		fmt.Fprintf(&b, "Announcement %d\n", i+1)
		b.WriteString(strings.Repeat("-", 20) + "\n")
		fmt.Fprintf(&b, "Title: %s\n", a.Title)
		fmt.Fprintf(&b, "URL: %s\n", a.URL)
		fmt.Fprintf(&b, "Publication Date: %s\n", a.PublishedAt.Format(plainLayout))
		fmt.Fprintf(&b, "Extraction Time: %s\n", a.ExtractedAt.Format(plainLayout))
		fmt.Fprintf(&b, "\nContent:\n%s\n", a.Body)

		if len(a.Links) > 0 {
			fmt.Fprintf(&b, "\nEmbedded Links (%d):\n", len(a.Links))
			for j, l := range a.Links {
				fmt.Fprintf(&b, "  %d. %s -> %s\n", j+1, l.Text, l.URL)
				if l.Context != "" {
					fmt.Fprintf(&b, "     Context: %s\n", l.Context)
				}
			}
		}

		b.WriteString("\n" + strings.Repeat("=", 60) + "\n\n")
	}

	if w.cfg.Output.IncludeMetadata && len(result.Failures) > 0 {
		b.WriteString("Failed Extractions\n")
		b.WriteString(strings.Repeat("=", 20) + "\n\n")
		for _, fe := range result.Failures {
			fmt.Fprintf(&b, "URL: %s\n", fe.URL)
			fmt.Fprintf(&b, "Error: %s\n", fe.Message)
			fmt.Fprintf(&b, "Type: %s\n", fe.Kind)
			fmt.Fprintf(&b, "Time: %s\n\n", fe.At.Format(plainLayout))
		}
	}

	path := filepath.Join(w.cfg.Output.Directory, filename+".txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}
	return path, nil
}
