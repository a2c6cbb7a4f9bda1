package export

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/neillidocker/aws-announcements-scraper/internal/announce"
	"github.com/neillidocker/aws-announcements-scraper/internal/config"
)

const (
	htmlDateLayout     = "January 2, 2006"
	htmlDateTimeLayout = "January 2, 2006 at 15:04:05"
)

type htmlEmbeddedLink struct {
	Text    string
	URL     string
	Context string
}

type htmlAnnouncement struct {
	Title      string
	URL        string
	Published  string
	Extracted  string
	Body       string
	Links      []htmlEmbeddedLink
	SearchBlob string
}

type htmlFailure struct {
	URL     string
	Message string
	Kind    string
	At      string
}

type htmlPage struct {
	IncludeMetadata  bool
	Successful       int
	TotalProcessed   int
	FailedCount      int
	ExecutionSeconds float64
	Announcements    []htmlAnnouncement
	GeneratedAt      string
	Version          string
	OutputFormat     string
	DuplicateMode    string
	Timeout          int
	MaxRetries       int
	DateFilter       string
	Failures         []htmlFailure
}

func (w *Writer) writeHTML(items []announce.Content, result *announce.Result, filename string) (string, error) {
	page := htmlPage{
		IncludeMetadata:  w.cfg.Output.IncludeMetadata,
		Successful:       len(items),
		TotalProcessed:   result.TotalProcessed,
		FailedCount:      len(result.Failures),
		ExecutionSeconds: result.Elapsed.Seconds(),
		GeneratedAt:      config.Now().Format(plainLayout),
		Version:          scraperVersion,
		OutputFormat:     w.cfg.Output.Format,
		DuplicateMode:    w.cfg.Filtering.DuplicateHandling,
		Timeout:          w.cfg.HTTP.Timeout,
		MaxRetries:       w.cfg.HTTP.MaxRetries,
		DateFilter:       w.cfg.Filtering.DateFilter,
	}

	for _, a := range items {
		ha := htmlAnnouncement{
			Title:      a.Title,
			URL:        a.URL,
			Published:  a.PublishedAt.Format(htmlDateLayout),
			Extracted:  a.ExtractedAt.Format(htmlDateTimeLayout),
			Body:       a.Body,
			SearchBlob: strings.ToLower(a.Title) + " " + strings.ToLower(a.Body),
		}
		for _, l := range a.Links {
			ha.Links = append(ha.Links, htmlEmbeddedLink{Text: l.Text, URL: l.URL, Context: l.Context})
		}
		page.Announcements = append(page.Announcements, ha)
	}

	for _, f := range result.Failures {
		page.Failures = append(page.Failures, htmlFailure{
			URL:     f.URL,
			Message: f.Message,
			Kind:    string(f.Kind),
			At:      f.At.Format(plainLayout),
		})
	}

	path := filepath.Join(w.cfg.Output.Directory, filename+".html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()

	if err := reportTemplate.Execute(f, page); err != nil {
		return "", fmt.Errorf("export: render html report: %w", err)
	}
	return path, nil
}

var reportTemplate = template.Must(template.New("report").Parse(reportHTML))

const reportHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>AWS Announcements Scraping Results</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 1200px;
            margin: 0 auto;
            padding: 20px;
            background-color: #f5f5f5;
        }
        .header {
            background: linear-gradient(135deg, #232f3e, #ff9900);
            color: white;
            padding: 30px;
            border-radius: 10px;
            margin-bottom: 30px;
            text-align: center;
        }
        .header h1 {
            margin: 0;
            font-size: 2.5em;
            font-weight: 300;
        }
        .summary {
            background: white;
            padding: 20px;
            border-radius: 8px;
            margin-bottom: 30px;
            box-shadow: 0 2px 10px rgba(0,0,0,0.1);
        }
        .summary h2 {
            color: #232f3e;
            margin-top: 0;
            border-bottom: 2px solid #ff9900;
            padding-bottom: 10px;
        }
        .stats {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 15px;
            margin-top: 15px;
        }
        .stat-item {
            background: #f8f9fa;
            padding: 15px;
            border-radius: 5px;
            text-align: center;
            border-left: 4px solid #ff9900;
        }
        .stat-value {
            font-size: 1.8em;
            font-weight: bold;
            color: #232f3e;
        }
        .stat-label {
            color: #666;
            font-size: 0.9em;
            margin-top: 5px;
        }
        .announcement {
            background: white;
            margin-bottom: 30px;
            border-radius: 8px;
            overflow: hidden;
            box-shadow: 0 2px 10px rgba(0,0,0,0.1);
            transition: transform 0.2s ease;
        }
        .announcement:hover {
            transform: translateY(-2px);
            box-shadow: 0 4px 20px rgba(0,0,0,0.15);
        }
        .announcement-header {
            background: #232f3e;
            color: white;
            padding: 20px;
        }
        .announcement-title {
            margin: 0;
            font-size: 1.4em;
            font-weight: 500;
        }
        .announcement-meta {
            margin-top: 10px;
            opacity: 0.9;
            font-size: 0.9em;
        }
        .announcement-url {
            color: #ff9900;
            text-decoration: none;
            word-break: break-all;
        }
        .announcement-url:hover {
            text-decoration: underline;
        }
        .announcement-content {
            padding: 25px;
        }
        .content-text {
            white-space: pre-wrap;
            line-height: 1.7;
            margin-bottom: 20px;
            color: #444;
        }
        .embedded-links {
            margin-top: 20px;
        }
        .embedded-links h4 {
            color: #232f3e;
            margin-bottom: 15px;
            font-size: 1.1em;
        }
        .link-item {
            background: #f8f9fa;
            padding: 12px;
            margin-bottom: 10px;
            border-radius: 5px;
            border-left: 3px solid #ff9900;
        }
        .link-text {
            font-weight: 500;
            color: #232f3e;
        }
        .link-url {
            color: #0066cc;
            text-decoration: none;
            word-break: break-all;
            font-size: 0.9em;
        }
        .link-url:hover {
            text-decoration: underline;
        }
        .link-context {
            color: #666;
            font-size: 0.85em;
            margin-top: 5px;
            font-style: italic;
        }
        .metadata {
            background: white;
            padding: 20px;
            border-radius: 8px;
            margin-top: 30px;
            box-shadow: 0 2px 10px rgba(0,0,0,0.1);
        }
        .metadata h3 {
            color: #232f3e;
            margin-top: 0;
            border-bottom: 2px solid #ff9900;
            padding-bottom: 10px;
        }
        .metadata-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 15px;
            margin-top: 15px;
        }
        .metadata-item {
            background: #f8f9fa;
            padding: 10px;
            border-radius: 5px;
        }
        .metadata-label {
            font-weight: 500;
            color: #232f3e;
        }
        .metadata-value {
            color: #666;
            margin-top: 2px;
        }
        .failed-extractions {
            background: #fff5f5;
            border: 1px solid #fed7d7;
            border-radius: 8px;
            padding: 20px;
            margin-top: 20px;
        }
        .failed-extractions h4 {
            color: #c53030;
            margin-top: 0;
        }
        .failed-item {
            background: white;
            padding: 10px;
            margin-bottom: 10px;
            border-radius: 5px;
            border-left: 3px solid #c53030;
        }
        .search-box {
            background: white;
            padding: 20px;
            border-radius: 8px;
            margin-bottom: 30px;
            box-shadow: 0 2px 10px rgba(0,0,0,0.1);
        }
        .search-input {
            width: 100%;
            padding: 12px;
            border: 2px solid #ddd;
            border-radius: 5px;
            font-size: 16px;
            box-sizing: border-box;
        }
        .search-input:focus {
            outline: none;
            border-color: #ff9900;
        }
        .hidden {
            display: none;
        }
        @media (max-width: 768px) {
            body {
                padding: 10px;
            }
            .header h1 {
                font-size: 2em;
            }
            .stats {
                grid-template-columns: 1fr;
            }
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>AWS Announcements</h1>
        <p>Scraping Results</p>
    </div>
{{if .IncludeMetadata}}
    <div class="summary">
        <h2>Summary</h2>
        <div class="stats">
            <div class="stat-item">
                <div class="stat-value">{{.Successful}}</div>
                <div class="stat-label">Successful Extractions</div>
            </div>
            <div class="stat-item">
                <div class="stat-value">{{.TotalProcessed}}</div>
                <div class="stat-label">Total Processed</div>
            </div>
            <div class="stat-item">
                <div class="stat-value">{{.FailedCount}}</div>
                <div class="stat-label">Failed Extractions</div>
            </div>
            <div class="stat-item">
                <div class="stat-value">{{printf "%.1f" .ExecutionSeconds}}s</div>
                <div class="stat-label">Execution Time</div>
            </div>
        </div>
    </div>
{{end}}
    <div class="search-box">
        <input type="text" class="search-input" placeholder="Search announcements by title or content..."
               onkeyup="searchAnnouncements(this.value)">
    </div>
{{range .Announcements}}
    <div class="announcement" data-search="{{.SearchBlob}}">
        <div class="announcement-header">
            <h3 class="announcement-title">{{.Title}}</h3>
            <div class="announcement-meta">
                <div><strong>URL:</strong> <a href="{{.URL}}" class="announcement-url" target="_blank">{{.URL}}</a></div>
                <div><strong>Published:</strong> {{.Published}}</div>
                <div><strong>Extracted:</strong> {{.Extracted}}</div>
            </div>
        </div>
        <div class="announcement-content">
            <div class="content-text">{{.Body}}</div>
{{if .Links}}
            <div class="embedded-links">
                <h4>Embedded Links ({{len .Links}})</h4>
{{range .Links}}
                <div class="link-item">
                    <div class="link-text">{{.Text}}</div>
                    <div><a href="{{.URL}}" class="link-url" target="_blank">{{.URL}}</a></div>
{{if .Context}}
                    <div class="link-context">{{.Context}}</div>
{{end}}
                </div>
{{end}}
            </div>
{{end}}
        </div>
    </div>
{{end}}
{{if .IncludeMetadata}}
    <div class="metadata">
        <h3>Extraction Metadata</h3>
        <div class="metadata-grid">
            <div class="metadata-item">
                <div class="metadata-label">Extraction Timestamp</div>
                <div class="metadata-value">{{.GeneratedAt}}</div>
            </div>
            <div class="metadata-item">
                <div class="metadata-label">Scraper Version</div>
                <div class="metadata-value">{{.Version}}</div>
            </div>
            <div class="metadata-item">
                <div class="metadata-label">Output Format</div>
                <div class="metadata-value">{{.OutputFormat}}</div>
            </div>
            <div class="metadata-item">
                <div class="metadata-label">Duplicate Handling</div>
                <div class="metadata-value">{{.DuplicateMode}}</div>
            </div>
{{if gt .Timeout 0}}
            <div class="metadata-item">
                <div class="metadata-label">HTTP Timeout</div>
                <div class="metadata-value">{{.Timeout}}s</div>
            </div>
{{end}}
{{if gt .MaxRetries 0}}
            <div class="metadata-item">
                <div class="metadata-label">Max Retries</div>
                <div class="metadata-value">{{.MaxRetries}}</div>
            </div>
{{end}}
{{if .DateFilter}}
            <div class="metadata-item">
                <div class="metadata-label">Date Filter</div>
                <div class="metadata-value">{{.DateFilter}}</div>
            </div>
{{end}}
        </div>
{{if .Failures}}
        <div class="failed-extractions">
            <h4>Failed Extractions ({{len .Failures}})</h4>
{{range .Failures}}
            <div class="failed-item">
                <div><strong>URL:</strong> {{.URL}}</div>
                <div><strong>Error:</strong> {{.Message}}</div>
                <div><strong>Type:</strong> {{.Kind}}</div>
                <div><strong>Time:</strong> {{.At}}</div>
            </div>
{{end}}
        </div>
{{end}}
    </div>
{{end}}
    <script>
        function searchAnnouncements(query) {
            const announcements = document.querySelectorAll('.announcement');
            const searchTerm = query.toLowerCase().trim();

            announcements.forEach(announcement => {
                const searchData = announcement.getAttribute('data-search');
                if (searchTerm === '' || searchData.includes(searchTerm)) {
                    announcement.classList.remove('hidden');
                } else {
                    announcement.classList.add('hidden');
                }
            });

            const visibleCount = document.querySelectorAll('.announcement:not(.hidden)').length;
            const totalCount = announcements.length;
            console.log('Showing ' + visibleCount + ' of ' + totalCount + ' announcements');
        }
    </script>
</body>
</html>
`
