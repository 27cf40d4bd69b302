package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HTMLConfig contains configuration for HTML report generation.
type HTMLConfig struct {
	OutputPath  string // Path to write the HTML file
	EmbedAssets bool   // Embed screenshots as base64 (makes file larger but portable)
	Title       string // Report title (default: "<suite> Report")
}

// GenerateHTML generates an HTML report from the report directory.
func GenerateHTML(reportDir string, cfg HTMLConfig) error {
	index, err := ReadIndex(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	if cfg.Title == "" {
		cfg.Title = index.Suite + " Report"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(reportDir, "report.html")
	}

	data := buildHTMLData(index, reportDir, cfg)

	html, err := renderHTML(data)
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	if err := os.WriteFile(cfg.OutputPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write html: %w", err)
	}

	return nil
}

// HTMLData contains all data needed for the HTML template.
type HTMLData struct {
	Title         string
	GeneratedAt   string
	Index         *Index
	Tests         []TestHTMLData
	TotalDuration string
	PassRate      float64
}

// TestHTMLData contains test data formatted for HTML.
type TestHTMLData struct {
	TestEntry
	StatusClass string
	DurationStr string
	Screenshot  template.URL // data URL or relative path
	Hierarchy   string       // relative path
}

func buildHTMLData(index *Index, reportDir string, cfg HTMLConfig) HTMLData {
	tests := make([]TestHTMLData, len(index.Tests))
	for i, t := range index.Tests {
		td := TestHTMLData{
			TestEntry:   t,
			StatusClass: string(t.Status),
			DurationStr: formatDuration(t.Duration),
		}
		for _, a := range t.Attachments {
			switch {
			case strings.HasPrefix(a.ContentType, "image/"):
				td.Screenshot = template.URL(filepath.ToSlash(a.Path)) //#nosec G203 -- path written by IndexWriter
				if cfg.EmbedAssets {
					if embedded := loadAsBase64(filepath.Join(reportDir, a.Path)); embedded != "" {
						td.Screenshot = template.URL(embedded) //#nosec G203 -- base64 data URL
					}
				}
			default:
				td.Hierarchy = filepath.ToSlash(a.Path)
			}
		}
		tests[i] = td
	}

	var totalMs int64
	if index.EndTime != nil {
		totalMs = index.EndTime.Sub(index.StartTime).Milliseconds()
	}

	var passRate float64
	if index.Summary.Total > 0 {
		passRate = float64(index.Summary.Passed) / float64(index.Summary.Total) * 100
	}

	return HTMLData{
		Title:         cfg.Title,
		GeneratedAt:   time.Now().Format("2006-01-02 15:04:05"),
		Index:         index,
		Tests:         tests,
		TotalDuration: formatDuration(&totalMs),
		PassRate:      passRate,
	}
}

func formatDuration(ms *int64) string {
	if ms == nil {
		return "-"
	}
	d := time.Duration(*ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", *ms)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

func loadAsBase64(path string) string {
	data, err := os.ReadFile(path) //#nosec G304 -- path from report.json
	if err != nil {
		return ""
	}
	ext := strings.ToLower(filepath.Ext(path))
	mimeType := "image/png"
	if ext == ".jpg" || ext == ".jpeg" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

func renderHTML(data HTMLData) (string, error) {
	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f9fafb;
            --text-primary: #000000;
            --text-muted: rgb(107, 114, 128);
            --border-color: #e5e7eb;
            --passed: #22c55e;
            --failed: #ef4444;
            --errored: #f97316;
            --skipped: #eab308;
            --running: #06b6d4;
            --pending: #6b7280;
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.5;
        }
        .header { background: var(--bg-secondary); border-bottom: 1px solid var(--border-color); padding: 16px 24px; }
        .header h1 { font-size: 18px; }
        .meta { color: var(--text-muted); font-size: 13px; }
        .summary { display: flex; gap: 16px; padding: 16px 24px; }
        .stat { border: 1px solid var(--border-color); border-radius: 6px; padding: 8px 16px; }
        .stat .value { font-size: 20px; font-weight: 600; }
        table { width: calc(100% - 48px); margin: 0 24px 24px; border-collapse: collapse; font-size: 14px; }
        th, td { text-align: left; padding: 8px; border-bottom: 1px solid var(--border-color); vertical-align: top; }
        .badge { display: inline-block; padding: 2px 8px; border-radius: 10px; color: #fff; font-size: 12px; }
        .badge.passed { background: var(--passed); }
        .badge.failed { background: var(--failed); }
        .badge.errored { background: var(--errored); }
        .badge.skipped { background: var(--skipped); }
        .badge.running { background: var(--running); }
        .badge.pending { background: var(--pending); }
        .error { color: var(--failed); font-family: monospace; white-space: pre-wrap; }
        .requires { color: var(--text-muted); font-size: 12px; }
        img.screenshot { max-width: 240px; border: 1px solid var(--border-color); }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Title}}</h1>
        <div class="meta">
            Run {{.Index.RunID}} &middot; {{.Index.Device.Name}} ({{.Index.Device.Platform}}, {{.Index.Device.AutomationName}})
            &middot; {{.Index.App.ID}} &middot; Appium {{.Index.Server.URL}}{{if .Index.Server.Version}} v{{.Index.Server.Version}}{{end}}
        </div>
        <div class="meta">Generated {{.GeneratedAt}} &middot; Duration {{.TotalDuration}}{{if .Index.Session.ID}} &middot; Session {{.Index.Session.ID}}{{end}}</div>
        {{if .Index.Session.Error}}<div class="error">Session: {{.Index.Session.Error}}</div>{{end}}
        {{if .Index.Session.ReleaseError}}<div class="error">Release: {{.Index.Session.ReleaseError}}</div>{{end}}
    </div>
    <div class="summary">
        <div class="stat"><div class="value"><span class="badge {{.Index.Status}}">{{.Index.Status}}</span></div>Status</div>
        <div class="stat"><div class="value">{{.Index.Summary.Total}}</div>Total</div>
        <div class="stat"><div class="value">{{.Index.Summary.Passed}}</div>Passed</div>
        <div class="stat"><div class="value">{{.Index.Summary.Failed}}</div>Failed</div>
        <div class="stat"><div class="value">{{.Index.Summary.Skipped}}</div>Skipped</div>
        <div class="stat"><div class="value">{{printf "%.0f" .PassRate}}%</div>Pass rate</div>
    </div>
    <table>
        <thead>
            <tr><th>#</th><th>Test</th><th>Status</th><th>Duration</th><th>Details</th><th>Artifacts</th></tr>
        </thead>
        <tbody>
        {{range .Tests}}
            <tr id="{{.ID}}">
                <td>{{.Index}}</td>
                <td>{{.Name}}{{if .Requires}}<div class="requires">requires {{range $i, $r := .Requires}}{{if $i}}, {{end}}{{$r}}{{end}}</div>{{end}}</td>
                <td><span class="badge {{.StatusClass}}">{{.Status}}</span></td>
                <td>{{.DurationStr}}</td>
                <td>
                    {{if .Error}}<div class="error">[{{.Error.Type}}] {{.Error.Message}}</div>{{else if .Message}}{{.Message}}{{end}}
                </td>
                <td>
                    {{if .Screenshot}}<img class="screenshot" src="{{.Screenshot}}" alt="screenshot">{{end}}
                    {{if .Hierarchy}}<div><a href="{{.Hierarchy}}">hierarchy</a></div>{{end}}
                </td>
            </tr>
        {{end}}
        </tbody>
    </table>
</body>
</html>
`
