package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/devicelab-dev/apidemos-e2e/pkg/core"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow test threshold
const slowThreshold = 5 * time.Second

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// progress prints live test progress.
type progress struct {
	out io.Writer
}

func (p progress) testStart(idx, total int, name string) {
	fmt.Fprintf(p.out, "  %s[%d/%d]%s %s%s%s\n",
		color(colorCyan), idx+1, total, color(colorReset),
		color(colorBold), name, color(colorReset))
}

// testEnd prints a finished test and the report paths of its artifacts.
func (p progress) testEnd(r core.TestResult, artifacts []string) {
	dur := formatDuration(r.Duration)

	switch r.Status {
	case core.StatusPassed:
		symbol, symbolColor, durColor := "✓", color(colorGreen), ""
		if r.Duration >= slowThreshold {
			symbol, symbolColor, durColor = "⚠", color(colorYellow), color(colorYellow)
		}
		fmt.Fprintf(p.out, "    %s%s%s passed %s(%s)%s\n",
			symbolColor, symbol, color(colorReset), durColor, dur, color(colorReset))
	case core.StatusSkipped:
		fmt.Fprintf(p.out, "    %s-%s skipped: %s\n", color(colorCyan), color(colorReset), r.Message)
	default:
		fmt.Fprintf(p.out, "    %s✗%s %s (%s)\n", color(colorRed), color(colorReset), r.Status, dur)
		if r.Error != "" {
			fmt.Fprintf(p.out, "      %s╰─%s %s\n", color(colorGray), color(colorReset), r.Error)
		}
		for _, path := range artifacts {
			fmt.Fprintf(p.out, "      %s╰─%s %s\n", color(colorGray), color(colorReset), path)
		}
	}
}

// printSummary prints the result table.
func printSummary(out io.Writer, suite *core.SuiteResult) {
	fmt.Fprintln(out)
	if suite.Passed > 0 {
		fmt.Fprintf(out, "  %s%d passing%s (%s)\n", color(colorGreen), suite.Passed, color(colorReset), formatDuration(suite.Duration))
	}
	if suite.Failed > 0 {
		fmt.Fprintf(out, "  %s%d failing%s\n", color(colorRed), suite.Failed, color(colorReset))
	}
	if suite.Skipped > 0 {
		fmt.Fprintf(out, "  %s%d skipped%s\n", color(colorCyan), suite.Skipped, color(colorReset))
	}
	fmt.Fprintln(out)

	tableWidth := 72
	fmt.Fprintln(out, strings.Repeat("═", tableWidth))
	fmt.Fprintf(out, "  %-40s %-10s %10s\n", "Test", "Status", "Duration")
	fmt.Fprintln(out, strings.Repeat("─", tableWidth))

	for _, r := range suite.Tests {
		var status, statusColor string
		switch r.Status {
		case core.StatusPassed:
			status, statusColor = "✓ PASS", color(colorGreen)
		case core.StatusSkipped:
			status, statusColor = "- SKIP", color(colorCyan)
		case core.StatusErrored:
			status, statusColor = "✗ ERROR", color(colorRed)
		default:
			status, statusColor = "✗ FAIL", color(colorRed)
		}

		name := r.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		fmt.Fprintf(out, "  %-40s %s%-10s%s %10s\n", name, statusColor, status, color(colorReset), formatDuration(r.Duration))
	}

	fmt.Fprintln(out, strings.Repeat("─", tableWidth))
	totalColor := color(colorGreen)
	if !suite.Success() {
		totalColor = color(colorRed)
	}
	fmt.Fprintf(out, "  %s%-40s%s %s%-10s%s %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		totalColor, fmt.Sprintf("%d/%d", suite.Passed, suite.Total), color(colorReset),
		formatDuration(suite.Duration))
	fmt.Fprintln(out, strings.Repeat("═", tableWidth))

	if suite.SessionError != "" {
		fmt.Fprintf(out, "  %sSession:%s %s\n", color(colorRed), color(colorReset), suite.SessionError)
	}
	if suite.ReleaseError != "" {
		fmt.Fprintf(out, "  %s⚠ Release:%s %s\n", color(colorYellow), color(colorReset), suite.ReleaseError)
	}
}

// formatDuration shows milliseconds below one second, seconds otherwise.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}
