package report

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/apidemos-e2e/pkg/logger"
)

// Allure result schema types.

// AllureResult represents a single test result in Allure format.
type AllureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	FullName      string              `json:"fullName"`
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []AllureLabel       `json:"labels"`
	Links         []AllureLink        `json:"links,omitempty"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureAttachment represents a file attachment.
type AllureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// AllureLabel represents a label on a test result.
type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureLink relates a result to another test.
type AllureLink struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// AllureStatusDetails holds failure message and trace.
type AllureStatusDetails struct {
	Message string `json:"message"`
	Trace   string `json:"trace"`
}

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	MessageRegex    string   `json:"messageRegex"`
}

// GenerateAllure generates Allure-compatible report files in <reportDir>/allure-results/.
func GenerateAllure(reportDir string) error {
	index, err := ReadIndex(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	allureDir := filepath.Join(reportDir, "allure-results")
	if err := os.MkdirAll(allureDir, 0o755); err != nil {
		return fmt.Errorf("create allure-results dir: %w", err)
	}

	// Write one result file per test
	for i := range index.Tests {
		entry := &index.Tests[i]
		result := buildAllureResult(entry, index)

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal allure result for %s: %w", entry.ID, err)
		}

		resultPath := filepath.Join(allureDir, entry.ID+"-result.json")
		if err := os.WriteFile(resultPath, data, 0o644); err != nil {
			return fmt.Errorf("write allure result %s: %w", entry.ID, err)
		}

		for _, a := range entry.Attachments {
			copyFile(filepath.Join(reportDir, a.Path), filepath.Join(allureDir, allureSource(entry, a)))
		}
	}

	if err := writeAllureCategories(allureDir); err != nil {
		return err
	}
	return writeAllureEnvironment(allureDir, index)
}

// buildAllureResult builds an AllureResult from a test entry.
func buildAllureResult(entry *TestEntry, index *Index) AllureResult {
	var startMs, stopMs int64
	if entry.StartTime != nil {
		startMs = entry.StartTime.UnixMilli()
		stopMs = startMs
		if entry.Duration != nil {
			stopMs = startMs + *entry.Duration
		}
	}

	labels := []AllureLabel{
		{Name: "suite", Value: index.Suite},
		{Name: "framework", Value: "appium"},
		{Name: "severity", Value: "normal"},
	}
	if index.Device.Name != "" {
		labels = append(labels, AllureLabel{Name: "host", Value: index.Device.Name})
	}
	if entry.Error != nil {
		labels = append(labels, AllureLabel{Name: "tag", Value: entry.Error.Type})
	}

	var links []AllureLink
	for _, req := range entry.Requires {
		links = append(links, AllureLink{Name: req, Type: "requires"})
	}

	var statusDetails AllureStatusDetails
	switch {
	case entry.Error != nil:
		statusDetails.Message = entry.Error.Message
	case entry.Message != "":
		statusDetails.Message = entry.Message
	}

	attachments := make([]AllureAttachment, 0, len(entry.Attachments))
	for _, a := range entry.Attachments {
		attachments = append(attachments, AllureAttachment{
			Name:   a.Name,
			Source: allureSource(entry, a),
			Type:   a.ContentType,
		})
	}

	return AllureResult{
		UUID:          index.RunID + "-" + entry.ID,
		HistoryID:     fnv32aHash(index.Suite + ":" + entry.Name),
		FullName:      index.Suite + ": " + entry.Name,
		Name:          entry.Name,
		Status:        mapAllureStatus(entry.Status),
		Stage:         "finished",
		Start:         startMs,
		Stop:          stopMs,
		Labels:        labels,
		Links:         links,
		StatusDetails: statusDetails,
		Attachments:   attachments,
	}
}

// allureSource is the flat file name an attachment is copied to.
func allureSource(entry *TestEntry, a Attachment) string {
	return entry.ID + "-" + filepath.Base(a.Path)
}

// copyFile copies a single file from src to dst, logging failures.
func copyFile(src, dst string) {
	in, err := os.Open(src) //#nosec G304 -- path from report.json
	if err != nil {
		logger.Warn("failed to open %s: %v", src, err)
		return
	}
	defer in.Close()

	out, err := os.Create(dst) //#nosec G304 -- inside allure-results
	if err != nil {
		logger.Warn("failed to create %s: %v", dst, err)
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		logger.Warn("failed to copy %s to %s: %v", src, dst, err)
	}
}

// mapAllureStatus maps report Status to Allure status string.
func mapAllureStatus(s Status) string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "broken"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// writeAllureCategories writes categories.json for failure categorization.
func writeAllureCategories(allureDir string) error {
	categories := []AllureCategory{
		{Name: "Element Not Found", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*not found.*"},
		{Name: "Text Mismatch", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*want it to contain.*"},
		{Name: "Timeout", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*timed out.*|.*not met within.*"},
		{Name: "App Not Installed", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*not installed.*"},
		{Name: "Connection Error", MatchedStatuses: []string{"failed", "broken"}, MessageRegex: "(?i).*not reachable.*|.*could not reach.*|.*connection.*"},
		{Name: "Session Not Created", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*session.*"},
	}

	data, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	path := filepath.Join(allureDir, "categories.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}

	return nil
}

// writeAllureEnvironment writes environment.properties with device and server metadata.
func writeAllureEnvironment(allureDir string, index *Index) error {
	var b strings.Builder
	b.WriteString("framework=appium\n")

	props := []struct{ key, value string }{
		{"device.name", index.Device.Name},
		{"device.platform", index.Device.Platform},
		{"device.automationName", index.Device.AutomationName},
		{"app.id", index.App.ID},
		{"server.url", index.Server.URL},
		{"server.version", index.Server.Version},
		{"runner.version", index.Runner.Version},
		{"run.id", index.RunID},
	}
	for _, p := range props {
		if p.value != "" {
			b.WriteString(fmt.Sprintf("%s=%s\n", p.key, p.value))
		}
	}

	path := filepath.Join(allureDir, "environment.properties")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}

	return nil
}
