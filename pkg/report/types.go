// Package report provides JSON-based test reporting with live updates.
//
// Layout of an output directory:
//   - report.json: the index (run metadata, summary and one entry per
//     test), rewritten atomically after every test
//   - assets/test-XXX/: artifacts captured for a test (screenshot.png,
//     hierarchy.xml)
//   - report.html and allure-results/: optional renderings of report.json
package report

import (
	"time"

	"github.com/devicelab-dev/apidemos-e2e/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusErrored || s == StatusSkipped
}

// FromStepStatus converts an executor status.
func FromStepStatus(s core.StepStatus) Status {
	switch s {
	case core.StatusRunning:
		return StatusRunning
	case core.StatusPassed:
		return StatusPassed
	case core.StatusFailed:
		return StatusFailed
	case core.StatusErrored:
		return StatusErrored
	case core.StatusSkipped:
		return StatusSkipped
	default:
		return StatusPending
	}
}

// ============================================================================
// INDEX (report.json)
// ============================================================================

// Index is the report file that binds everything together.
type Index struct {
	Version     string      `json:"version"`
	RunID       string      `json:"runId"`
	UpdateSeq   uint64      `json:"updateSeq"`
	Suite       string      `json:"suite"`
	Status      Status      `json:"status"`
	StartTime   time.Time   `json:"startTime"`
	EndTime     *time.Time  `json:"endTime,omitempty"`
	LastUpdated time.Time   `json:"lastUpdated"`
	Device      Device      `json:"device"`
	App         App         `json:"app"`
	Server      Server      `json:"server"`
	Runner      RunnerInfo  `json:"runner"`
	Session     SessionInfo `json:"session"`
	Summary     Summary     `json:"summary"`
	Tests       []TestEntry `json:"tests"`
}

// Device contains device information.
type Device struct {
	Name           string `json:"name"`
	Platform       string `json:"platform"`
	AutomationName string `json:"automationName,omitempty"`
}

// App contains application information.
type App struct {
	ID   string `json:"id"`             // Package name
	Path string `json:"path,omitempty"` // APK path on the server host
}

// Server describes the Appium server the run talked to.
type Server struct {
	URL     string `json:"url"`
	Version string `json:"version,omitempty"`
}

// RunnerInfo contains apidemos-e2e information.
type RunnerInfo struct {
	Version string `json:"version"`
}

// SessionInfo records the shared session.
type SessionInfo struct {
	ID           string `json:"id,omitempty"`
	Error        string `json:"error,omitempty"`
	ReleaseError string `json:"releaseError,omitempty"`
}

// Summary contains aggregated counts. Errored tests count as failed.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
}

// TestEntry is the index entry for one test.
type TestEntry struct {
	Index       int                 `json:"index"`
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Requires    []string            `json:"requires,omitempty"`
	AssetsDir   string              `json:"assetsDir"`
	Status      Status              `json:"status"`
	StartTime   *time.Time          `json:"startTime,omitempty"`
	Duration    *int64              `json:"duration,omitempty"` // milliseconds
	Message     string              `json:"message,omitempty"`
	Error       *Error              `json:"error,omitempty"`
	Attachments []Attachment        `json:"attachments,omitempty"`
	State       *core.StateSnapshot `json:"state,omitempty"`
}

// Error contains error details.
type Error struct {
	Type    string `json:"type"` // assertion, timeout, connection, app, config, unknown
	Message string `json:"message"`
}

// Attachment points at an artifact file (paths only, never inline data).
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Path        string `json:"path"` // Relative to the output directory
}
