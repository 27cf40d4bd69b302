package core

import (
	"time"
)

// TestResult captures the complete outcome of executing a single test
type TestResult struct {
	// Identity
	Index    int      `json:"index"` // 0-based position in the suite
	ID       string   `json:"id"`    // Stable id: test-000, test-001, ...
	Name     string   `json:"name"`
	Requires []string `json:"requires,omitempty"`

	// Status
	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Output
	Message string `json:"message,omitempty"` // Human-readable explanation
	Error   string `json:"error,omitempty"`   // Technical error message

	// Debug Artifacts
	Attachments []Attachment   `json:"attachments,omitempty"`
	State       *StateSnapshot `json:"state,omitempty"` // Device state captured on failure
}

// SuiteResult captures the complete outcome of one session-scoped run
type SuiteResult struct {
	// Identity
	Name  string `json:"name"`
	RunID string `json:"runId"`

	// Session
	SessionID    string `json:"sessionId,omitempty"`
	SessionError string `json:"sessionError,omitempty"` // Acquire failure, if any
	ReleaseError string `json:"releaseError,omitempty"` // Release failure, if any

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Tests []TestResult `json:"tests"`

	// Summary
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// ComputeSummary calculates test counts from the Tests slice
func (s *SuiteResult) ComputeSummary() {
	s.Total = len(s.Tests)
	s.Passed = 0
	s.Failed = 0
	s.Skipped = 0

	for _, t := range s.Tests {
		switch t.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed, StatusErrored:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
}

// Status aggregates the suite status from test results
// Rules:
// - Any failed/errored/skipped test → StatusFailed
// - No tests → StatusSkipped
// - Otherwise → StatusPassed
func (s *SuiteResult) Status() StepStatus {
	if len(s.Tests) == 0 {
		return StatusSkipped
	}
	for _, t := range s.Tests {
		if !t.Status.IsSuccess() {
			return StatusFailed
		}
	}
	return StatusPassed
}

// Success returns true if every test passed
func (s *SuiteResult) Success() bool {
	return s.Status() == StatusPassed
}

// Find returns the result for the named test, or nil.
func (s *SuiteResult) Find(name string) *TestResult {
	for i := range s.Tests {
		if s.Tests[i].Name == name {
			return &s.Tests[i]
		}
	}
	return nil
}
