package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/devicelab-dev/apidemos-e2e/pkg/core"
	"github.com/devicelab-dev/apidemos-e2e/pkg/logger"
)

// IndexWriter provides synchronised updates to report.json. Every update
// rewrites the file, so a reader always sees a complete index.
type IndexWriter struct {
	mu        sync.Mutex
	outputDir string
	path      string
	index     *Index
}

// NewIndexWriter creates a new IndexWriter.
func NewIndexWriter(outputDir string, index *Index) *IndexWriter {
	return &IndexWriter{
		outputDir: outputDir,
		path:      filepath.Join(outputDir, IndexFile),
		index:     index,
	}
}

// Start marks the run as started.
func (w *IndexWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.Status = StatusRunning
	w.index.StartTime = now

	w.flushLocked()
}

// SetServerVersion records the server version once known.
func (w *IndexWriter) SetServerVersion(version string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.index.Server.Version = version
}

// TestStart marks the test at idx as running.
func (w *IndexWriter) TestStart(idx int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if idx < 0 || idx >= len(w.index.Tests) {
		return
	}
	now := time.Now()
	t := &w.index.Tests[idx]
	t.Status = StatusRunning
	t.StartTime = &now

	w.flushLocked()
}

// TestEnd records a finished test, saving its attachments under the
// test's assets directory.
func (w *IndexWriter) TestEnd(result core.TestResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if result.Index < 0 || result.Index >= len(w.index.Tests) {
		return
	}
	t := &w.index.Tests[result.Index]

	start := result.StartTime
	duration := result.Duration.Milliseconds()
	t.Status = FromStepStatus(result.Status)
	t.StartTime = &start
	t.Duration = &duration
	t.Message = result.Message
	t.State = result.State
	if result.Error != "" {
		t.Error = &Error{Type: result.Category.String(), Message: result.Error}
	}

	t.Attachments = t.Attachments[:0]
	for _, a := range result.Attachments {
		path, err := w.saveAttachment(t.AssetsDir, a)
		if err != nil {
			logger.Warn("Saving %s for %s failed: %v", a.Name, t.ID, err)
			continue
		}
		t.Attachments = append(t.Attachments, Attachment{Name: a.Name, ContentType: a.ContentType, Path: path})
	}

	w.flushLocked()
}

// End marks the run as complete with the final suite outcome.
func (w *IndexWriter) End(suite *core.SuiteResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.EndTime = &now
	if suite != nil {
		w.index.Session = SessionInfo{
			ID:           suite.SessionID,
			Error:        suite.SessionError,
			ReleaseError: suite.ReleaseError,
		}
	}
	// Tests that never reported (e.g. after a crash) end as skipped
	for i := range w.index.Tests {
		if !w.index.Tests[i].Status.IsTerminal() {
			w.index.Tests[i].Status = StatusSkipped
		}
	}
	w.index.Status = w.computeRunStatus()

	w.flushLocked()
}

// GetIndex returns the current index (for reading).
func (w *IndexWriter) GetIndex() *Index {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index
}

// saveAttachment writes one artifact and returns its report-relative path.
func (w *IndexWriter) saveAttachment(assetsDir string, a core.Attachment) (string, error) {
	dir := filepath.Join(w.outputDir, assetsDir)
	if err := ensureDir(dir); err != nil {
		return "", err
	}
	rel := filepath.Join(assetsDir, a.FileName())
	if err := os.WriteFile(filepath.Join(w.outputDir, rel), a.Body, 0o644); err != nil {
		return "", err
	}
	return rel, nil
}

// flushLocked writes the index while holding the lock.
func (w *IndexWriter) flushLocked() {
	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = w.computeSummary()

	if err := atomicWriteJSON(w.path, w.index); err != nil {
		logger.Error("Writing %s failed: %v", w.path, err)
	}
}

// computeSummary calculates summary from test statuses.
func (w *IndexWriter) computeSummary() Summary {
	var s Summary
	for _, t := range w.index.Tests {
		s.Total++
		switch t.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed, StatusErrored:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// computeRunStatus determines overall run status from tests. Any test
// that did not pass fails the run.
func (w *IndexWriter) computeRunStatus() Status {
	if len(w.index.Tests) == 0 {
		return StatusSkipped
	}
	for _, t := range w.index.Tests {
		if !t.Status.IsTerminal() {
			return StatusRunning
		}
	}
	for _, t := range w.index.Tests {
		if t.Status != StatusPassed {
			return StatusFailed
		}
	}
	return StatusPassed
}

// String renders a one-line summary for logs and the console.
func (s Summary) String() string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped (%d total)", s.Passed, s.Failed, s.Skipped, s.Total)
}
