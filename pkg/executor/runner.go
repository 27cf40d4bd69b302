// Package executor runs an ordered list of tests that share one device
// session, connecting the session to reports.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/devicelab-dev/apidemos-e2e/pkg/core"
	"github.com/devicelab-dev/apidemos-e2e/pkg/logger"
)

// DefaultCleanupTimeout bounds artifact capture and session release once
// the run context may already be cancelled.
const DefaultCleanupTimeout = 30 * time.Second

// Test is one named check in a suite.
type Test struct {
	Name string
	// Requires names earlier tests that must pass before this one runs.
	Requires []string
	// Session is true when Run needs the shared device session.
	Session bool
	Run     func(ctx context.Context) error
}

// Lifecycle provides the shared session. Acquire is called at most once,
// before the first test that needs it; Release is called once at the end
// of the run if Acquire succeeded.
type Lifecycle interface {
	Acquire(ctx context.Context) (sessionID string, err error)
	Release(ctx context.Context) error
	core.ArtifactCollector
}

// RunnerConfig configures the test runner.
type RunnerConfig struct {
	SuiteName      string
	RunID          string
	Artifacts      core.ArtifactConfig
	CleanupTimeout time.Duration // 0 = DefaultCleanupTimeout

	// Live progress callbacks
	OnTestStart func(idx, total int, name string)
	OnTestEnd   func(result core.TestResult)
}

// Runner executes tests in declared order.
type Runner struct {
	config    RunnerConfig
	lifecycle Lifecycle

	acquired   bool
	acquireErr error
	sessionID  string
}

// New creates a new Runner.
func New(lifecycle Lifecycle, cfg RunnerConfig) *Runner {
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = DefaultCleanupTimeout
	}
	return &Runner{
		config:    cfg,
		lifecycle: lifecycle,
	}
}

// Validate checks that test names are unique and that every requirement
// names an earlier test.
func Validate(tests []Test) error {
	seen := make(map[string]bool, len(tests))
	for i, t := range tests {
		if t.Name == "" {
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("test %d has no name", i))
		}
		if seen[t.Name] {
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("duplicate test name %q", t.Name))
		}
		if t.Run == nil {
			return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("test %q has no body", t.Name))
		}
		for _, req := range t.Requires {
			if !seen[req] {
				return core.ErrInvalidConfig.
					WithMessage(fmt.Sprintf("test %q requires %q, which does not run before it", t.Name, req))
			}
		}
		seen[t.Name] = true
	}
	return nil
}

// Run executes tests one at a time and always releases the session
// before returning. The returned error is only for an invalid test list;
// test failures are reported in the result.
func (r *Runner) Run(ctx context.Context, tests []Test) (*core.SuiteResult, error) {
	if err := Validate(tests); err != nil {
		return nil, err
	}

	suite := &core.SuiteResult{
		Name:      r.config.SuiteName,
		RunID:     r.config.RunID,
		StartTime: time.Now(),
		Tests:     make([]core.TestResult, 0, len(tests)),
	}
	statuses := make(map[string]core.StepStatus, len(tests))

	defer func() {
		r.release(ctx, suite)
		suite.Duration = time.Since(suite.StartTime)
		suite.ComputeSummary()
	}()

	for i, t := range tests {
		if r.config.OnTestStart != nil {
			r.config.OnTestStart(i, len(tests), t.Name)
		}

		result := r.runTest(ctx, i, t, statuses)
		statuses[t.Name] = result.Status
		suite.Tests = append(suite.Tests, result)

		if r.config.OnTestEnd != nil {
			r.config.OnTestEnd(result)
		}
	}

	suite.SessionID = r.sessionID
	if r.acquireErr != nil {
		suite.SessionError = r.acquireErr.Error()
	}
	return suite, nil
}

// runTest decides whether a test can run, runs it and records the outcome.
func (r *Runner) runTest(ctx context.Context, idx int, t Test, statuses map[string]core.StepStatus) core.TestResult {
	result := core.TestResult{
		Index:     idx,
		ID:        fmt.Sprintf("test-%03d", idx),
		Name:      t.Name,
		Requires:  t.Requires,
		StartTime: time.Now(),
	}

	if ctx.Err() != nil {
		result.Status = core.StatusSkipped
		result.Message = "run cancelled"
		return result
	}

	if unmet := unmetRequirements(t, statuses); len(unmet) > 0 {
		result.Status = core.StatusSkipped
		result.Message = "requires " + strings.Join(unmet, ", ")
		logger.Info("Skipping %s: %s", t.Name, result.Message)
		return result
	}

	if t.Session {
		if err := r.ensureSession(ctx); err != nil {
			r.fail(&result, fmt.Errorf("session not available: %w", err))
			result.Duration = time.Since(result.StartTime)
			return result
		}
	}

	logger.Info("Running %s", t.Name)
	err := runSafely(ctx, t)
	result.Duration = time.Since(result.StartTime)

	if err == nil {
		result.Status = core.StatusPassed
		logger.Info("%s passed (%s)", t.Name, result.Duration.Round(time.Millisecond))
	} else {
		r.fail(&result, err)
		logger.Error("%s %s: %v", t.Name, result.Status, err)
	}

	if t.Session && r.acquired && r.config.Artifacts.ShouldCapture(result.Status) {
		r.captureArtifacts(ctx, &result)
	}
	return result
}

func (r *Runner) fail(result *core.TestResult, err error) {
	result.Status = core.StatusFor(err)
	result.Category = core.Classify(err)
	result.Error = err.Error()
	result.Message = err.Error()

	if execErr := asExecutionError(err); execErr != nil {
		result.Message = execErr.Message
	}
}

func asExecutionError(err error) *core.ExecutionError {
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		return execErr
	}
	return nil
}

// unmetRequirements lists the required tests that did not pass.
func unmetRequirements(t Test, statuses map[string]core.StepStatus) []string {
	var unmet []string
	for _, req := range t.Requires {
		if status := statuses[req]; !status.IsSuccess() {
			unmet = append(unmet, fmt.Sprintf("%q (%s)", req, status))
		}
	}
	return unmet
}

// runSafely runs the test body, turning a panic into an error.
func runSafely(ctx context.Context, t Test) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("%s panicked: %v\n%s", t.Name, rec, debug.Stack())
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return t.Run(ctx)
}

// ensureSession acquires the session on first use. A failed acquire is
// remembered and not retried.
func (r *Runner) ensureSession(ctx context.Context) error {
	if r.acquired {
		return nil
	}
	if r.acquireErr != nil {
		return r.acquireErr
	}

	id, err := r.lifecycle.Acquire(ctx)
	if err != nil {
		r.acquireErr = err
		return err
	}
	r.acquired = true
	r.sessionID = id
	return nil
}

// release ends the session even if ctx was cancelled.
func (r *Runner) release(ctx context.Context, suite *core.SuiteResult) {
	if !r.acquired {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.CleanupTimeout)
	defer cancel()

	if err := r.lifecycle.Release(rctx); err != nil {
		suite.ReleaseError = err.Error()
		logger.Warn("Session release failed: %v", err)
	}
	r.acquired = false
}

// captureArtifacts attaches a screenshot, the UI hierarchy and a state
// snapshot to a result. Capture failures are logged and ignored.
func (r *Runner) captureArtifacts(ctx context.Context, result *core.TestResult) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.CleanupTimeout)
	defer cancel()

	if r.config.Artifacts.Screenshot {
		if data, err := r.lifecycle.CaptureScreenshot(cctx); err != nil {
			logger.Warn("Screenshot for %s failed: %v", result.Name, err)
		} else if len(data) > 0 {
			result.Attachments = append(result.Attachments, core.NewScreenshotAttachment(data))
		}
	}
	if r.config.Artifacts.UIHierarchy {
		if data, err := r.lifecycle.CaptureHierarchy(cctx); err != nil {
			logger.Warn("Hierarchy for %s failed: %v", result.Name, err)
		} else if len(data) > 0 {
			result.Attachments = append(result.Attachments, core.NewHierarchyAttachment(data))
		}
	}
	result.State = r.lifecycle.CaptureState(cctx)
}
