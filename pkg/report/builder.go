package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/apidemos-e2e/pkg/core"
)

// TestSpec names a test ahead of execution.
type TestSpec struct {
	Name     string
	Requires []string
}

// BuilderConfig contains configuration for building the report skeleton.
type BuilderConfig struct {
	RunID         string             // Generated when empty
	Suite         string             // Suite display name
	Platform      *core.PlatformInfo // Device, app and server
	RunnerVersion string             // apidemos-e2e version
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// TestID returns the stable id of the test at idx.
func TestID(idx int) string {
	return fmt.Sprintf("test-%03d", idx)
}

// BuildSkeleton creates the initial report structure with every test
// pending. It is written before execution so consumers see the plan.
func BuildSkeleton(tests []TestSpec, cfg BuilderConfig) *Index {
	now := time.Now()
	runID := cfg.RunID
	if runID == "" {
		runID = NewRunID()
	}

	index := &Index{
		Version:     Version,
		RunID:       runID,
		Suite:       cfg.Suite,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
		Runner:      RunnerInfo{Version: cfg.RunnerVersion},
		Summary: Summary{
			Total:   len(tests),
			Pending: len(tests),
		},
		Tests: make([]TestEntry, len(tests)),
	}

	if p := cfg.Platform; p != nil {
		index.Device = Device{Name: p.DeviceName, Platform: p.Platform, AutomationName: p.AutomationName}
		index.App = App{ID: p.AppID, Path: p.AppPath}
		index.Server = Server{URL: p.ServerURL, Version: p.ServerVersion}
	}

	for i, t := range tests {
		id := TestID(i)
		index.Tests[i] = TestEntry{
			Index:     i,
			ID:        id,
			Name:      t.Name,
			Requires:  t.Requires,
			AssetsDir: filepath.Join("assets", id),
			Status:    StatusPending,
		}
	}
	return index
}

// WriteSkeleton writes the initial report.json and the assets directory.
func WriteSkeleton(outputDir string, index *Index) error {
	if err := ensureDir(filepath.Join(outputDir, "assets")); err != nil {
		return fmt.Errorf("create assets dir: %w", err)
	}
	if err := atomicWriteJSON(filepath.Join(outputDir, IndexFile), index); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}
