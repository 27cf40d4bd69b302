package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/apidemos-e2e/pkg/core"
)

// writeFinishedReport runs a three-test report to completion: one pass,
// one failure with artifacts, one skip.
func writeFinishedReport(t *testing.T) string {
	t.Helper()
	w, dir := newWriter(t)
	w.Start()
	w.SetServerVersion("2.11.0")

	start := time.Now()
	w.TestEnd(core.TestResult{Index: 0, Status: core.StatusPassed, StartTime: start, Duration: 2 * time.Second})
	w.TestEnd(core.TestResult{
		Index:     1,
		Status:    core.StatusFailed,
		Category:  core.ErrCategoryApp,
		Error:     "io.appium.android.apis is not installed",
		StartTime: start,
		Duration:  300 * time.Millisecond,
		Attachments: []core.Attachment{
			core.NewScreenshotAttachment([]byte("\x89PNG")),
			core.NewHierarchyAttachment([]byte("<hierarchy/>")),
		},
	})
	w.TestEnd(core.TestResult{Index: 2, Status: core.StatusSkipped, Message: `requires "app installed" (failed)`})
	w.End(&core.SuiteResult{SessionID: "sess-1"})
	return dir
}

func readAllureResult(t *testing.T, dir, id string) AllureResult {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "allure-results", id+"-result.json"))
	if err != nil {
		t.Fatalf("read %s result: %v", id, err)
	}
	var r AllureResult
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("unmarshal %s result: %v", id, err)
	}
	return r
}

func TestGenerateAllure(t *testing.T) {
	dir := writeFinishedReport(t)

	if err := GenerateAllure(dir); err != nil {
		t.Fatalf("GenerateAllure: %v", err)
	}

	passed := readAllureResult(t, dir, "test-000")
	if passed.Status != "passed" || passed.Name != "server availability" {
		t.Errorf("passed result = %+v", passed)
	}
	if passed.Stop-passed.Start != 2000 {
		t.Errorf("duration = %dms, want 2000", passed.Stop-passed.Start)
	}
	if passed.FullName != "ApiDemos: server availability" {
		t.Errorf("FullName = %q", passed.FullName)
	}

	failed := readAllureResult(t, dir, "test-001")
	if failed.Status != "failed" {
		t.Errorf("failed status = %q", failed.Status)
	}
	if !strings.Contains(failed.StatusDetails.Message, "not installed") {
		t.Errorf("StatusDetails = %+v", failed.StatusDetails)
	}
	if len(failed.Attachments) != 2 {
		t.Fatalf("attachments = %+v", failed.Attachments)
	}
	for _, a := range failed.Attachments {
		if _, err := os.Stat(filepath.Join(dir, "allure-results", a.Source)); err != nil {
			t.Errorf("attachment %s not copied: %v", a.Source, err)
		}
		if !strings.HasPrefix(a.Source, "test-001-") {
			t.Errorf("attachment source %q should be prefixed by the test id", a.Source)
		}
	}

	skipped := readAllureResult(t, dir, "test-002")
	if skipped.Status != "skipped" {
		t.Errorf("skipped status = %q", skipped.Status)
	}
	if len(skipped.Links) != 1 || skipped.Links[0].Name != "app installed" {
		t.Errorf("Links = %+v", skipped.Links)
	}
	if skipped.StatusDetails.Message == "" {
		t.Error("skip reason should be carried into statusDetails")
	}
}

func TestGenerateAllure_EnvironmentAndCategories(t *testing.T) {
	dir := writeFinishedReport(t)
	if err := GenerateAllure(dir); err != nil {
		t.Fatalf("GenerateAllure: %v", err)
	}

	env, err := os.ReadFile(filepath.Join(dir, "allure-results", "environment.properties"))
	if err != nil {
		t.Fatalf("read environment.properties: %v", err)
	}
	for _, want := range []string{
		"device.name=emulator-5554",
		"app.id=io.appium.android.apis",
		"server.version=2.11.0",
		"run.id=run-1",
	} {
		if !strings.Contains(string(env), want) {
			t.Errorf("environment.properties missing %q:\n%s", want, env)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "allure-results", "categories.json"))
	if err != nil {
		t.Fatalf("read categories.json: %v", err)
	}
	var categories []AllureCategory
	if err := json.Unmarshal(data, &categories); err != nil {
		t.Fatalf("unmarshal categories: %v", err)
	}
	if len(categories) == 0 {
		t.Error("expected categories")
	}
}

func TestGenerateAllure_NoReport(t *testing.T) {
	if err := GenerateAllure(t.TempDir()); err == nil {
		t.Error("expected error without report.json")
	}
}

func TestMapAllureStatus(t *testing.T) {
	tests := map[Status]string{
		StatusPassed:  "passed",
		StatusFailed:  "failed",
		StatusErrored: "broken",
		StatusSkipped: "skipped",
		StatusPending: "unknown",
	}
	for in, want := range tests {
		if got := mapAllureStatus(in); got != want {
			t.Errorf("mapAllureStatus(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFnv32aHash_Stable(t *testing.T) {
	a := fnv32aHash("ApiDemos:open app")
	if a != fnv32aHash("ApiDemos:open app") {
		t.Error("hash should be deterministic")
	}
	if a == fnv32aHash("ApiDemos:app installed") {
		t.Error("different inputs should differ")
	}
	if len(a) != 8 {
		t.Errorf("len = %d, want 8", len(a))
	}
}
