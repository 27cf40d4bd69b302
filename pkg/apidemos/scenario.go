// Package apidemos is the end-to-end scenario for the Android ApiDemos
// sample app: it checks the app is installed and launches, then walks the
// Accessibility and Text menus in both orientations and appends to the
// LogTextBox.
package apidemos

import (
	"context"
	"errors"

	"github.com/devicelab-dev/apidemos-e2e/pkg/config"
	"github.com/devicelab-dev/apidemos-e2e/pkg/core"
	"github.com/devicelab-dev/apidemos-e2e/pkg/driver/appium"
	"github.com/devicelab-dev/apidemos-e2e/pkg/executor"
	"github.com/devicelab-dev/apidemos-e2e/pkg/session"
)

// SuiteName names the scenario in reports.
const SuiteName = "ApiDemos"

// Test names, in execution order.
const (
	TestServerAvailability = "server availability"
	TestAppInstalled       = "app installed"
	TestOpenApp            = "open app"
	TestClickAccessibility = "click accessibility"
	TestScrollAndClickText = "scroll and click text"
	TestAddLogText         = "add log text"
)

// UI labels and ids used by the steps.
const (
	LabelAccessibility = "Accessibility"
	LabelNodeProvider  = "Accessibility Node Provider"
	LabelText          = "Text"
	LabelLogTextBox    = "LogTextBox"
	LabelAdd           = "Add"
	LogTextID          = "io.appium.android.apis:id/text"
	ExpectedLogText    = "This is a test"
)

var errNoSession = errors.New("no active session")

// Scenario holds the configuration and the session shared by its tests.
// It implements executor.Lifecycle.
type Scenario struct {
	cfg     *config.Config
	health  *session.HealthChecker
	session *session.Session
	server  *appium.ServerStatus
}

// New creates a scenario for cfg.
func New(cfg *config.Config) *Scenario {
	return &Scenario{
		cfg:    cfg,
		health: session.NewHealthChecker(cfg.StatusTimeout),
	}
}

// Config returns the scenario configuration.
func (s *Scenario) Config() *config.Config {
	return s.cfg
}

// ServerStatus returns the payload of the last successful health check.
func (s *Scenario) ServerStatus() *appium.ServerStatus {
	return s.server
}

// Session returns the live session, or nil before Acquire.
func (s *Scenario) Session() *session.Session {
	return s.session
}

// Tests returns the scenario steps in the order they must run. The two
// queries leave the UI alone and "open app" starts from the main menu the
// session launches into, so only the navigation steps chain: each requires
// the one that leaves the app on the screen it starts from.
func (s *Scenario) Tests() []executor.Test {
	return []executor.Test{
		{Name: TestServerAvailability, Run: s.CheckServer},
		{Name: TestAppInstalled, Session: true, Run: s.AppInstalled},
		{Name: TestOpenApp, Session: true, Run: s.OpenApp},
		{Name: TestClickAccessibility, Session: true, Run: s.ClickAccessibility},
		{Name: TestScrollAndClickText, Session: true, Requires: []string{TestClickAccessibility}, Run: s.ScrollAndClickText},
		{Name: TestAddLogText, Session: true, Requires: []string{TestScrollAndClickText}, Run: s.AddLogText},
	}
}

// Acquire opens the shared session.
func (s *Scenario) Acquire(ctx context.Context) (string, error) {
	if s.session != nil {
		return s.session.ID(), nil
	}
	sess, err := session.Acquire(ctx, s.cfg)
	if err != nil {
		return "", err
	}
	s.session = sess
	return sess.ID(), nil
}

// Release closes the shared session. It is safe to call more than once.
func (s *Scenario) Release(ctx context.Context) error {
	if s.session == nil {
		return nil
	}
	return s.session.Release(ctx)
}

// CaptureScreenshot implements core.ArtifactCollector.
func (s *Scenario) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	if s.session == nil {
		return nil, errNoSession
	}
	return s.session.CaptureScreenshot(ctx)
}

// CaptureHierarchy implements core.ArtifactCollector.
func (s *Scenario) CaptureHierarchy(ctx context.Context) ([]byte, error) {
	if s.session == nil {
		return nil, errNoSession
	}
	return s.session.CaptureHierarchy(ctx)
}

// CaptureState implements core.ArtifactCollector.
func (s *Scenario) CaptureState(ctx context.Context) *core.StateSnapshot {
	if s.session == nil {
		return nil
	}
	return s.session.CaptureState(ctx)
}

var _ executor.Lifecycle = (*Scenario)(nil)
