package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/devicelab-dev/apidemos-e2e/pkg/core"
	"github.com/devicelab-dev/apidemos-e2e/pkg/driver/appium"
	"github.com/devicelab-dev/apidemos-e2e/pkg/logger"
)

// Find locates one element. A locate that matches nothing is reported as
// core.ErrElementNotFound.
func (s *Session) Find(ctx context.Context, strategy, value string) (*appium.Element, error) {
	logger.Debug("find %s=%q", strategy, value)
	el, err := s.client.Find(ctx, strategy, value)
	if err == nil {
		return el, nil
	}
	if appium.IsNoSuchElement(err) {
		return nil, core.ErrElementNotFound.
			WithMessage(fmt.Sprintf("element %s=%q not found", strategy, value)).
			WithCause(err).
			WithDetails(map[string]interface{}{"strategy": strategy, "value": value})
	}
	return nil, s.wrap(err)
}

// Exists reports whether an element can be located right now.
func (s *Session) Exists(ctx context.Context, strategy, value string) (bool, error) {
	_, err := s.Find(ctx, strategy, value)
	if errors.Is(err, core.ErrElementNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Click locates an element and clicks it.
func (s *Session) Click(ctx context.Context, strategy, value string) error {
	el, err := s.Find(ctx, strategy, value)
	if err != nil {
		return err
	}
	logger.Debug("click %s=%q (element %s)", strategy, value, el.ID())
	return s.wrap(el.Click(ctx))
}

// Text locates an element and returns its text.
func (s *Session) Text(ctx context.Context, strategy, value string) (string, error) {
	el, err := s.Find(ctx, strategy, value)
	if err != nil {
		return "", err
	}
	text, err := el.Text(ctx)
	return text, s.wrap(err)
}

// IsAppInstalled reports whether a package is installed on the device.
func (s *Session) IsAppInstalled(ctx context.Context, appID string) (bool, error) {
	installed, err := s.client.IsAppInstalled(ctx, appID)
	return installed, s.wrap(err)
}

// CurrentActivity returns the foreground activity.
func (s *Session) CurrentActivity(ctx context.Context) (string, error) {
	activity, err := s.client.CurrentActivity(ctx)
	return activity, s.wrap(err)
}

// CurrentPackage returns the foreground package.
func (s *Session) CurrentPackage(ctx context.Context) (string, error) {
	pkg, err := s.client.CurrentPackage(ctx)
	return pkg, s.wrap(err)
}

// Back presses the system back button.
func (s *Session) Back(ctx context.Context) error {
	return s.wrap(s.client.Back(ctx))
}

// Orientation returns the current screen orientation.
func (s *Session) Orientation(ctx context.Context) (appium.Orientation, error) {
	o, err := s.client.GetOrientation(ctx)
	return o, s.wrap(err)
}

// SetOrientation rotates the screen.
func (s *Session) SetOrientation(ctx context.Context, o appium.Orientation) error {
	logger.Debug("set orientation %s", o)
	return s.wrap(s.client.SetOrientation(ctx, o))
}

// wrap converts transport failures into core.ErrServerUnreachable.
// Server-reported errors and cancellation pass through unchanged.
func (s *Session) wrap(err error) error {
	if err == nil {
		return nil
	}
	var wdErr *appium.WebDriverError
	if errors.As(err, &wdErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, appium.ErrNoSession) {
		return err
	}
	return core.ErrServerUnreachable.
		WithMessage(fmt.Sprintf("lost connection to Appium server at %s", s.cfg.ServerURL)).
		WithCause(err)
}

// CaptureScreenshot implements core.ArtifactCollector.
func (s *Session) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	return s.client.Screenshot(ctx)
}

// CaptureHierarchy implements core.ArtifactCollector.
func (s *Session) CaptureHierarchy(ctx context.Context) ([]byte, error) {
	source, err := s.client.Source(ctx)
	if err != nil {
		return nil, err
	}
	return []byte(source), nil
}

// CaptureState implements core.ArtifactCollector. Fields the server
// cannot report are left empty.
func (s *Session) CaptureState(ctx context.Context) *core.StateSnapshot {
	state := &core.StateSnapshot{}
	if o, err := s.client.GetOrientation(ctx); err == nil {
		state.Orientation = string(o)
	}
	if a, err := s.client.CurrentActivity(ctx); err == nil {
		state.CurrentActivity = a
	}
	if p, err := s.client.CurrentPackage(ctx); err == nil {
		state.CurrentPackage = p
	}
	return state
}

var _ core.ArtifactCollector = (*Session)(nil)
