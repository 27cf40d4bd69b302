// Package session owns the lifecycle of the single Appium session a run
// shares between its tests.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/devicelab-dev/apidemos-e2e/pkg/config"
	"github.com/devicelab-dev/apidemos-e2e/pkg/core"
	"github.com/devicelab-dev/apidemos-e2e/pkg/driver/appium"
	"github.com/devicelab-dev/apidemos-e2e/pkg/logger"
)

// ReleaseTimeout bounds the DELETE /session call made on the way out,
// which runs even after the caller's context was cancelled.
const ReleaseTimeout = 30 * time.Second

// Session is one live Appium session bound to the configured app and
// device.
type Session struct {
	client *appium.Client
	cfg    *config.Config

	mu       sync.Mutex
	released bool
}

// Acquire opens a session with the capability set built from cfg.
//
// An unreachable server is reported as core.ErrServerUnreachable. A server
// that answers but refuses the capabilities, or answers without a session
// id, is reported as core.ErrSessionNotCreated.
func Acquire(ctx context.Context, cfg *config.Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := appium.NewClient(cfg.ServerURL)
	logger.Info("Creating session on %s (device=%s, app=%s, automation=%s)",
		cfg.ServerURL, cfg.DeviceName, cfg.App, cfg.AutomationName)

	start := time.Now()
	if err := client.Connect(ctx, appium.Capabilities(cfg.CapabilitySet())); err != nil {
		err = classifyConnectError(cfg, err)
		logger.Error("Session creation failed: %v", err)
		return nil, err
	}

	logger.Info("Session %s created in %s", client.SessionID(), time.Since(start).Round(time.Millisecond))
	return &Session{client: client, cfg: cfg}, nil
}

func classifyConnectError(cfg *config.Config, err error) error {
	details := map[string]interface{}{"serverUrl": cfg.ServerURL}

	var wdErr *appium.WebDriverError
	if errors.As(err, &wdErr) || errors.Is(err, appium.ErrNoSessionID) {
		return core.ErrSessionNotCreated.WithCause(err).WithDetails(details)
	}
	return core.ErrServerUnreachable.
		WithMessage(fmt.Sprintf("could not reach Appium server at %s", cfg.ServerURL)).
		WithCause(err).
		WithDetails(details)
}

// Release deletes the session. Only the first call talks to the server;
// later calls return nil.
func (s *Session) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}
	s.released = true

	id := s.client.SessionID()
	logger.Info("Releasing session %s", id)
	if err := s.client.Disconnect(ctx); err != nil {
		logger.Warn("Releasing session %s failed: %v", id, err)
		return fmt.Errorf("release session %s: %w", id, err)
	}
	logger.Info("Session %s released", id)
	return nil
}

// Released reports whether Release has been called.
func (s *Session) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// With acquires a session, runs fn with it and releases it again. Release
// happens whether fn succeeds, fails or panics; a release failure is
// joined to fn's error.
func With(ctx context.Context, cfg *config.Config, fn func(*Session) error) (err error) {
	s, err := Acquire(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() {
		rctx, cancel := ReleaseContext(ctx)
		defer cancel()
		if relErr := s.Release(rctx); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()

	return fn(s)
}

// ReleaseContext derives a context for cleanup that outlives cancellation
// of ctx.
func ReleaseContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), ReleaseTimeout)
}

// ID returns the server-assigned session id, or "" once released.
func (s *Session) ID() string {
	return s.client.SessionID()
}

// Config returns the configuration the session was created with.
func (s *Session) Config() *config.Config {
	return s.cfg
}
