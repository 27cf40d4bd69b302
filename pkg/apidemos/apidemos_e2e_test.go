//go:build e2e

package apidemos

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/devicelab-dev/apidemos-e2e/pkg/config"
	"github.com/devicelab-dev/apidemos-e2e/pkg/driver/appium"
	"github.com/devicelab-dev/apidemos-e2e/pkg/logger"
	"github.com/devicelab-dev/apidemos-e2e/pkg/session"
)

// These tests drive a real Appium server with an emulator attached.
// Configure with apidemos.yaml (APIDEMOS_CONFIG) or APIDEMOS_* variables.
//
//	go test -tags e2e ./pkg/apidemos/...

func liveConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Resolve(os.Getenv("APIDEMOS_CONFIG"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	if testing.Verbose() {
		logger.SetVerbose(true)
	}
	return cfg
}

func TestApiDemos(t *testing.T) {
	cfg := liveConfig(t)
	ctx := context.Background()
	scenario := New(cfg)

	t.Cleanup(func() {
		rctx, cancel := session.ReleaseContext(ctx)
		defer cancel()
		if err := scenario.Release(rctx); err != nil {
			t.Errorf("release: %v", err)
		}
	})

	passed := make(map[string]bool)
	for _, test := range scenario.Tests() {
		t.Run(test.Name, func(t *testing.T) {
			for _, req := range test.Requires {
				if !passed[req] {
					t.Skipf("requires %q", req)
				}
			}
			if test.Session {
				if _, err := scenario.Acquire(ctx); err != nil {
					t.Fatalf("session: %v", err)
				}
			}
			if err := test.Run(ctx); err != nil {
				t.Fatal(err)
			}
			passed[test.Name] = true
		})
	}
}

func TestAcquireReleaseLeavesNoSession(t *testing.T) {
	cfg := liveConfig(t)
	ctx := context.Background()
	client := appium.NewClient(cfg.ServerURL)

	var sid string
	err := session.With(ctx, cfg, func(s *session.Session) error {
		sid = s.ID()
		return nil
	})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}

	ids, err := client.Sessions(ctx)
	if err != nil {
		t.Skipf("server does not list sessions: %v", err)
	}
	for _, id := range ids {
		if id == sid {
			t.Errorf("session %s still active after release", sid)
		}
	}
}

func TestAppInstalledIsIdempotent(t *testing.T) {
	cfg := liveConfig(t)
	ctx := context.Background()

	err := session.With(ctx, cfg, func(s *session.Session) error {
		first, err := s.IsAppInstalled(ctx, cfg.AppPackage)
		if err != nil {
			return err
		}
		second, err := s.IsAppInstalled(ctx, cfg.AppPackage)
		if err != nil {
			return err
		}
		if first != second {
			t.Errorf("IsAppInstalled changed between calls: %v then %v", first, second)
		}

		bogus, err := s.IsAppInstalled(ctx, "io.appium.android.apis.doesnotexist")
		if err != nil {
			return err
		}
		if bogus {
			t.Error("a bogus package reported as installed")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestOrientationRoundTrip(t *testing.T) {
	cfg := liveConfig(t)
	ctx := context.Background()

	err := session.With(ctx, cfg, func(s *session.Session) error {
		scenario := &Scenario{cfg: cfg, session: s}
		if err := scenario.rotate(ctx, appium.Landscape); err != nil {
			return err
		}
		if err := scenario.rotate(ctx, appium.Portrait); err != nil {
			return err
		}
		o, err := s.Orientation(ctx)
		if err != nil {
			return err
		}
		if o != appium.Portrait {
			t.Errorf("orientation = %s after round trip, want PORTRAIT", o)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestServerAvailableBounded(t *testing.T) {
	cfg := liveConfig(t)

	start := time.Now()
	if !session.IsServerAvailable(context.Background(), cfg.ServerURL) {
		t.Fatalf("server %s not available", cfg.ServerURL)
	}
	if d := time.Since(start); d > session.DefaultStatusTimeout {
		t.Errorf("health check took %v", d)
	}
}
