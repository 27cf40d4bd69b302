package apidemos

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/devicelab-dev/apidemos-e2e/pkg/core"
	"github.com/devicelab-dev/apidemos-e2e/pkg/driver/appium"
	"github.com/devicelab-dev/apidemos-e2e/pkg/logger"
	"github.com/devicelab-dev/apidemos-e2e/pkg/wait"
)

// CheckServer asserts the Appium server answers /status with 200.
func (s *Scenario) CheckServer(ctx context.Context) error {
	status, err := s.health.Status(ctx, s.cfg.ServerURL)
	if err != nil {
		return err
	}
	logger.Info("Appium server %s is up (version=%s, ready=%t)", s.cfg.ServerURL, status.Build.Version, status.Ready)
	s.server = status
	return nil
}

// AppInstalled asserts the configured package is installed.
func (s *Scenario) AppInstalled(ctx context.Context) error {
	pkg := s.cfg.AppPackage
	return logger.Trace("query installed "+pkg, func() error {
		installed, err := s.session.IsAppInstalled(ctx, pkg)
		if err != nil {
			return err
		}
		if !installed {
			return core.ErrAppNotInstalled.
				WithMessage(fmt.Sprintf("%s is not installed", pkg)).
				WithDetails(map[string]interface{}{"appId": pkg})
		}
		return nil
	})
}

// OpenApp asserts the app has a foreground activity.
func (s *Scenario) OpenApp(ctx context.Context) error {
	return logger.Trace("query current activity", func() error {
		activity, err := s.session.CurrentActivity(ctx)
		if err != nil {
			return err
		}
		if activity == "" {
			return core.ErrNoActivity.WithMessage("app has no foreground activity")
		}
		logger.Info("Current activity: %s", activity)
		return nil
	})
}

// ClickAccessibility opens the Accessibility menu and asserts its
// "Accessibility Node Provider" entry is shown.
func (s *Scenario) ClickAccessibility(ctx context.Context) error {
	err := logger.Trace(`click "Accessibility"`, func() error {
		return s.clickWhenPresent(ctx, appium.ByAccessibilityID, LabelAccessibility)
	})
	if err != nil {
		return err
	}
	return logger.Trace(`find "Accessibility Node Provider"`, func() error {
		return s.waitForElement(ctx, appium.ByAccessibilityID, LabelNodeProvider)
	})
}

// ScrollAndClickText goes back to the main menu, rotates to landscape,
// scrolls "Text" into view and opens it. Portrait is restored on the way
// out whether or not the scroll succeeded.
func (s *Scenario) ScrollAndClickText(ctx context.Context) (err error) {
	if err := logger.Trace("back to main menu", func() error {
		if err := s.session.Back(ctx); err != nil {
			return err
		}
		return s.waitForElement(ctx, appium.ByAccessibilityID, LabelAccessibility)
	}); err != nil {
		return err
	}
	if err := wait.Pause(ctx, s.cfg.SettleDelay); err != nil {
		return err
	}

	defer func() {
		restoreErr := logger.Trace("restore portrait", func() error {
			return s.rotate(context.WithoutCancel(ctx), appium.Portrait)
		})
		if restoreErr != nil {
			err = errors.Join(err, restoreErr)
		}
	}()

	if err := logger.Trace("rotate to landscape", func() error {
		return s.rotate(ctx, appium.Landscape)
	}); err != nil {
		return err
	}

	if err := logger.Trace(`scroll to "Text" and click`, func() error {
		return s.clickWhenPresent(ctx, appium.ByUiAutomator, appium.UiScrollableText(LabelText))
	}); err != nil {
		return err
	}

	return logger.Trace("wait for Text menu", func() error {
		return s.waitForElement(ctx, appium.ByAccessibilityID, LabelLogTextBox)
	})
}

// AddLogText opens LogTextBox, presses Add and asserts the text view
// contains the added line.
func (s *Scenario) AddLogText(ctx context.Context) error {
	for _, label := range []string{LabelLogTextBox, LabelAdd} {
		if err := logger.Trace(fmt.Sprintf("click %q", label), func() error {
			return s.clickWhenPresent(ctx, appium.ByAccessibilityID, label)
		}); err != nil {
			return err
		}
	}

	return logger.Trace("check log text", func() error {
		return s.waitForText(ctx, appium.ByID, LogTextID, ExpectedLogText)
	})
}

// rotate sets the orientation and waits until the device reports it.
func (s *Scenario) rotate(ctx context.Context, o appium.Orientation) error {
	if err := s.session.SetOrientation(ctx, o); err != nil {
		return err
	}
	err := s.poll(ctx, func(ctx context.Context) (bool, error) {
		current, err := s.session.Orientation(ctx)
		return current == o, err
	})
	if err != nil {
		return fmt.Errorf("orientation did not become %s: %w", o, err)
	}
	return wait.Pause(ctx, s.cfg.SettleDelay)
}

// waitForElement polls until the element can be located. Giving up is
// reported as core.ErrElementNotFound.
func (s *Scenario) waitForElement(ctx context.Context, strategy, value string) error {
	err := s.poll(ctx, func(ctx context.Context) (bool, error) {
		return s.session.Exists(ctx, strategy, value)
	})
	return notFound(err, strategy, value)
}

// clickWhenPresent polls until the element can be located and clicked.
// A handle that goes stale between locate and click is located again.
func (s *Scenario) clickWhenPresent(ctx context.Context, strategy, value string) error {
	err := s.poll(ctx, func(ctx context.Context) (bool, error) {
		el, err := s.session.Find(ctx, strategy, value)
		if errors.Is(err, core.ErrElementNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if err := el.Click(ctx); err != nil {
			if appium.HasCode(err, appium.ErrCodeStaleElement) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	})
	return notFound(err, strategy, value)
}

// waitForText polls until the element's text contains want.
func (s *Scenario) waitForText(ctx context.Context, strategy, value, want string) error {
	var last string
	found := false
	err := s.poll(ctx, func(ctx context.Context) (bool, error) {
		text, err := s.session.Text(ctx, strategy, value)
		if errors.Is(err, core.ErrElementNotFound) || appium.HasCode(err, appium.ErrCodeStaleElement) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		found, last = true, text
		return strings.Contains(text, want), nil
	})
	if errors.Is(err, core.ErrWaitTimeout) {
		if !found {
			return notFound(err, strategy, value)
		}
		return core.ErrTextMismatch.
			WithMessage(fmt.Sprintf("text of %s=%q is %q, want it to contain %q", strategy, value, last, want)).
			WithDetails(map[string]interface{}{"expected": want, "actual": last})
	}
	return err
}

func (s *Scenario) poll(ctx context.Context, cond wait.Condition) error {
	return wait.Until(ctx, s.cfg.WaitTimeout, s.cfg.PollInterval, cond)
}

// notFound turns a wait timeout into core.ErrElementNotFound.
func notFound(err error, strategy, value string) error {
	if !errors.Is(err, core.ErrWaitTimeout) {
		return err
	}
	return core.ErrElementNotFound.
		WithMessage(fmt.Sprintf("element %s=%q not found", strategy, value)).
		WithCause(err).
		WithDetails(map[string]interface{}{"strategy": strategy, "value": value})
}
