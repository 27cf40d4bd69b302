package appium

import (
	"errors"
	"fmt"
	"strings"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Capabilities is the alwaysMatch capability set for a new session.
type Capabilities map[string]interface{}

// Locator strategies understood by the UiAutomator2 driver.
const (
	ByAccessibilityID = "accessibility id"
	ByID              = "id"
	ByXPath           = "xpath"
	ByUiAutomator     = "-android uiautomator"
)

// Orientation is the screen orientation of a session.
type Orientation string

// Orientation values as reported by the server.
const (
	Portrait  Orientation = "PORTRAIT"
	Landscape Orientation = "LANDSCAPE"
)

// ParseOrientation normalises a server or user supplied orientation.
func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(strings.ToUpper(strings.TrimSpace(s))); o {
	case Portrait, Landscape:
		return o, nil
	default:
		return "", fmt.Errorf("unknown orientation %q", s)
	}
}

// ServerStatus is the payload of GET /status.
type ServerStatus struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
	Build   struct {
		Version string `json:"version"`
	} `json:"build"`
}

// W3C error codes this client reacts to.
const (
	ErrCodeNoSuchElement      = "no such element"
	ErrCodeStaleElement       = "stale element reference"
	ErrCodeSessionNotCreated  = "session not created"
	ErrCodeInvalidSession     = "invalid session id"
	ErrCodeUnknownMethod      = "unknown method"
	ErrCodeUnknownCommand     = "unknown command"
	ErrCodeUnsupportedOp      = "unsupported operation"
	ErrCodeUnknownServerError = "unknown error"
)

// WebDriverError is an error reported by the server in the W3C envelope
// {"value": {"error": ..., "message": ...}}.
type WebDriverError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *WebDriverError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrNoSessionID is returned when POST /session succeeds without a session id.
var ErrNoSessionID = errors.New("no session ID in response")

// ErrNoSession is returned by session-scoped calls made before Connect.
var ErrNoSession = errors.New("no active session")

// HasCode reports whether err is a WebDriverError with one of the codes.
func HasCode(err error, codes ...string) bool {
	var wdErr *WebDriverError
	if !errors.As(err, &wdErr) {
		return false
	}
	for _, c := range codes {
		if wdErr.Code == c {
			return true
		}
	}
	return false
}

// IsNoSuchElement reports whether a locate call found nothing.
func IsNoSuchElement(err error) bool {
	return HasCode(err, ErrCodeNoSuchElement)
}

// isUnsupported reports whether the server does not implement a command,
// so an older endpoint should be tried instead.
func isUnsupported(err error) bool {
	var wdErr *WebDriverError
	if !errors.As(err, &wdErr) {
		return false
	}
	if wdErr.HTTPStatus == 404 && wdErr.Code == ErrCodeUnknownServerError {
		return true
	}
	return HasCode(err, ErrCodeUnknownMethod, ErrCodeUnknownCommand, ErrCodeUnsupportedOp)
}

// UiScrollableText builds the UiAutomator selector that scrolls the first
// scrollable container until text is visible.
func UiScrollableText(text string) string {
	return fmt.Sprintf(`new UiScrollable(new UiSelector().scrollable(true)).scrollTextIntoView("%s")`,
		escapeUiAutomatorString(text))
}

// escapeUiAutomatorString escapes quotes for UiAutomator string
func escapeUiAutomatorString(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}
