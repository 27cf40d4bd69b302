// Package appium is a W3C WebDriver client for the Appium server, covering
// the session, element, device and orientation calls apidemos-e2e needs.
package appium

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single HTTP call. Session creation installs the
// APK, so it is generous.
const DefaultTimeout = 5 * time.Minute

// Client handles HTTP communication with Appium server.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
	platform  string // android, ios
}

// NewClient creates a new Appium client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// ServerURL returns the base URL requests are sent to.
func (c *Client) ServerURL() string {
	return c.serverURL
}

// SessionID returns the current session id, or "" when disconnected.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Platform returns the platform reported by the server (lower case).
func (c *Client) Platform() string {
	return c.platform
}

// Connect creates a new session with the given capabilities.
func (c *Client) Connect(ctx context.Context, capabilities Capabilities) error {
	body := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": map[string]interface{}(capabilities),
			"firstMatch":  []interface{}{map[string]interface{}{}},
		},
	}

	resp, err := c.post(ctx, "/session", body)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid session response: %w", ErrNoSessionID)
	}

	c.sessionID, _ = value["sessionId"].(string)
	if c.sessionID == "" {
		// JSONWP servers put the id at the top level
		c.sessionID, _ = resp["sessionId"].(string)
	}
	if c.sessionID == "" {
		return ErrNoSessionID
	}

	if caps, ok := value["capabilities"].(map[string]interface{}); ok {
		if platform, ok := caps["platformName"].(string); ok {
			c.platform = strings.ToLower(platform)
		}
	}
	return nil
}

// Disconnect closes the session. It is a no-op without a session.
func (c *Client) Disconnect(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}
	path := c.sessionPath()
	c.sessionID = ""
	_, err := c.delete(ctx, path)
	return err
}

// Server Operations

// Sessions lists the ids of sessions active on the server.
// Appium 2 serves GET /appium/sessions; Appium 1 served GET /sessions.
func (c *Client) Sessions(ctx context.Context) ([]string, error) {
	resp, err := c.get(ctx, "/appium/sessions")
	if err != nil && isUnsupported(err) {
		resp, err = c.get(ctx, "/sessions")
	}
	if err != nil {
		return nil, err
	}

	values, _ := resp["value"].([]interface{})
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(map[string]interface{}); ok {
			if id, ok := s["id"].(string); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// Element Operations

// FindElement finds a single element and returns its id.
func (c *Client) FindElement(ctx context.Context, strategy, value string) (string, error) {
	if c.sessionID == "" {
		return "", ErrNoSession
	}
	body := map[string]interface{}{
		"using": strategy,
		"value": value,
	}

	resp, err := c.post(ctx, c.sessionPath()+"/element", body)
	if err != nil {
		return "", err
	}

	elemValue, ok := resp["value"].(map[string]interface{})
	if !ok {
		return "", &WebDriverError{Code: ErrCodeNoSuchElement, Message: "empty element response"}
	}

	id := extractElementID(elemValue)
	if id == "" {
		return "", &WebDriverError{Code: ErrCodeNoSuchElement, Message: "no element id in response"}
	}
	return id, nil
}

// ClickElement clicks an element using WebDriver standard endpoint.
func (c *Client) ClickElement(ctx context.Context, elementID string) error {
	_, err := c.post(ctx, c.elementPath(elementID)+"/click", map[string]interface{}{})
	return err
}

// GetElementText returns an element's text.
func (c *Client) GetElementText(ctx context.Context, elementID string) (string, error) {
	resp, err := c.get(ctx, c.elementPath(elementID)+"/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// App Management

// IsAppInstalled reports whether the package is installed on the device.
func (c *Client) IsAppInstalled(ctx context.Context, appID string) (bool, error) {
	value, err := c.ExecuteMobile(ctx, "isAppInstalled", map[string]interface{}{
		"appId":    appID,
		"bundleId": appID,
	})
	if err != nil && isUnsupported(err) {
		var resp map[string]interface{}
		resp, err = c.post(ctx, c.sessionPath()+"/appium/device/app_installed", map[string]interface{}{
			"appId":    appID,
			"bundleId": appID,
		})
		if err == nil {
			value = resp["value"]
		}
	}
	if err != nil {
		return false, err
	}
	installed, _ := value.(bool)
	return installed, nil
}

// CurrentActivity returns the foreground Android activity.
func (c *Client) CurrentActivity(ctx context.Context) (string, error) {
	return c.deviceString(ctx, "getCurrentActivity", "/appium/device/current_activity")
}

// CurrentPackage returns the foreground Android package.
func (c *Client) CurrentPackage(ctx context.Context) (string, error) {
	return c.deviceString(ctx, "getCurrentPackage", "/appium/device/current_package")
}

// deviceString runs a string-valued mobile: command, falling back to the
// legacy GET endpoint on servers that lack it.
func (c *Client) deviceString(ctx context.Context, command, legacyPath string) (string, error) {
	value, err := c.ExecuteMobile(ctx, command, map[string]interface{}{})
	if err != nil && isUnsupported(err) {
		var resp map[string]interface{}
		resp, err = c.get(ctx, c.sessionPath()+legacyPath)
		if err == nil {
			value = resp["value"]
		}
	}
	if err != nil {
		return "", err
	}
	s, _ := value.(string)
	return s, nil
}

// Navigation

// Back navigates back one screen.
func (c *Client) Back(ctx context.Context) error {
	_, err := c.post(ctx, c.sessionPath()+"/back", map[string]interface{}{})
	return err
}

// Orientation

// GetOrientation returns the current orientation.
func (c *Client) GetOrientation(ctx context.Context) (Orientation, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/orientation")
	if err != nil {
		return "", err
	}
	orientation, _ := resp["value"].(string)
	return ParseOrientation(orientation)
}

// SetOrientation sets the orientation.
func (c *Client) SetOrientation(ctx context.Context, orientation Orientation) error {
	_, err := c.post(ctx, c.sessionPath()+"/orientation", map[string]interface{}{
		"orientation": strings.ToUpper(string(orientation)),
	})
	return err
}

// Screen Operations

// Screenshot returns a screenshot as PNG bytes.
func (c *Client) Screenshot(ctx context.Context) ([]byte, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/screenshot")
	if err != nil {
		return nil, err
	}
	encoded, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid screenshot response")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Source returns the page source XML.
func (c *Client) Source(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.sessionPath()+"/source")
	if err != nil {
		return "", err
	}
	source, _ := resp["value"].(string)
	return source, nil
}

// ExecuteMobile executes a mobile: command.
func (c *Client) ExecuteMobile(ctx context.Context, command string, args map[string]interface{}) (interface{}, error) {
	if c.sessionID == "" {
		return nil, ErrNoSession
	}
	resp, err := c.post(ctx, c.sessionPath()+"/execute/sync", map[string]interface{}{
		"script": "mobile: " + command,
		"args":   []interface{}{args},
	})
	if err != nil {
		return nil, err
	}
	return resp["value"], nil
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodPost, path, body)
}

func (c *Client) delete(ctx context.Context, path string) (map[string]interface{}, error) {
	return c.request(ctx, http.MethodDelete, path, nil)
}

// request performs one call. Transport failures are returned wrapped;
// any response the server produced is decoded, and an error envelope or
// non-2xx status becomes a *WebDriverError.
func (c *Client) request(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	url := c.serverURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode >= 300 {
			return nil, &WebDriverError{
				HTTPStatus: resp.StatusCode,
				Code:       ErrCodeUnknownServerError,
				Message:    strings.TrimSpace(string(respBody)),
			}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Check for WebDriver error
	if errValue, ok := result["value"].(map[string]interface{}); ok {
		if errType, ok := errValue["error"].(string); ok && errType != "" {
			errMsg, _ := errValue["message"].(string)
			return result, &WebDriverError{HTTPStatus: resp.StatusCode, Code: errType, Message: errMsg}
		}
	}
	if resp.StatusCode >= 300 {
		return result, &WebDriverError{
			HTTPStatus: resp.StatusCode,
			Code:       ErrCodeUnknownServerError,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	return result, nil
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}
