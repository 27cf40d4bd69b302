package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devicelab-dev/apidemos-e2e/pkg/core"
	"github.com/devicelab-dev/apidemos-e2e/pkg/driver/appium"
	"github.com/devicelab-dev/apidemos-e2e/pkg/logger"
)

// DefaultStatusTimeout bounds a health probe when none is given.
const DefaultStatusTimeout = 10 * time.Second

// HealthChecker probes GET {url}/status. It does not need a session.
type HealthChecker struct {
	client *http.Client
}

// NewHealthChecker creates a checker whose probes give up after timeout.
func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = DefaultStatusTimeout
	}
	return &HealthChecker{client: &http.Client{Timeout: timeout}}
}

// Status probes the server and decodes its status payload. Only HTTP 200
// counts as available: transport failures are core.ErrServerUnreachable and
// any other status code is core.ErrServerUnhealthy.
func (h *HealthChecker) Status(ctx context.Context, serverURL string) (*appium.ServerStatus, error) {
	url := strings.TrimSuffix(serverURL, "/") + "/status"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, core.ErrInvalidConfig.
			WithMessage(fmt.Sprintf("invalid server URL %q", serverURL)).
			WithCause(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, core.ErrServerUnreachable.
			WithMessage(fmt.Sprintf("Appium server at %s is not reachable", serverURL)).
			WithCause(err).
			WithDetails(map[string]interface{}{"url": url})
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, core.ErrServerUnhealthy.
			WithMessage(fmt.Sprintf("Appium server at %s answered %d on /status", serverURL, resp.StatusCode)).
			WithDetails(map[string]interface{}{"url": url, "statusCode": resp.StatusCode})
	}

	var envelope struct {
		Value appium.ServerStatus `json:"value"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		// Reachable and 200 is enough; the payload is informational
		logger.Debug("unparseable /status payload from %s: %v", serverURL, err)
	}
	return &envelope.Value, nil
}

// Check returns nil when the server answers /status with HTTP 200.
func (h *HealthChecker) Check(ctx context.Context, serverURL string) error {
	status, err := h.Status(ctx, serverURL)
	if err != nil {
		return err
	}
	logger.Info("Appium server %s is up (version=%s, ready=%t)", serverURL, status.Build.Version, status.Ready)
	return nil
}

// CheckServerAvailability probes the server with the default timeout.
func CheckServerAvailability(ctx context.Context, serverURL string) error {
	return NewHealthChecker(DefaultStatusTimeout).Check(ctx, serverURL)
}

// IsServerAvailable is the boolean form of CheckServerAvailability.
func IsServerAvailable(ctx context.Context, serverURL string) bool {
	return CheckServerAvailability(ctx, serverURL) == nil
}
