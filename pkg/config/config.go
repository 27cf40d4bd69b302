// Package config handles configuration for apidemos-e2e.
//
// Values are resolved in this order, later sources winning:
//  1. Defaults (the emulator/container layout the suite was written for)
//  2. YAML file (--config)
//  3. APIDEMOS_* environment variables
//  4. CLI flags (applied by pkg/cli)
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/apidemos-e2e/pkg/core"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "APIDEMOS_"

// Defaults for the ApiDemos emulator setup.
const (
	DefaultServerURL      = "http://127.0.0.1:4723"
	DefaultPlatformName   = "Android"
	DefaultDeviceName     = "emulator-5554"
	DefaultApp            = "/app/ApiDemos-debug.apk"
	DefaultAppPackage     = "io.appium.android.apis"
	DefaultAutomationName = "UiAutomator2"
	DefaultStatusTimeout  = 10 * time.Second
	DefaultWaitTimeout    = 10 * time.Second
	DefaultPollInterval   = 250 * time.Millisecond
)

// Config represents the run configuration (config.yaml).
type Config struct {
	// Server
	ServerURL     string        `yaml:"serverUrl" env:"SERVER_URL"`
	StatusTimeout time.Duration `yaml:"statusTimeout" env:"STATUS_TIMEOUT"` // Health check timeout

	// Capability set
	PlatformName   string `yaml:"platformName" env:"PLATFORM_NAME"`
	DeviceName     string `yaml:"deviceName" env:"DEVICE_NAME"`
	App            string `yaml:"app" env:"APP"`                    // APK path as seen by the server
	AppPackage     string `yaml:"appPackage" env:"APP_PACKAGE"`     // Package checked by "app installed"
	AutomationName string `yaml:"automationName" env:"AUTOMATION_NAME"`

	// Extra capabilities merged over the generated ones
	Capabilities map[string]interface{} `yaml:"capabilities"`

	// UI synchronisation
	WaitTimeout  time.Duration `yaml:"waitTimeout" env:"WAIT_TIMEOUT"`   // Max wait for a UI condition
	PollInterval time.Duration `yaml:"pollInterval" env:"POLL_INTERVAL"` // Delay between polls
	SettleDelay  time.Duration `yaml:"settleDelay" env:"SETTLE_DELAY"`   // Optional fixed pause after transitions

	// Artifacts
	Artifacts core.ArtifactConfig `yaml:"artifacts"`
}

// Default returns the configuration for the stock emulator setup.
func Default() *Config {
	return &Config{
		ServerURL:      DefaultServerURL,
		StatusTimeout:  DefaultStatusTimeout,
		PlatformName:   DefaultPlatformName,
		DeviceName:     DefaultDeviceName,
		App:            DefaultApp,
		AppPackage:     DefaultAppPackage,
		AutomationName: DefaultAutomationName,
		WaitTimeout:    DefaultWaitTimeout,
		PollInterval:   DefaultPollInterval,
		Artifacts:      core.DefaultArtifactConfig(),
	}
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir looks for apidemos.yaml or apidemos.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"apidemos.yaml", "apidemos.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, return defaults
	return Default(), nil
}

// ApplyEnv overlays APIDEMOS_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return core.ErrInvalidConfig.WithCause(err)
	}
	return nil
}

// Resolve loads path (or the defaults when path is empty) and applies
// environment overrides.
func Resolve(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every field needed to open a session is set.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"serverUrl", c.ServerURL},
		{"platformName", c.PlatformName},
		{"deviceName", c.DeviceName},
		{"app", c.App},
		{"appPackage", c.AppPackage},
		{"automationName", c.AutomationName},
	}
	for _, r := range required {
		if r.value == "" {
			return core.ErrMissingRequired.
				WithMessage(fmt.Sprintf("missing required field: %s", r.name)).
				WithDetails(map[string]interface{}{"field": r.name})
		}
	}

	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return core.ErrInvalidConfig.
			WithMessage(fmt.Sprintf("invalid serverUrl %q", c.ServerURL)).
			WithCause(err)
	}

	if c.WaitTimeout < 0 || c.PollInterval < 0 || c.SettleDelay < 0 || c.StatusTimeout < 0 {
		return core.ErrInvalidConfig.WithMessage("durations must not be negative")
	}
	return nil
}

// StatusURL returns the server health endpoint.
func (c *Config) StatusURL() string {
	return c.ServerURL + "/status"
}

// CapabilitySet builds the W3C alwaysMatch capabilities for a new session.
// Entries from Capabilities override the generated ones.
func (c *Config) CapabilitySet() map[string]interface{} {
	caps := map[string]interface{}{
		"platformName":          c.PlatformName,
		"appium:deviceName":     c.DeviceName,
		"appium:app":            c.App,
		"appium:automationName": c.AutomationName,
	}
	for k, v := range c.Capabilities {
		caps[k] = v
	}
	return caps
}

// LoadCapabilities reads extra capabilities from a JSON file.
func LoadCapabilities(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided caps file
	if err != nil {
		return nil, fmt.Errorf("failed to read caps file: %w", err)
	}

	var caps map[string]interface{}
	if err := json.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("failed to parse caps file: %w", err)
	}
	return caps, nil
}

// Platform describes the configured target for reports.
func (c *Config) Platform() *core.PlatformInfo {
	return &core.PlatformInfo{
		Platform:       c.PlatformName,
		DeviceName:     c.DeviceName,
		AutomationName: c.AutomationName,
		AppPath:        c.App,
		AppID:          c.AppPackage,
		ServerURL:      c.ServerURL,
	}
}
