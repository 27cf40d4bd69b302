package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devicelab-dev/apidemos-e2e/pkg/core"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.ServerURL != "http://127.0.0.1:4723" {
		t.Errorf("ServerURL = %s", cfg.ServerURL)
	}
	if cfg.DeviceName != "emulator-5554" {
		t.Errorf("DeviceName = %s", cfg.DeviceName)
	}
	if cfg.App != "/app/ApiDemos-debug.apk" {
		t.Errorf("App = %s", cfg.App)
	}
	if cfg.AutomationName != "UiAutomator2" {
		t.Errorf("AutomationName = %s", cfg.AutomationName)
	}
	if cfg.AppPackage != "io.appium.android.apis" {
		t.Errorf("AppPackage = %s", cfg.AppPackage)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "apidemos.yaml")

	content := `
serverUrl: http://appium.local:4723
deviceName: Pixel_7_API_34
app: /tmp/ApiDemos.apk
waitTimeout: 30s
pollInterval: 500ms
capabilities:
  appium:newCommandTimeout: 120
artifacts:
  captureOnFailure: true
  screenshot: false
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ServerURL != "http://appium.local:4723" {
		t.Errorf("ServerURL = %s", cfg.ServerURL)
	}
	if cfg.DeviceName != "Pixel_7_API_34" {
		t.Errorf("DeviceName = %s", cfg.DeviceName)
	}
	if cfg.WaitTimeout != 30*time.Second {
		t.Errorf("WaitTimeout = %v, want 30s", cfg.WaitTimeout)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want 500ms", cfg.PollInterval)
	}
	if cfg.Capabilities["appium:newCommandTimeout"] != 120 {
		t.Errorf("Capabilities = %v", cfg.Capabilities)
	}
	if cfg.Artifacts.Screenshot {
		t.Error("artifacts.screenshot should be false")
	}
	// Fields absent from the file keep their defaults
	if cfg.AutomationName != DefaultAutomationName {
		t.Errorf("AutomationName = %s, want default", cfg.AutomationName)
	}
	if cfg.PlatformName != DefaultPlatformName {
		t.Errorf("PlatformName = %s, want default", cfg.PlatformName)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/apidemos.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "apidemos.yaml")

	if err := os.WriteFile(configPath, []byte(`capabilities: [invalid yaml`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromDir(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "apidemos.yaml"), []byte(`deviceName: from-yaml`), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadFromDir(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.DeviceName != "from-yaml" {
			t.Errorf("DeviceName = %s", cfg.DeviceName)
		}
	})

	t.Run("prefers yaml over yml", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "apidemos.yaml"), []byte(`deviceName: yaml`), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "apidemos.yml"), []byte(`deviceName: yml`), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadFromDir(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.DeviceName != "yaml" {
			t.Errorf("DeviceName = %s, want yaml", cfg.DeviceName)
		}
	})

	t.Run("none", func(t *testing.T) {
		cfg, err := LoadFromDir(t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.DeviceName != DefaultDeviceName {
			t.Errorf("DeviceName = %s, want default", cfg.DeviceName)
		}
	})
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("APIDEMOS_SERVER_URL", "http://10.0.2.2:4723")
	t.Setenv("APIDEMOS_DEVICE_NAME", "emulator-5556")
	t.Setenv("APIDEMOS_WAIT_TIMEOUT", "45s")

	cfg := Default()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.ServerURL != "http://10.0.2.2:4723" {
		t.Errorf("ServerURL = %s", cfg.ServerURL)
	}
	if cfg.DeviceName != "emulator-5556" {
		t.Errorf("DeviceName = %s", cfg.DeviceName)
	}
	if cfg.WaitTimeout != 45*time.Second {
		t.Errorf("WaitTimeout = %v", cfg.WaitTimeout)
	}
	// Unset variables leave values alone
	if cfg.App != DefaultApp {
		t.Errorf("App = %s, want default", cfg.App)
	}
}

func TestApplyEnv_InvalidDuration(t *testing.T) {
	t.Setenv("APIDEMOS_WAIT_TIMEOUT", "soon")

	err := ApplyEnv(Default())
	if !errors.Is(err, core.ErrInvalidConfig) {
		t.Errorf("ApplyEnv() = %v, want ErrInvalidConfig", err)
	}
}

func TestResolve_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "apidemos.yaml")
	if err := os.WriteFile(configPath, []byte("deviceName: from-file\napp: /file.apk\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APIDEMOS_DEVICE_NAME", "from-env")

	cfg, err := Resolve(configPath)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cfg.DeviceName != "from-env" {
		t.Errorf("DeviceName = %s, env should win", cfg.DeviceName)
	}
	if cfg.App != "/file.apk" {
		t.Errorf("App = %s, file value should survive", cfg.App)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   *core.ExecutionError
	}{
		{"missing server", func(c *Config) { c.ServerURL = "" }, core.ErrMissingRequired},
		{"missing app", func(c *Config) { c.App = "" }, core.ErrMissingRequired},
		{"missing device", func(c *Config) { c.DeviceName = "" }, core.ErrMissingRequired},
		{"missing engine", func(c *Config) { c.AutomationName = "" }, core.ErrMissingRequired},
		{"relative url", func(c *Config) { c.ServerURL = "127.0.0.1:4723/wd" }, core.ErrInvalidConfig},
		{"negative wait", func(c *Config) { c.WaitTimeout = -time.Second }, core.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %s", err, tt.want.Code)
			}
		})
	}
}

func TestCapabilitySet(t *testing.T) {
	cfg := Default()
	cfg.Capabilities = map[string]interface{}{
		"appium:noReset":    true,
		"appium:deviceName": "override",
	}

	caps := cfg.CapabilitySet()

	if caps["platformName"] != "Android" {
		t.Errorf("platformName = %v", caps["platformName"])
	}
	if caps["appium:app"] != "/app/ApiDemos-debug.apk" {
		t.Errorf("appium:app = %v", caps["appium:app"])
	}
	if caps["appium:automationName"] != "UiAutomator2" {
		t.Errorf("appium:automationName = %v", caps["appium:automationName"])
	}
	if caps["appium:noReset"] != true {
		t.Error("extra capability not merged")
	}
	if caps["appium:deviceName"] != "override" {
		t.Error("extra capability should override generated one")
	}
}

func TestLoadCapabilities(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "caps.json")
	if err := os.WriteFile(path, []byte(`{"appium:udid": "emulator-5554", "appium:newCommandTimeout": 300}`), 0644); err != nil {
		t.Fatal(err)
	}

	caps, err := LoadCapabilities(path)
	if err != nil {
		t.Fatalf("LoadCapabilities failed: %v", err)
	}
	if caps["appium:udid"] != "emulator-5554" {
		t.Errorf("appium:udid = %v", caps["appium:udid"])
	}
	if caps["appium:newCommandTimeout"] != 300.0 {
		t.Errorf("appium:newCommandTimeout = %v", caps["appium:newCommandTimeout"])
	}

	if err := os.WriteFile(path, []byte(`{bad`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCapabilities(path); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestStatusURL(t *testing.T) {
	cfg := Default()
	if got := cfg.StatusURL(); got != "http://127.0.0.1:4723/status" {
		t.Errorf("StatusURL() = %s", got)
	}
}
