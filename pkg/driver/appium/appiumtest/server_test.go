package appiumtest

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/devicelab-dev/apidemos-e2e/pkg/driver/appium"
)

func validCaps() appium.Capabilities {
	return appium.Capabilities{
		"platformName":          "Android",
		"appium:deviceName":     "emulator-5554",
		"appium:app":            "/app/ApiDemos-debug.apk",
		"appium:automationName": "UiAutomator2",
	}
}

func connect(t *testing.T, s *Server) *appium.Client {
	t.Helper()
	client := appium.NewClient(s.URL)
	if err := client.Connect(context.Background(), validCaps()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client
}

func TestServer_SessionLifecycle(t *testing.T) {
	s := NewServer()
	defer s.Close()

	client := connect(t, s)
	if s.ActiveSessions() != 1 {
		t.Fatalf("ActiveSessions() = %d, want 1", s.ActiveSessions())
	}
	if s.Screen(client.SessionID()) != ScreenMain {
		t.Errorf("new session should start on the main screen")
	}

	if err := client.Disconnect(context.Background()); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if s.ActiveSessions() != 0 {
		t.Errorf("ActiveSessions() = %d after disconnect, want 0", s.ActiveSessions())
	}
}

func TestServer_RequiresCapabilities(t *testing.T) {
	s := NewServer()
	defer s.Close()

	caps := validCaps()
	delete(caps, "appium:app")

	err := appium.NewClient(s.URL).Connect(context.Background(), caps)
	if !appium.HasCode(err, appium.ErrCodeSessionNotCreated) {
		t.Errorf("Expected session not created, got %v", err)
	}
}

func TestServer_RejectSessions(t *testing.T) {
	s := NewServer(WithRejectSessions())
	defer s.Close()

	err := appium.NewClient(s.URL).Connect(context.Background(), validCaps())
	if !appium.HasCode(err, appium.ErrCodeSessionNotCreated) {
		t.Errorf("Expected session not created, got %v", err)
	}
	if s.ActiveSessions() != 0 {
		t.Error("rejected request should not open a session")
	}
}

func TestServer_Status(t *testing.T) {
	s := NewServer()
	defer s.Close()

	resp, err := http.Get(s.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status failed: %v", err)
	}
	var envelope struct {
		Value appium.ServerStatus `json:"value"`
	}
	err = json.NewDecoder(resp.Body).Decode(&envelope)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode /status: %v", err)
	}
	if !envelope.Value.Ready || envelope.Value.Build.Version != ServerVersion {
		t.Errorf("unexpected status %+v", envelope.Value)
	}

	s.Configure(func(s *Server) { s.StatusCode = http.StatusServiceUnavailable })
	resp, err = http.Get(s.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", resp.StatusCode)
	}
}

func TestServer_Navigation(t *testing.T) {
	s := NewServer()
	defer s.Close()
	ctx := context.Background()
	client := connect(t, s)
	sid := client.SessionID()

	el, err := client.Find(ctx, appium.ByAccessibilityID, "Accessibility")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if err := el.Click(ctx); err != nil {
		t.Fatalf("Click failed: %v", err)
	}
	if s.Screen(sid) != ScreenAccessibility {
		t.Fatalf("Screen() = %q, want %q", s.Screen(sid), ScreenAccessibility)
	}
	if _, err := client.Find(ctx, appium.ByAccessibilityID, "Accessibility Node Provider"); err != nil {
		t.Errorf("Node Provider should be visible: %v", err)
	}

	// Handles from the previous screen are stale
	if err := el.Click(ctx); !appium.HasCode(err, appium.ErrCodeStaleElement) {
		t.Errorf("Expected stale element, got %v", err)
	}

	if err := client.Back(ctx); err != nil {
		t.Fatalf("Back failed: %v", err)
	}
	if s.Screen(sid) != ScreenMain {
		t.Errorf("Screen() = %q after back, want main", s.Screen(sid))
	}
}

func TestServer_LandscapeNeedsScroll(t *testing.T) {
	s := NewServer()
	defer s.Close()
	ctx := context.Background()
	client := connect(t, s)

	if err := client.SetOrientation(ctx, appium.Landscape); err != nil {
		t.Fatalf("SetOrientation failed: %v", err)
	}

	_, err := client.Find(ctx, appium.ByAccessibilityID, "Text")
	if !appium.IsNoSuchElement(err) {
		t.Fatalf("Text should be off screen in landscape, got %v", err)
	}

	el, err := client.Find(ctx, appium.ByUiAutomator, appium.UiScrollableText("Text"))
	if err != nil {
		t.Fatalf("scroll find failed: %v", err)
	}
	if err := el.Click(ctx); err != nil {
		t.Fatalf("Click failed: %v", err)
	}
	if s.Screen(client.SessionID()) != ScreenText {
		t.Errorf("Screen() = %q, want text", s.Screen(client.SessionID()))
	}
}

func TestServer_LogTextBox(t *testing.T) {
	s := NewServer(WithAddedText("hello\n"))
	defer s.Close()
	ctx := context.Background()
	client := connect(t, s)

	for _, name := range []string{"Text", "LogTextBox", "Add"} {
		el, err := client.Find(ctx, appium.ByAccessibilityID, name)
		if err != nil {
			t.Fatalf("Find(%q) failed: %v", name, err)
		}
		if err := el.Click(ctx); err != nil {
			t.Fatalf("Click(%q) failed: %v", name, err)
		}
	}

	el, err := client.Find(ctx, appium.ByID, LogTextID)
	if err != nil {
		t.Fatalf("Find log text failed: %v", err)
	}
	text, err := el.Text(ctx)
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if text != "hello\n" || s.LogText(client.SessionID()) != "hello\n" {
		t.Errorf("log text = %q", text)
	}

	activity, err := client.CurrentActivity(ctx)
	if err != nil {
		t.Fatalf("CurrentActivity failed: %v", err)
	}
	if activity != LogTextBoxActivity {
		t.Errorf("CurrentActivity() = %q, want %q", activity, LogTextBoxActivity)
	}
}

func TestServer_Missing(t *testing.T) {
	s := NewServer(WithMissing("Accessibility"))
	defer s.Close()
	client := connect(t, s)

	_, err := client.Find(context.Background(), appium.ByAccessibilityID, "Accessibility")
	if !appium.IsNoSuchElement(err) {
		t.Errorf("Expected no such element, got %v", err)
	}
}

func TestServer_AppInstalled(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		appID   string
		want    bool
		legacyN int
	}{
		{"installed", nil, PackageName, true, 0},
		{"unknown package", nil, "com.example.none", false, 0},
		{"without app", []Option{WithoutApp()}, PackageName, false, 0},
		{"legacy endpoint", []Option{WithLegacyEndpoints()}, PackageName, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(tt.opts...)
			defer s.Close()
			client := connect(t, s)

			got, err := client.IsAppInstalled(context.Background(), tt.appID)
			if err != nil {
				t.Fatalf("IsAppInstalled failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsAppInstalled(%q) = %v, want %v", tt.appID, got, tt.want)
			}
			if n := s.CountRequests("POST /session/" + client.SessionID() + "/appium/device/app_installed"); n != tt.legacyN {
				t.Errorf("legacy endpoint called %d times, want %d", n, tt.legacyN)
			}
		})
	}
}

func TestServer_UnknownSession(t *testing.T) {
	s := NewServer()
	defer s.Close()

	resp, err := http.Get(s.URL + "/session/nope/orientation")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
