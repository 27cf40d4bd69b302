package core

// StateSnapshot captures the current device/app state
type StateSnapshot struct {
	Orientation     string `json:"orientation,omitempty"`     // PORTRAIT, LANDSCAPE
	CurrentActivity string `json:"currentActivity,omitempty"` // Android activity
	CurrentPackage  string `json:"currentPackage,omitempty"`  // Android package in foreground
}

// PlatformInfo contains device and platform details
type PlatformInfo struct {
	Platform       string `json:"platform"`                 // Android
	DeviceName     string `json:"deviceName"`               // e.g., "emulator-5554"
	AutomationName string `json:"automationName,omitempty"` // e.g., "UiAutomator2"
	AppPath        string `json:"appPath,omitempty"`        // APK path on the server host
	AppID          string `json:"appId,omitempty"`          // Package name
	ServerURL      string `json:"serverUrl,omitempty"`
	ServerVersion  string `json:"serverVersion,omitempty"`
}
