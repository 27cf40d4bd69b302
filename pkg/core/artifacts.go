// Package core provides the execution model types for apidemos-e2e.
package core

import "context"

// Attachment represents a debug artifact captured after a test
type Attachment struct {
	Name        string `json:"name"`        // Descriptive name: screenshot, hierarchy
	ContentType string `json:"contentType"` // MIME type: image/png, application/xml
	Path        string `json:"path"`        // File path relative to output directory
	Body        []byte `json:"-"`           // In-memory content (not serialized to JSON)
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentHierarchy  = "hierarchy"
)

// Common content types
const (
	ContentTypePNG = "image/png"
	ContentTypeXML = "application/xml"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(data []byte) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Body:        data,
	}
}

// NewHierarchyAttachment creates a page source attachment
func NewHierarchyAttachment(data []byte) Attachment {
	return Attachment{
		Name:        AttachmentHierarchy,
		ContentType: ContentTypeXML,
		Body:        data,
	}
}

// FileName returns the file name an attachment is stored under.
func (a Attachment) FileName() string {
	switch a.ContentType {
	case ContentTypePNG:
		return a.Name + ".png"
	case ContentTypeXML:
		return a.Name + ".xml"
	default:
		return a.Name + ".bin"
	}
}

// ArtifactConfig controls when and what artifacts are captured
type ArtifactConfig struct {
	// When to capture
	CaptureOnFailure bool `yaml:"captureOnFailure" json:"captureOnFailure"` // Default: true
	CaptureOnSuccess bool `yaml:"captureOnSuccess" json:"captureOnSuccess"` // Default: false

	// What to capture
	Screenshot  bool `yaml:"screenshot" json:"screenshot"`   // Default: true
	UIHierarchy bool `yaml:"uiHierarchy" json:"uiHierarchy"` // Default: true
}

// DefaultArtifactConfig returns sensible defaults for artifact capture
func DefaultArtifactConfig() ArtifactConfig {
	return ArtifactConfig{
		CaptureOnFailure: true,
		CaptureOnSuccess: false,
		Screenshot:       true,
		UIHierarchy:      true,
	}
}

// ShouldCapture returns true if artifacts should be captured for the given status
func (c ArtifactConfig) ShouldCapture(status StepStatus) bool {
	switch status {
	case StatusFailed, StatusErrored:
		return c.CaptureOnFailure
	case StatusPassed:
		return c.CaptureOnSuccess
	default:
		return false
	}
}

// ArtifactCollector defines the interface for capturing debug artifacts
// from a live session.
type ArtifactCollector interface {
	// CaptureScreenshot takes a screenshot and returns PNG data
	CaptureScreenshot(ctx context.Context) ([]byte, error)

	// CaptureHierarchy captures the UI hierarchy as XML
	CaptureHierarchy(ctx context.Context) ([]byte, error)

	// CaptureState returns the current device/app state
	CaptureState(ctx context.Context) *StateSnapshot
}

// NullArtifactCollector is a no-op implementation for testing
type NullArtifactCollector struct{}

// CaptureScreenshot returns nil (no-op)
func (n NullArtifactCollector) CaptureScreenshot(context.Context) ([]byte, error) { return nil, nil }

// CaptureHierarchy returns nil (no-op)
func (n NullArtifactCollector) CaptureHierarchy(context.Context) ([]byte, error) { return nil, nil }

// CaptureState returns nil (no-op)
func (n NullArtifactCollector) CaptureState(context.Context) *StateSnapshot { return nil }
