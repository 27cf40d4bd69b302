package appium

import "context"

// Element is a handle to one on-screen control at the time it was located.
// Handles are not reused across steps; locate again after the UI changes.
type Element struct {
	id     string
	client *Client
}

// NewElement wraps an element id returned by FindElement.
func NewElement(id string, client *Client) *Element {
	return &Element{id: id, client: client}
}

// ID returns the element ID.
func (e *Element) ID() string {
	return e.id
}

// Click clicks the element.
func (e *Element) Click(ctx context.Context) error {
	return e.client.ClickElement(ctx, e.id)
}

// Text returns the element's displayed text.
func (e *Element) Text(ctx context.Context) (string, error) {
	return e.client.GetElementText(ctx, e.id)
}

// Find locates one element and wraps it.
func (c *Client) Find(ctx context.Context, strategy, value string) (*Element, error) {
	id, err := c.FindElement(ctx, strategy, value)
	if err != nil {
		return nil, err
	}
	return NewElement(id, c), nil
}
