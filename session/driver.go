package session

import "context"

// Driver is the browser capability the session manager needs. The
// production implementation is automation.Browser; tests use a fake.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// ClickByText clicks the first element matching the CSS selector whose
	// text matches pattern (JavaScript regex syntax, e.g. "/login/i").
	ClickByText(ctx context.Context, selector, pattern string) error
	FillField(ctx context.Context, selector, value string) error
	// Submit clicks the element matching selector, or presses Enter in the
	// focused field when no such element exists.
	Submit(ctx context.Context, selector string) error
	PageText(ctx context.Context) (string, error)
	// ReadStorage returns the value stored under key in localStorage or
	// sessionStorage, or "" when absent.
	ReadStorage(ctx context.Context, key string) (string, error)
	// ClearStorage empties localStorage and sessionStorage of the current
	// page's origin.
	ClearStorage(ctx context.Context) error
	Close() error
}
