// Package browser wraps Playwright behind the narrow browser-control
// surface the pipeline needs. Each pipeline run owns its own session
// (browser, context, page) so cookies and navigation history never bleed
// between concurrent runs.
package browser

import "time"

// Driver is the executor's and analyzer's only dependency surface for
// browser control. Implementations must bound every operation that can
// block on the network with the given timeout; a zero timeout means the
// session default.
type Driver interface {
	// Navigate loads the URL and waits for the network to go idle.
	Navigate(url string, timeout time.Duration) error

	// Fill sets the value of a text-like input located by selector.
	Fill(selector, value string, timeout time.Duration) error

	// SelectOption chooses an option of a select element by value.
	SelectOption(selector, value string, timeout time.Duration) error

	// SetChecked checks or unchecks a checkbox.
	SetChecked(selector string, checked bool, timeout time.Duration) error

	// Click clicks the element located by selector.
	Click(selector string, timeout time.Duration) error

	// WaitForLoad waits for a terminal navigation or DOM-settle signal
	// after an action, bounded by timeout.
	WaitForLoad(timeout time.Duration) error

	// Exists reports whether any element matches the selector.
	Exists(selector string) (bool, error)

	// Content returns the rendered page HTML.
	Content() (string, error)

	// URL returns the page's current URL.
	URL() string

	// Close releases the session's browser resources.
	Close() error
}

// Factory creates one isolated Driver per pipeline run.
type Factory interface {
	NewDriver() (Driver, error)
}
