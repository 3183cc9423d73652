package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session is one isolated browser/context/page triple implementing
// Driver. Sessions are never shared across concurrent runs.
type Session struct {
	id             string
	browser        playwright.Browser
	context        playwright.BrowserContext
	page           playwright.Page
	defaultTimeout time.Duration
	onClose        func(id string)
	closeOnce      sync.Once
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// timeoutMS converts a timeout to Playwright milliseconds, substituting
// the session default for zero.
func (s *Session) timeoutMS(timeout time.Duration) float64 {
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	return float64(timeout.Milliseconds())
}

// Navigate loads the URL and waits until the network goes idle, matching
// the point at which dynamically rendered forms are present.
func (s *Session) Navigate(url string, timeout time.Duration) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(s.timeoutMS(timeout)),
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Fill sets the value of a text-like input.
func (s *Session) Fill(selector, value string, timeout time.Duration) error {
	err := s.page.Fill(selector, value, playwright.PageFillOptions{
		Timeout: playwright.Float(s.timeoutMS(timeout)),
	})
	if err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

// SelectOption chooses a select element's option by value.
func (s *Session) SelectOption(selector, value string, timeout time.Duration) error {
	_, err := s.page.SelectOption(selector, playwright.SelectOptionValues{
		Values: &[]string{value},
	}, playwright.PageSelectOptionOptions{
		Timeout: playwright.Float(s.timeoutMS(timeout)),
	})
	if err != nil {
		return fmt.Errorf("select failed: %w", err)
	}
	return nil
}

// SetChecked checks or unchecks a checkbox.
func (s *Session) SetChecked(selector string, checked bool, timeout time.Duration) error {
	opts := playwright.PageCheckOptions{Timeout: playwright.Float(s.timeoutMS(timeout))}
	var err error
	if checked {
		err = s.page.Check(selector, opts)
	} else {
		err = s.page.Uncheck(selector, playwright.PageUncheckOptions{
			Timeout: playwright.Float(s.timeoutMS(timeout)),
		})
	}
	if err != nil {
		return fmt.Errorf("set checked failed: %w", err)
	}
	return nil
}

// Click clicks the element located by selector.
func (s *Session) Click(selector string, timeout time.Duration) error {
	err := s.page.Click(selector, playwright.PageClickOptions{
		Timeout: playwright.Float(s.timeoutMS(timeout)),
	})
	if err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

// WaitForLoad waits for the page to settle after an action.
func (s *Session) WaitForLoad(timeout time.Duration) error {
	err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(s.timeoutMS(timeout)),
	})
	if err != nil {
		return fmt.Errorf("wait for load failed: %w", err)
	}
	return nil
}

// Exists reports whether any element matches the selector.
func (s *Session) Exists(selector string) (bool, error) {
	element, err := s.page.QuerySelector(selector)
	if err != nil {
		return false, fmt.Errorf("selector query failed: %w", err)
	}
	return element != nil, nil
}

// Content returns the rendered page HTML.
func (s *Session) Content() (string, error) {
	content, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("content extraction failed: %w", err)
	}
	return content, nil
}

// URL returns the page's current URL.
func (s *Session) URL() string {
	return s.page.URL()
}

// Close releases the session's resources and unregisters it from its
// manager. Safe to call multiple times.
func (s *Session) Close() error {
	s.closeResources()
	return nil
}

func (s *Session) closeResources() {
	s.closeOnce.Do(func() {
		_ = s.page.Close()    // Ignore errors, continue cleanup
		_ = s.context.Close() // Ignore errors, continue cleanup
		_ = s.browser.Close() // Ignore errors, continue cleanup
		if s.onClose != nil {
			s.onClose(s.id)
		}
	})
}
