package browser

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
)

// Default values for session operations.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultMaxSessions    = 8
)

// SessionOptions configures new browser sessions.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window.
	Headless bool

	// Timeout is the default timeout applied to page operations.
	Timeout time.Duration
}

// SessionManager owns the Playwright instance and tracks active sessions.
// It implements Factory; every NewDriver call launches an isolated
// browser, context, and page.
type SessionManager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	playwright  *playwright.Playwright
	opts        SessionOptions
	maxSessions int
	initialized bool
}

// NewSessionManager creates a session manager that will open sessions
// with the given options.
func NewSessionManager(opts SessionOptions) *SessionManager {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &SessionManager{
		sessions:    make(map[string]*Session),
		opts:        opts,
		maxSessions: DefaultMaxSessions,
	}
}

// Initialize installs and starts Playwright. Must be called before any
// session is created. Driver output is discarded so it cannot interleave
// with the process's own logging.
func (m *SessionManager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	return nil
}

// NewDriver creates an isolated browser session and returns it as a
// Driver. The caller owns the session and must Close it.
func (m *SessionManager) NewDriver() (Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("session manager not initialized")
	}
	if len(m.sessions) >= m.maxSessions {
		return nil, fmt.Errorf("maximum number of sessions (%d) reached", m.maxSessions)
	}

	browser, err := m.playwright.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.opts.Headless),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		},
	})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(float64(m.opts.Timeout.Milliseconds()))

	session := &Session{
		id:             uuid.New().String(),
		browser:        browser,
		context:        context,
		page:           page,
		defaultTimeout: m.opts.Timeout,
		onClose:        m.release,
	}
	m.sessions[session.id] = session
	return session, nil
}

// release drops a closed session from the tracking map.
func (m *SessionManager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// ActiveSessions returns the number of open sessions.
func (m *SessionManager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SetMaxSessions bounds the number of concurrently open sessions.
func (m *SessionManager) SetMaxSessions(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxSessions = max
}

// Shutdown closes every open session and stops Playwright.
func (m *SessionManager) Shutdown() error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.closeResources()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized && m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		m.initialized = false
	}
	return nil
}
