package safety

import (
	"net/url"
	"strings"
	"time"

	"github.com/entrhq/formpilot/pkg/logging"
	"github.com/entrhq/formpilot/pkg/types"
)

// Default policy limits, matching the shipped configuration.
const (
	DefaultMaxSubmissionsPerHour = 10
	DefaultRateWindow            = time.Hour
)

// Engine is the safety policy gate. Evaluate is synchronous, side-effect
// limited to the rate counter mutation, and safe under concurrent
// invocation. Decisions are computed fresh on every call and must not be
// cached by callers.
type Engine struct {
	auth   *Authorizer
	limits *RateLimiter
	logger *logging.Logger
}

// Options configures an Engine.
type Options struct {
	AllowedDomains        []string
	DeniedDomains         []string
	AllowLoopback         bool
	MaxSubmissionsPerHour int
	RateWindow            time.Duration
}

// NewEngine builds the policy gate from options, applying defaults for
// unset limits.
func NewEngine(opts Options, logger *logging.Logger) (*Engine, error) {
	auth, err := NewAuthorizer(opts.AllowedDomains, opts.DeniedDomains, opts.AllowLoopback)
	if err != nil {
		return nil, err
	}

	ceiling := opts.MaxSubmissionsPerHour
	if ceiling <= 0 {
		ceiling = DefaultMaxSubmissionsPerHour
	}
	window := opts.RateWindow
	if window <= 0 {
		window = DefaultRateWindow
	}

	return &Engine{
		auth:   auth,
		limits: NewRateLimiter(ceiling, window),
		logger: logger,
	}, nil
}

// Evaluate gates one action against the target URL. Submission attempts
// count against the per-domain rate ceiling; analysis-only calls do not.
func (e *Engine) Evaluate(rawURL string, kind types.ActionKind, caller string) types.SafetyDecision {
	if err := e.auth.Authorize(rawURL); err != nil {
		e.logf("authorization denied for %s (%s, caller=%s): %v", rawURL, kind, caller, err)
		return types.Deny(types.PolicyAuthorization, err.Error())
	}

	if kind == types.ActionSubmit {
		key := domainKey(rawURL)
		if !e.limits.Allow(key) {
			e.logf("rate limit exceeded for %s (caller=%s)", key, caller)
			return types.Deny(types.PolicyRateLimit, "submission rate limit exceeded for "+key)
		}
	}

	return types.Allow()
}

// CaptchaDecision converts a runtime CAPTCHA signal raised by the executor
// into the shared decision taxonomy, so a CAPTCHA-terminated run is
// recorded the same way as a denied submission.
func (e *Engine) CaptchaDecision(rawURL, marker string) types.SafetyDecision {
	e.logf("captcha detected on %s (marker=%s)", rawURL, marker)
	return types.Deny(types.PolicyCaptcha, "captcha challenge detected: "+marker)
}

// SubmissionCount reports the current rate counter for the URL's domain.
func (e *Engine) SubmissionCount(rawURL string) int {
	return e.limits.Count(domainKey(rawURL))
}

func (e *Engine) logf(format string, v ...interface{}) {
	if e.logger != nil {
		e.logger.Infof(format, v...)
	}
}

// domainKey maps a URL to its rate-limit counter key. Unparseable URLs
// share the global key; they will already have failed authorization.
func domainKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "global"
	}
	return strings.ToLower(u.Hostname())
}
