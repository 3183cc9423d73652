// Package safety implements the policy gate evaluated before any browser
// action: URL authorization, per-domain submission rate limiting, and the
// decision taxonomy shared with runtime CAPTCHA signals.
package safety

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// Authorizer decides whether a target URL may be touched at all. Rules,
// in order: the scheme must be http or https; hosts on loopback, private,
// or link-local ranges are rejected to avoid SSRF unless loopback is
// explicitly enabled for development; deny patterns always win; when an
// allow list is configured, the host must match it.
type Authorizer struct {
	allow         []glob.Glob
	deny          []glob.Glob
	allowLoopback bool
}

// NewAuthorizer compiles the domain pattern lists. Patterns use glob
// syntax ("*.example.com", "forms.acme.*").
func NewAuthorizer(allowPatterns, denyPatterns []string, allowLoopback bool) (*Authorizer, error) {
	a := &Authorizer{allowLoopback: allowLoopback}

	for _, p := range allowPatterns {
		g, err := glob.Compile(strings.ToLower(p), '.')
		if err != nil {
			return nil, fmt.Errorf("invalid allow pattern %q: %w", p, err)
		}
		a.allow = append(a.allow, g)
	}
	for _, p := range denyPatterns {
		g, err := glob.Compile(strings.ToLower(p), '.')
		if err != nil {
			return nil, fmt.Errorf("invalid deny pattern %q: %w", p, err)
		}
		a.deny = append(a.deny, g)
	}

	return a, nil
}

// Authorize returns nil when the URL passes every authorization rule,
// otherwise a descriptive error with the first failed rule.
func (a *Authorizer) Authorize(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("unparseable URL: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("scheme %q is not allowed, only http(s)", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("URL has no host")
	}

	if isLoopbackHost(host) {
		if !a.allowLoopback {
			return fmt.Errorf("loopback host %q is not allowed", host)
		}
	} else if ip := net.ParseIP(host); ip != nil && isRestrictedIP(ip) {
		return fmt.Errorf("host %q resolves to a restricted network range", host)
	}

	for _, g := range a.deny {
		if g.Match(host) {
			return fmt.Errorf("host %q matches the deny list", host)
		}
	}

	if len(a.allow) > 0 && !isLoopbackHost(host) {
		for _, g := range a.allow {
			if g.Match(host) {
				return nil
			}
		}
		return fmt.Errorf("host %q is not on the allow list", host)
	}

	return nil
}

// isLoopbackHost reports whether the host names the local machine.
func isLoopbackHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// isRestrictedIP reports whether a literal IP sits on a private,
// link-local, or otherwise non-public range. Hostnames are not resolved
// here; only literal addresses in the URL are checked.
func isRestrictedIP(ip net.IP) bool {
	return ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
