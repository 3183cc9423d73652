package types

import (
	"errors"
	"fmt"
)

// FailureKind is the closed taxonomy of pipeline failures. Every failure
// kind produces exactly one audit entry and one caller-visible status.
type FailureKind string

const (
	// Analyzer failures.
	FailFetch       FailureKind = "fetch_error"
	FailNoFormFound FailureKind = "no_form_found"
	FailMapping     FailureKind = "mapping_error"

	// Safety engine failures.
	FailAuthorization FailureKind = "authorization_denied"
	FailRateLimit     FailureKind = "rate_limit_exceeded"

	// Executor failures.
	FailCaptcha    FailureKind = "captcha_detected"
	FailNavigation FailureKind = "navigation_error"
	FailApproval   FailureKind = "approval_required"
	FailSubmit     FailureKind = "submit_timeout"
)

// Failure is a typed pipeline error. Two Failures match under errors.Is
// when their kinds are equal, so the sentinels below can be used as
// targets regardless of message or wrapped cause.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	switch {
	case f.Message != "" && f.Err != nil:
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	case f.Message != "":
		return fmt.Sprintf("%s: %s", f.Kind, f.Message)
	case f.Err != nil:
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	default:
		return string(f.Kind)
	}
}

func (f *Failure) Unwrap() error { return f.Err }

// Is matches any *Failure with the same kind.
func (f *Failure) Is(target error) bool {
	var t *Failure
	if !errors.As(target, &t) {
		return false
	}
	return f.Kind == t.Kind
}

// NewFailure creates a failure of the given kind.
func NewFailure(kind FailureKind, message string) *Failure {
	return &Failure{Kind: kind, Message: message}
}

// WrapFailure creates a failure of the given kind wrapping a cause.
func WrapFailure(kind FailureKind, message string, err error) *Failure {
	return &Failure{Kind: kind, Message: message, Err: err}
}

// FailureKindOf walks an error chain and returns the kind of the first
// Failure found, or empty when the chain carries none.
func FailureKindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// Sentinel failures for errors.Is matching.
var (
	ErrFetch         = &Failure{Kind: FailFetch}
	ErrNoFormFound   = &Failure{Kind: FailNoFormFound}
	ErrMapping       = &Failure{Kind: FailMapping}
	ErrAuthorization = &Failure{Kind: FailAuthorization}
	ErrRateLimit     = &Failure{Kind: FailRateLimit}
	ErrCaptcha       = &Failure{Kind: FailCaptcha}
	ErrNavigation    = &Failure{Kind: FailNavigation}
	ErrApproval      = &Failure{Kind: FailApproval}
	ErrSubmit        = &Failure{Kind: FailSubmit}
)
