package types

// ActionKind distinguishes analysis-only requests from submissions for
// policy purposes. Only submissions count against rate limits.
type ActionKind string

const (
	ActionAnalyze ActionKind = "analyze"
	ActionSubmit  ActionKind = "submit"
)

// PolicyKind names the policy that produced a safety decision.
type PolicyKind string

const (
	PolicyNone          PolicyKind = "none"
	PolicyAuthorization PolicyKind = "authorization"
	PolicyRateLimit     PolicyKind = "rate_limit"
	PolicyCaptcha       PolicyKind = "captcha"
)

// SafetyDecision is the allow/deny verdict produced before any submission.
// Decisions are computed fresh per request and never cached: authorization
// and rate state change over time.
type SafetyDecision struct {
	Allowed bool       `json:"allowed"`
	Reason  string     `json:"reason,omitempty"`
	Policy  PolicyKind `json:"policy_triggered"`
}

// Allow returns a passing decision.
func Allow() SafetyDecision {
	return SafetyDecision{Allowed: true, Policy: PolicyNone}
}

// Deny returns a failing decision attributed to the given policy.
func Deny(policy PolicyKind, reason string) SafetyDecision {
	return SafetyDecision{Allowed: false, Policy: policy, Reason: reason}
}
