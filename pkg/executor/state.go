package executor

import "github.com/entrhq/formpilot/pkg/types"

// State is one node of the execution state machine. A run moves
// Idle → Navigating → Filling → AwaitingSubmitDecision → Submitting →
// Completed, with CaptchaDetected, Aborted, and Failed reachable from
// Navigating, Filling, and Submitting.
type State int

const (
	StateIdle State = iota
	StateNavigating
	StateFilling
	StateAwaitingSubmitDecision
	StateSubmitting
	StateCompleted
	StateCaptchaDetected
	StateAborted
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:                   "idle",
	StateNavigating:             "navigating",
	StateFilling:                "filling",
	StateAwaitingSubmitDecision: "awaiting_submit_decision",
	StateSubmitting:             "submitting",
	StateCompleted:              "completed",
	StateCaptchaDetected:        "captcha_detected",
	StateAborted:                "aborted",
	StateFailed:                 "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the state ends a run.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCaptchaDetected, StateAborted, StateFailed:
		return true
	}
	return false
}

// Status maps a terminal state to the run status carried on the
// execution log. The terminal state's name is the run's status.
func (s State) Status() types.RunStatus {
	switch s {
	case StateCompleted:
		return types.StatusCompleted
	case StateCaptchaDetected:
		return types.StatusCaptchaDetected
	case StateAborted:
		return types.StatusAborted
	default:
		return types.StatusFailed
	}
}
