package types

// RunStatus is the terminal status of one execution run. The executor's
// terminal state name becomes the run's status.
type RunStatus string

const (
	StatusCompleted       RunStatus = "completed"
	StatusCaptchaDetected RunStatus = "captcha_detected"
	StatusAborted         RunStatus = "aborted"
	StatusFailed          RunStatus = "failed"
)

// Outcome records the result of one executor action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// ExecutionEntry is one recorded action within a run.
type ExecutionEntry struct {
	// Action names the state-machine step ("navigate", "fill_field", ...).
	Action string `json:"action"`

	// Field is the target field name for field-level actions.
	Field string `json:"field,omitempty"`

	Outcome Outcome `json:"outcome"`

	// Detail carries error text or supplementary context.
	Detail string `json:"detail,omitempty"`
}

// ExecutionLog is the ordered record of one run. It is created per
// execution, immutable once the run ends, and is the sole artifact
// persisted to the audit log for that run.
type ExecutionLog struct {
	Entries      []ExecutionEntry `json:"entries"`
	Status       RunStatus        `json:"status"`
	FieldsFilled int              `json:"fields_filled"`
}

// Append records one action. Entries preserve insertion order.
func (l *ExecutionLog) Append(action, field string, outcome Outcome, detail string) {
	l.Entries = append(l.Entries, ExecutionEntry{
		Action:  action,
		Field:   field,
		Outcome: outcome,
		Detail:  detail,
	})
}

// FieldEntries returns only the field-level entries of the log.
func (l *ExecutionLog) FieldEntries() []ExecutionEntry {
	var out []ExecutionEntry
	for _, e := range l.Entries {
		if e.Field != "" {
			out = append(out, e)
		}
	}
	return out
}

// CountOutcome returns how many field-level entries ended with the given
// outcome.
func (l *ExecutionLog) CountOutcome(o Outcome) int {
	n := 0
	for _, e := range l.Entries {
		if e.Field != "" && e.Outcome == o {
			n++
		}
	}
	return n
}

// RunResult is the caller-visible outcome of one pipeline run.
type RunResult struct {
	CorrelationID string          `json:"correlation_id"`
	Status        RunStatus       `json:"status"`
	SafetyDecision SafetyDecision `json:"safety_decision"`
	ExecutionLog  *ExecutionLog   `json:"execution_log,omitempty"`
	Error         string          `json:"error,omitempty"`
}
