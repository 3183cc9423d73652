// Package executor drives a browser session through one fill-and-submit
// run as an explicit state machine. Field-level problems are recovered
// locally and aggregated; run-level problems (navigation, CAPTCHA, submit
// timeout) terminate the run. No submission ever happens without the
// caller-confirmed flag, which is re-checked here as a hard precondition.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/entrhq/formpilot/pkg/browser"
	"github.com/entrhq/formpilot/pkg/logging"
	"github.com/entrhq/formpilot/pkg/types"
)

// Default operation timeouts.
const (
	DefaultNavigationTimeout = 30 * time.Second
	DefaultActionTimeout     = 10 * time.Second
	DefaultSubmitTimeout     = 10 * time.Second
)

// submitSelectors is the ladder of selectors tried to locate the form's
// submit control, most specific first.
var submitSelectors = []string{
	`button[type="submit"]`,
	`input[type="submit"]`,
	`form button:last-child`,
	`form button`,
}

// successIndicators are phrases scanned for on the landed page after a
// submit. A hit is recorded in the log; absence is not a failure.
var successIndicators = []string{
	"success", "confirmation", "thank you", "submitted",
	"application received", "accepted", "successful",
}

// Request describes one execution run.
type Request struct {
	Schema  *types.FormSchema
	Profile types.ProfileData

	// Submit requests the form be submitted after filling. When false the
	// run stops at the submit decision point with a completed status.
	Submit bool

	// UserConfirmed must be true for any run with Submit set. The
	// orchestrator obtains it; the executor re-checks it and fails fast
	// with approval_required before touching any field.
	UserConfirmed bool
}

// Executor runs fill-and-submit requests against isolated browser
// sessions.
type Executor struct {
	sessions      browser.Factory
	retry         RetryPolicy
	navTimeout    time.Duration
	actionTimeout time.Duration
	submitTimeout time.Duration
	logger        *logging.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithRetryPolicy overrides the per-action retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Executor) { e.retry = p }
}

// WithTimeouts overrides the navigation, action, and submit timeouts.
// Zero values keep the defaults.
func WithTimeouts(nav, action, submit time.Duration) Option {
	return func(e *Executor) {
		if nav > 0 {
			e.navTimeout = nav
		}
		if action > 0 {
			e.actionTimeout = action
		}
		if submit > 0 {
			e.submitTimeout = submit
		}
	}
}

// New creates an Executor that opens one session per run from sessions.
func New(sessions browser.Factory, logger *logging.Logger, opts ...Option) *Executor {
	e := &Executor{
		sessions:      sessions,
		retry:         DefaultRetryPolicy,
		navTimeout:    DefaultNavigationTimeout,
		actionTimeout: DefaultActionTimeout,
		submitTimeout: DefaultSubmitTimeout,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run is the per-execution state holder.
type run struct {
	exec   *Executor
	driver browser.Driver
	req    Request
	log    *types.ExecutionLog
	state  State
}

// Run executes one request. The returned log is always populated, with
// the terminal state's name as its status; the error carries the typed
// failure for terminal problems and is nil for completed runs.
func (e *Executor) Run(ctx context.Context, req Request) (*types.ExecutionLog, error) {
	r := &run{exec: e, req: req, log: &types.ExecutionLog{}, state: StateIdle}

	// Hard precondition: a submit run without confirmation terminates
	// before any field interaction.
	if req.Submit && !req.UserConfirmed {
		err := types.NewFailure(types.FailApproval, "user confirmation required before submission")
		r.terminate(StateAborted, err.Error())
		return r.log, err
	}

	driver, err := e.sessions.NewDriver()
	if err != nil {
		failure := types.WrapFailure(types.FailNavigation, "failed to open browser session", err)
		r.terminate(StateFailed, failure.Error())
		return r.log, failure
	}
	defer driver.Close()
	r.driver = driver

	if failure := r.navigate(); failure != nil {
		return r.log, failure
	}
	if failure := r.fill(ctx); failure != nil {
		return r.log, failure
	}

	r.enter(StateAwaitingSubmitDecision, fmt.Sprintf("%d filled, %d failed, %d skipped",
		r.log.FieldsFilled, r.log.CountOutcome(types.OutcomeFailed), r.log.CountOutcome(types.OutcomeSkipped)))

	if !req.Submit {
		r.terminate(StateCompleted, "fill-only run, no submission requested")
		return r.log, nil
	}

	// Last cancellation point: once Submitting starts the run always
	// reaches a terminal state to avoid inconsistent partial submissions.
	if ctx.Err() != nil {
		r.terminate(StateAborted, "run cancelled before submission")
		return r.log, ctx.Err()
	}

	if failure := r.submit(); failure != nil {
		return r.log, failure
	}

	r.terminate(StateCompleted, "form submitted")
	return r.log, nil
}

// enter transitions to a non-terminal state, appending one log entry.
func (r *run) enter(s State, detail string) {
	r.state = s
	r.log.Append(s.String(), "", types.OutcomeSuccess, detail)
}

// terminate transitions to a terminal state, appending one log entry and
// fixing the run status.
func (r *run) terminate(s State, detail string) {
	r.state = s
	outcome := types.OutcomeSuccess
	if s != StateCompleted {
		outcome = types.OutcomeFailed
	}
	r.log.Append(s.String(), "", outcome, detail)
	r.log.Status = s.Status()
	if r.exec.logger != nil {
		r.exec.logger.Infof("run terminated in %s: %s", s, detail)
	}
}

// navigate performs the Navigating stage, including the CAPTCHA probe.
func (r *run) navigate() error {
	r.enter(StateNavigating, r.req.Schema.URL)

	if err := r.driver.Navigate(r.req.Schema.URL, r.exec.navTimeout); err != nil {
		failure := types.WrapFailure(types.FailNavigation, "failed to load "+r.req.Schema.URL, err)
		r.terminate(StateFailed, failure.Error())
		return failure
	}

	return r.captchaProbe()
}

// captchaProbe terminates the run when a CAPTCHA marker is present.
func (r *run) captchaProbe() error {
	found, marker, err := browser.DetectCaptcha(r.driver)
	if err != nil {
		failure := types.WrapFailure(types.FailNavigation, "captcha probe failed", err)
		r.terminate(StateFailed, failure.Error())
		return failure
	}
	if found {
		failure := types.NewFailure(types.FailCaptcha, "captcha marker "+marker)
		r.terminate(StateCaptchaDetected, failure.Error())
		return failure
	}
	return nil
}

// fill performs the Filling stage over the schema's fields in document
// order. A single field failure never aborts the run.
func (r *run) fill(ctx context.Context) error {
	r.enter(StateFilling, fmt.Sprintf("%d fields", len(r.req.Schema.Fields)))

	for _, field := range r.req.Schema.Fields {
		if ctx.Err() != nil {
			r.terminate(StateAborted, "run cancelled while filling")
			return ctx.Err()
		}
		r.fillField(field)
	}
	return nil
}

// fillField resolves and sets one field, recording exactly one entry.
func (r *run) fillField(field types.FormField) {
	value, ok := r.req.Profile.Lookup(field)
	if !ok {
		if field.Required {
			r.log.Append("fill_field", field.Name, types.OutcomeFailed, "no value for required field")
		} else {
			r.log.Append("fill_field", field.Name, types.OutcomeSkipped, "no value in profile")
		}
		return
	}

	if reason, mismatch := valueMismatch(field, value); mismatch {
		// Advisory mapping: a declared type that does not fit the profile
		// value is a soft warning, the field is skipped, the run goes on.
		r.log.Append("fill_field", field.Name, types.OutcomeSkipped, reason)
		return
	}

	err := r.exec.retry.Do(func() error {
		return r.setField(field, value)
	})
	if err != nil {
		r.log.Append("fill_field", field.Name, types.OutcomeFailed, err.Error())
		return
	}

	r.log.FieldsFilled++
	r.log.Append("fill_field", field.Name, types.OutcomeSuccess, "")
}

// setField dispatches the type-appropriate set action.
func (r *run) setField(field types.FormField, value string) error {
	timeout := r.exec.actionTimeout
	switch field.Type {
	case types.FieldSelect:
		return r.driver.SelectOption(field.Selector, value, timeout)
	case types.FieldCheckbox:
		checked, _ := strconv.ParseBool(value) // mismatch already screened
		return r.driver.SetChecked(field.Selector, checked, timeout)
	case types.FieldRadio:
		return r.driver.Click(field.Selector, timeout)
	default:
		return r.driver.Fill(field.Selector, value, timeout)
	}
}

// valueMismatch screens profile values against the field's declared type.
func valueMismatch(field types.FormField, value string) (string, bool) {
	switch field.Type {
	case types.FieldFile:
		return "file upload is not supported", true
	case types.FieldCheckbox:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Sprintf("value %q is not a boolean", value), true
		}
	case types.FieldNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Sprintf("value %q is not numeric", value), true
		}
	case types.FieldSelect, types.FieldRadio:
		if len(field.Options) > 0 && !containsFold(field.Options, value) {
			return fmt.Sprintf("value %q is not among the field options", value), true
		}
	}
	return "", false
}

func containsFold(options []string, value string) bool {
	for _, o := range options {
		if strings.EqualFold(o, value) {
			return true
		}
	}
	return false
}

// submit performs the Submitting stage: locate the submit control, click
// it, and wait for the page to settle.
func (r *run) submit() error {
	// The page may have grown a challenge while filling.
	if err := r.captchaProbe(); err != nil {
		return err
	}

	r.enter(StateSubmitting, "")

	selector, err := r.findSubmitControl()
	if err != nil {
		r.terminate(StateFailed, err.Error())
		return err
	}

	if err := r.exec.retry.Do(func() error {
		return r.driver.Click(selector, r.exec.actionTimeout)
	}); err != nil {
		failure := types.WrapFailure(types.FailSubmit, "submit click failed", err)
		r.terminate(StateFailed, failure.Error())
		return failure
	}

	if err := r.driver.WaitForLoad(r.exec.submitTimeout); err != nil {
		failure := types.WrapFailure(types.FailSubmit, "timed out waiting for submission response", err)
		r.terminate(StateFailed, failure.Error())
		return failure
	}

	r.scanConfirmation()
	return nil
}

// findSubmitControl walks the selector ladder for a clickable submit
// element.
func (r *run) findSubmitControl() (string, error) {
	for _, selector := range submitSelectors {
		found, err := r.driver.Exists(selector)
		if err != nil {
			return "", fmt.Errorf("submit control lookup failed: %w", err)
		}
		if found {
			return selector, nil
		}
	}
	return "", errors.New("no submit control found on page")
}

// scanConfirmation records whether the landed page looks like a
// confirmation. Inconclusive pages are logged, never failed.
func (r *run) scanConfirmation() {
	content, err := r.driver.Content()
	if err != nil {
		r.log.Append("submit", "", types.OutcomeSuccess, "submitted, response page unreadable")
		return
	}
	lowered := strings.ToLower(content)
	for _, indicator := range successIndicators {
		if strings.Contains(lowered, indicator) {
			r.log.Append("submit", "", types.OutcomeSuccess, "confirmation detected: "+indicator)
			return
		}
	}
	r.log.Append("submit", "", types.OutcomeSuccess, "submitted, response unclear")
}
