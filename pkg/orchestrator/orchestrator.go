// Package orchestrator sequences the form automation pipeline: analyze,
// safety-gate, approve, execute, audit. Execution is two-phase: Propose
// analyzes the form and parks a plan under a correlation ID; Execute
// consumes that plan only with explicit user confirmation. Every decision
// and outcome is written to the audit trail under the run's correlation
// ID.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/formpilot/pkg/executor"
	"github.com/entrhq/formpilot/pkg/logging"
	"github.com/entrhq/formpilot/pkg/types"
)

// FormAnalyzer produces a validated schema for a form URL.
type FormAnalyzer interface {
	Analyze(ctx context.Context, url string) (*types.FormSchema, error)
}

// SafetyGate evaluates policy for one action. Decisions are computed
// fresh on every call; the orchestrator never caches an earlier verdict
// across phases.
type SafetyGate interface {
	Evaluate(rawURL string, kind types.ActionKind, caller string) types.SafetyDecision
	CaptchaDecision(rawURL, marker string) types.SafetyDecision
}

// Runner executes one fill-and-submit request.
type Runner interface {
	Run(ctx context.Context, req executor.Request) (*types.ExecutionLog, error)
}

// Auditor records pipeline decisions and outcomes.
type Auditor interface {
	Append(entry types.AuditEntry)
}

// Orchestrator owns the pipeline ordering invariant: the analyzer runs
// before the safety gate, the safety gate before the executor, and a
// denied decision means the executor is never invoked for that run.
type Orchestrator struct {
	analyzer FormAnalyzer
	safety   SafetyGate
	runner   Runner
	auditor  Auditor
	logger   *logging.Logger
	plans    *planStore
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPlanTTL overrides how long a proposed plan stays executable.
func WithPlanTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) { o.plans = newPlanStore(ttl) }
}

// New creates an Orchestrator over the given pipeline components.
func New(analyzer FormAnalyzer, safety SafetyGate, runner Runner, auditor Auditor, logger *logging.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		analyzer: analyzer,
		safety:   safety,
		runner:   runner,
		auditor:  auditor,
		logger:   logger,
		plans:    newPlanStore(DefaultPlanTTL),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProposeRequest is phase one: analyze a form and park a plan.
type ProposeRequest struct {
	URL   string
	Actor string
}

// ExecuteRequest is phase two: execute a previously proposed plan.
type ExecuteRequest struct {
	CorrelationID string
	Profile       types.ProfileData
	UserConfirmed bool
	Actor         string
}

// RunRequest drives both phases in one call for single-caller flows such
// as the CLI, where the approval prompt happens between the phases on the
// caller's side.
type RunRequest struct {
	URL           string
	Profile       types.ProfileData
	Submit        bool
	UserConfirmed bool
	Actor         string
}

// Propose analyzes the form at req.URL behind the safety gate and parks
// the resulting plan for confirmation. The returned plan carries the
// correlation ID the caller must present to Execute.
func (o *Orchestrator) Propose(ctx context.Context, req ProposeRequest) (*Plan, error) {
	id := uuid.New().String()
	plan, err := o.propose(ctx, id, req.URL, actorOf(req.Actor))
	if err != nil {
		return nil, err
	}
	o.plans.put(plan)
	return plan, nil
}

// propose runs the analyze phase under an existing correlation ID without
// parking the plan.
func (o *Orchestrator) propose(ctx context.Context, id, url, actor string) (*Plan, error) {
	o.audit(actor, "analyze_requested", url, id)

	decision := o.safety.Evaluate(url, types.ActionAnalyze, actor)
	o.auditDecision(actor, "safety_check", decision, id)
	if !decision.Allowed {
		return nil, denialFailure(decision)
	}

	schema, err := o.analyzer.Analyze(ctx, url)
	if err != nil {
		o.audit(actor, "analyze", "failed: "+string(types.FailureKindOf(err)), id)
		return nil, err
	}
	o.audit(actor, "analyze", fmt.Sprintf("mapped %d fields", len(schema.Fields)), id)

	return &Plan{
		CorrelationID: id,
		Schema:        schema,
		Decision:      decision,
		CreatedAt:     o.plans.now(),
	}, nil
}

// Execute consumes a proposed plan and runs it. Unknown, expired, and
// already-consumed correlation IDs are all refused as approval_required;
// the gate is then re-evaluated for the submit action before the executor
// is constructed for the run.
func (o *Orchestrator) Execute(ctx context.Context, req ExecuteRequest) (*types.RunResult, error) {
	actor := actorOf(req.Actor)

	plan, ok := o.plans.take(req.CorrelationID)
	if !ok {
		err := types.NewFailure(types.FailApproval, "no executable plan for correlation ID "+req.CorrelationID)
		o.audit(actor, "execute_refused", err.Error(), req.CorrelationID)
		return &types.RunResult{
			CorrelationID: req.CorrelationID,
			Status:        types.StatusAborted,
			Error:         err.Error(),
		}, err
	}

	return o.execute(ctx, plan, req.Profile, true, req.UserConfirmed, actor)
}

// Run drives propose and execute under one correlation ID.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*types.RunResult, error) {
	id := uuid.New().String()
	actor := actorOf(req.Actor)

	plan, err := o.propose(ctx, id, req.URL, actor)
	if err != nil {
		return failedResult(id, err), err
	}

	return o.execute(ctx, plan, req.Profile, req.Submit, req.UserConfirmed, actor)
}

// execute is the shared back half of the pipeline. The submit-phase
// safety verdict is computed here, immediately before the run; a denial
// returns without the runner ever being invoked.
func (o *Orchestrator) execute(ctx context.Context, plan *Plan, profile types.ProfileData, submit, confirmed bool, actor string) (*types.RunResult, error) {
	url := plan.Schema.URL

	decision := plan.Decision
	if submit {
		decision = o.safety.Evaluate(url, types.ActionSubmit, actor)
		o.auditDecision(actor, "safety_check", decision, plan.CorrelationID)
		if !decision.Allowed {
			err := denialFailure(decision)
			return &types.RunResult{
				CorrelationID:  plan.CorrelationID,
				Status:         types.StatusAborted,
				SafetyDecision: decision,
				Error:          err.Error(),
			}, err
		}
	}

	log, err := o.runner.Run(ctx, executor.Request{
		Schema:        plan.Schema,
		Profile:       profile,
		Submit:        submit,
		UserConfirmed: confirmed,
	})

	// A CAPTCHA raised mid-run is recorded through the same decision
	// taxonomy as a denied submission.
	if errors.Is(err, types.ErrCaptcha) {
		decision = o.safety.CaptchaDecision(url, captchaMarker(err))
	}

	result := &types.RunResult{
		CorrelationID:  plan.CorrelationID,
		Status:         types.StatusFailed,
		SafetyDecision: decision,
		ExecutionLog:   log,
	}
	if log != nil {
		result.Status = log.Status
	}
	if err != nil {
		result.Error = err.Error()
		o.audit(actor, "execute", fmt.Sprintf("%s: %v", result.Status, err), plan.CorrelationID)
		return result, err
	}

	o.audit(actor, "execute", string(result.Status), plan.CorrelationID)
	return result, nil
}

// PendingPlans reports how many proposed plans await confirmation.
func (o *Orchestrator) PendingPlans() int { return o.plans.len() }

func (o *Orchestrator) audit(actor, action, decision, id string) {
	if o.auditor != nil {
		o.auditor.Append(types.AuditEntry{
			Actor:         actor,
			Action:        action,
			Decision:      decision,
			CorrelationID: id,
		})
	}
	if o.logger != nil {
		o.logger.WithRun(id).Infof("%s: %s", action, decision)
	}
}

func (o *Orchestrator) auditDecision(actor, action string, d types.SafetyDecision, id string) {
	if d.Allowed {
		o.audit(actor, action, "allowed", id)
		return
	}
	o.audit(actor, action, fmt.Sprintf("denied (%s): %s", d.Policy, d.Reason), id)
}

// denialFailure maps a denied decision to its typed failure.
func denialFailure(d types.SafetyDecision) error {
	switch d.Policy {
	case types.PolicyRateLimit:
		return types.NewFailure(types.FailRateLimit, d.Reason)
	case types.PolicyCaptcha:
		return types.NewFailure(types.FailCaptcha, d.Reason)
	default:
		return types.NewFailure(types.FailAuthorization, d.Reason)
	}
}

// failedResult wraps a pre-execution error into a result shell.
func failedResult(id string, err error) *types.RunResult {
	status := types.StatusFailed
	if errors.Is(err, types.ErrAuthorization) || errors.Is(err, types.ErrRateLimit) {
		status = types.StatusAborted
	}
	return &types.RunResult{
		CorrelationID: id,
		Status:        status,
		Error:         err.Error(),
	}
}

// captchaMarker pulls the marker text out of a captcha failure message.
func captchaMarker(err error) string {
	var f *types.Failure
	if !errors.As(err, &f) {
		return ""
	}
	return strings.TrimPrefix(f.Message, "captcha marker ")
}

func actorOf(actor string) string {
	if actor == "" {
		return "api"
	}
	return actor
}
