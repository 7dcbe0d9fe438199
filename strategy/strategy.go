// Package strategy contains the pluggable execution algorithms: strict
// sequence with validation and retry, fan-out parallel, voting consensus,
// dynamic router handoff, and the hybrid wrapper that compacts the prompt
// window. Each strategy drives agent invocations through the injected
// executor port and records every decision in the step ledger, so a
// terminal Result is always complete and replayable, including for failed
// and cancelled runs.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/hitl"
	"github.com/BaSui01/agentorch/internal/metrics"
	"github.com/BaSui01/agentorch/router"
	"github.com/BaSui01/agentorch/tokens"
	"github.com/BaSui01/agentorch/trace"
)

// Registered strategy names, referenced by Domain.Strategy.
const (
	NameSequential = "sequential"
	NameParallel   = "parallel"
	NameConsensus  = "consensus"
	NameDynamic    = "dynamic"
	NameHybrid     = "hybrid"
)

// Termination reasons recorded in Result metadata.
const (
	ReasonCompleted        = "completed"
	ReasonRouterTerminate  = "router_terminate"
	ReasonIterationLimit   = "iteration_limit"
	ReasonQuorumNotMet     = "quorum_not_met"
	ReasonValidationFailed = "validation_exhausted"
	ReasonCancelled        = "cancelled"
	ReasonApprovalRejected = "approval_rejected"
	ReasonAgentFailure     = "agent_failure"
	ReasonRouterError      = "router_error"
)

// Strategy is the pluggable algorithm controlling execution order,
// concurrency, and routing. Execute always returns a structurally valid
// Result carrying every step executed so far; a non-nil error marks the run
// as failed but never replaces the Result.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, d *agent.Domain, agents map[string]agent.Agent, task string, history []trace.Step) (*trace.Result, error)
}

// Options carries the injected collaborators shared by all strategies.
// Executor is required; everything else may be nil.
type Options struct {
	Executor agent.Executor
	Router   router.Port
	Gate     *hitl.Gate
	Metrics  *metrics.Collector
	Tokens   tokens.Counter
	Logger   *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// BuildRegistry constructs one instance of every strategy, keyed by name.
func BuildRegistry(opts Options) map[string]Strategy {
	return map[string]Strategy{
		NameSequential: NewSequential(opts),
		NameParallel:   NewParallel(opts),
		NameConsensus:  NewConsensus(opts),
		NameDynamic:    NewDynamic(opts),
		NameHybrid:     NewHybrid(opts),
	}
}

// base bundles the collaborators and helpers shared by the concrete
// strategies.
type base struct {
	exec    agent.Executor
	gate    *hitl.Gate
	metrics *metrics.Collector
	logger  *zap.Logger
}

func newBase(opts Options, component string) base {
	return base{
		exec:    opts.Executor,
		gate:    opts.Gate,
		metrics: opts.Metrics,
		logger:  opts.logger().With(zap.String("component", component)),
	}
}

func newMetadata(d *agent.Domain, strategyName string) trace.Metadata {
	return trace.Metadata{
		RunID:     uuid.New().String(),
		DomainID:  d.ID,
		Strategy:  strategyName,
		StartedAt: time.Now(),
	}
}

// finish seals the ledger and assembles the terminal Result.
func finish(rec *trace.Recorder, meta trace.Metadata, reason string, failed bool) *trace.Result {
	steps := rec.Close()
	meta.Duration = time.Since(meta.StartedAt)
	meta.Iterations = len(steps)
	meta.TerminationReason = reason
	meta.Failed = failed
	return &trace.Result{Steps: steps, Metadata: meta}
}

// invoke runs one agent call with the domain's per-step timeout and maps
// the outcome onto a completed (but not yet sequenced) step.
func (b *base) invoke(ctx context.Context, d *agent.Domain, a agent.Agent, input string) trace.Step {
	callCtx := ctx
	if d.StepTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.StepTimeout)
		defer cancel()
	}

	start := time.Now()
	output, err := b.exec.Invoke(callCtx, a, input)
	duration := time.Since(start)

	step := trace.Step{
		AgentID:   a.ID,
		Input:     input,
		Output:    output,
		Timestamp: start,
		Duration:  duration,
	}

	switch {
	case err == nil:
		step.Status = trace.StatusSuccess
	case isTimeout(err):
		step.Status = trace.StatusTimeout
		step.Output = ""
		step.Error = err.Error()
	case errors.Is(err, context.Canceled):
		step.Status = trace.StatusCancelled
		step.Output = ""
		step.Error = err.Error()
	default:
		step.Status = trace.StatusFailure
		step.Output = ""
		step.Error = err.Error()
	}

	if b.metrics != nil {
		b.metrics.RecordStep(a.ID, string(step.Status), duration)
	}
	return step
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var invErr *agent.InvocationError
	return errors.As(err, &invErr) && invErr.Kind == agent.InvocationTimeout
}

// approve consults the HITL gate for side-effecting agents. It returns
// proceed=true when no approval is needed or the request was approved;
// otherwise it returns the failure (or cancelled) step to record in the
// agent's place.
func (b *base) approve(ctx context.Context, a agent.Agent, runID, action string) (proceed bool, step trace.Step) {
	if b.gate == nil || !a.HasCapability(agent.CapabilitySideEffect) {
		return true, trace.Step{}
	}

	decision, err := b.gate.RequestApproval(ctx, hitl.Request{
		RunID:   runID,
		AgentID: a.ID,
		Action:  truncate(action, 200),
	})

	now := time.Now()
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		return false, trace.Step{
			AgentID: a.ID, Input: action,
			Status: trace.StatusCancelled, Error: err.Error(), Timestamp: now,
		}
	case err != nil:
		return false, trace.Step{
			AgentID: a.ID, Input: action,
			Status: trace.StatusFailure, Error: "approval: " + err.Error(), Timestamp: now,
		}
	case !decision.Approved:
		if b.metrics != nil {
			b.metrics.RecordApproval("rejected")
		}
		reason := decision.Reason
		if reason == "" {
			reason = "approval rejected"
		}
		return false, trace.Step{
			AgentID: a.ID, Input: action,
			Status: trace.StatusFailure, Error: reason, Timestamp: now,
		}
	}

	if b.metrics != nil {
		b.metrics.RecordApproval("approved")
	}
	return true, trace.Step{}
}

// withHistory prefixes the task with prior-turn outputs supplied by the
// caller. History steps come from earlier runs and never occupy ledger
// slots in the current one.
func withHistory(task string, history []trace.Step) string {
	var b strings.Builder
	for _, s := range history {
		if s.IsRouter() || s.Summary || s.Status != trace.StatusSuccess {
			continue
		}
		fmt.Fprintf(&b, "\n[%s]: %s", s.AgentID, s.Output)
	}
	if b.Len() == 0 {
		return task
	}
	return "Previous conversation:" + b.String() + "\n\n" + task
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
