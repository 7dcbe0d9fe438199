package strategy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/trace"
)

// Sequential executes the domain's agents in their configured order,
// validating each output and chaining successful outputs forward. A
// rejected output is retried against the same agent with the rejection
// reason folded into the prompt, up to MaxRetries; exhaustion escalates to
// the fallback agent when one is configured, and the fallback's verdict
// ends the run either way.
type Sequential struct {
	base
}

// NewSequential 创建顺序验证策略
func NewSequential(opts Options) *Sequential {
	return &Sequential{base: newBase(opts, "sequential_strategy")}
}

func (s *Sequential) Name() string { return NameSequential }

func (s *Sequential) Execute(ctx context.Context, d *agent.Domain, agents map[string]agent.Agent, task string, history []trace.Step) (*trace.Result, error) {
	rec := trace.NewRecorder(d.MaxIterations)
	meta := newMetadata(d, NameSequential)
	task = withHistory(task, history)

	validator, err := ValidatorFor(d, agents, s.exec)
	if err != nil {
		return finish(rec, meta, ReasonAgentFailure, true), err
	}

	s.logger.Info("sequential run started",
		zap.String("run_id", meta.RunID),
		zap.String("domain", d.ID),
		zap.Int("agents", len(d.AgentIDs)),
	)

	current := task
	for _, id := range d.AgentIDs {
		if ctx.Err() != nil {
			return finish(rec, meta, ReasonCancelled, true), ctx.Err()
		}

		a := agents[id]
		output, outcome, lastReason := s.runWithRetries(ctx, d, a, current, rec, meta, validator)

		switch outcome {
		case attemptSucceeded:
			current = output
			continue
		case attemptCancelled:
			return finish(rec, meta, ReasonCancelled, true), ctx.Err()
		case attemptLedgerFull:
			return finish(rec, meta, ReasonIterationLimit, true), &agent.IterationLimitError{Limit: d.MaxIterations}
		case attemptRejected:
			return finish(rec, meta, ReasonApprovalRejected, true),
				fmt.Errorf("agent %s: %s", a.ID, lastReason)
		}

		// Retries exhausted: escalate or fail with all partial steps kept.
		if d.FallbackAgentID == "" {
			return finish(rec, meta, ReasonValidationFailed, true),
				&agent.ValidationFailure{AgentID: a.ID, Reason: lastReason}
		}

		s.logger.Warn("escalating to fallback agent",
			zap.String("run_id", meta.RunID),
			zap.String("failed_agent", a.ID),
			zap.String("fallback", d.FallbackAgentID),
		)

		fb := agents[d.FallbackAgentID]
		fbPrompt := fmt.Sprintf("%s\n\nA previous attempt was rejected: %s", current, lastReason)
		_, fbOutcome, fbReason := s.attempt(ctx, d, fb, fbPrompt, rec, meta, validator)

		switch fbOutcome {
		case attemptSucceeded:
			return finish(rec, meta, ReasonCompleted, false), nil
		case attemptCancelled:
			return finish(rec, meta, ReasonCancelled, true), ctx.Err()
		case attemptLedgerFull:
			return finish(rec, meta, ReasonIterationLimit, true), &agent.IterationLimitError{Limit: d.MaxIterations}
		default:
			return finish(rec, meta, ReasonValidationFailed, true),
				&agent.ValidationFailure{AgentID: fb.ID, Reason: fbReason}
		}
	}

	return finish(rec, meta, ReasonCompleted, false), nil
}

type attemptOutcome int

const (
	attemptSucceeded attemptOutcome = iota
	attemptFailed
	attemptCancelled
	attemptLedgerFull
	attemptRejected
)

// runWithRetries drives up to 1+MaxRetries attempts of one agent,
// augmenting the prompt with the rejection reason between attempts.
func (s *Sequential) runWithRetries(ctx context.Context, d *agent.Domain, a agent.Agent, input string, rec *trace.Recorder, meta trace.Metadata, validator Validator) (output string, outcome attemptOutcome, lastReason string) {
	prompt := input

	for attempt := 0; attempt <= d.MaxRetries; attempt++ {
		out, result, reason := s.attempt(ctx, d, a, prompt, rec, meta, validator)
		if result != attemptFailed {
			return out, result, reason
		}
		lastReason = reason

		if attempt < d.MaxRetries {
			if s.metrics != nil {
				s.metrics.RecordRetry(d.ID, a.ID)
			}
			prompt = fmt.Sprintf(
				"%s\n\nYour previous response was rejected: %s\nAddress the problem and answer again.",
				input, reason,
			)
		}
	}

	return "", attemptFailed, lastReason
}

// attempt performs one gated execution plus at most one validation, and
// sequences the resulting step.
func (s *Sequential) attempt(ctx context.Context, d *agent.Domain, a agent.Agent, prompt string, rec *trace.Recorder, meta trace.Metadata, validator Validator) (string, attemptOutcome, string) {
	if proceed, gateStep := s.approve(ctx, a, meta.RunID, prompt); !proceed {
		if _, err := rec.Append(gateStep); err != nil {
			return "", attemptLedgerFull, gateStep.Error
		}
		if gateStep.Status == trace.StatusCancelled {
			return "", attemptCancelled, gateStep.Error
		}
		return "", attemptRejected, gateStep.Error
	}

	step := s.invoke(ctx, d, a, prompt)

	if step.Status == trace.StatusSuccess && validator != nil {
		ok, reason, err := validator.Validate(ctx, step.Output)
		if err != nil {
			ok, reason = false, "validation error: "+err.Error()
		}
		if !ok {
			step.Status = trace.StatusValidationFailed
			step.Error = reason
		}
	}

	if _, err := rec.Append(step); err != nil {
		return "", attemptLedgerFull, step.Error
	}

	switch step.Status {
	case trace.StatusSuccess:
		return step.Output, attemptSucceeded, ""
	case trace.StatusCancelled:
		return "", attemptCancelled, step.Error
	default:
		reason := step.Error
		if reason == "" {
			reason = "invocation failed"
		}
		return "", attemptFailed, reason
	}
}
