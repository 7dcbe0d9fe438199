package strategy

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/router"
	"github.com/BaSui01/agentorch/trace"
)

// Dynamic hands control between agents at runtime: after every agent step
// the router port is consulted, and its tagged decision picks the next
// agent or ends the run. Routing consultations are recorded as their own
// ledger steps under the router sentinel id, so handoffs are replayable.
// An unparseable routing decision never terminates the run; control falls
// back to the domain's default agent.
type Dynamic struct {
	base
	router router.Port
}

// NewDynamic 创建动态路由策略
func NewDynamic(opts Options) *Dynamic {
	return &Dynamic{
		base:   newBase(opts, "dynamic_strategy"),
		router: opts.Router,
	}
}

func (s *Dynamic) Name() string { return NameDynamic }

func (s *Dynamic) Execute(ctx context.Context, d *agent.Domain, agents map[string]agent.Agent, task string, history []trace.Step) (*trace.Result, error) {
	return s.run(ctx, d, agents, withHistory(task, history), plainWindow{}, NameDynamic)
}

// run drives the handoff loop. The prompt window decides how much of the
// accumulated trace each agent sees; the ledger always keeps everything.
func (s *Dynamic) run(ctx context.Context, d *agent.Domain, agents map[string]agent.Agent, task string, win promptWindow, strategyName string) (*trace.Result, error) {
	rec := trace.NewRecorder(d.MaxIterations)
	meta := newMetadata(d, strategyName)

	if s.router == nil {
		return finish(rec, meta, ReasonRouterError, true),
			fmt.Errorf("%s strategy requires a router port", strategyName)
	}

	s.logger.Info("routed run started",
		zap.String("run_id", meta.RunID),
		zap.String("domain", d.ID),
		zap.String("strategy", strategyName),
		zap.Int("max_iterations", d.MaxIterations),
	)

	current := agents[d.AgentIDs[0]]
	for {
		if ctx.Err() != nil {
			return finish(rec, meta, ReasonCancelled, true), ctx.Err()
		}
		if rec.Len() >= d.MaxIterations {
			return finish(rec, meta, ReasonIterationLimit, true), &agent.IterationLimitError{Limit: d.MaxIterations}
		}

		prompt, err := win.next(ctx, rec, task)
		if err != nil {
			return finish(rec, meta, ReasonAgentFailure, true), err
		}

		if proceed, gateStep := s.approve(ctx, current, meta.RunID, prompt); !proceed {
			if _, aerr := rec.Append(gateStep); aerr != nil {
				return finish(rec, meta, ReasonIterationLimit, true), &agent.IterationLimitError{Limit: d.MaxIterations}
			}
			if gateStep.Status == trace.StatusCancelled {
				return finish(rec, meta, ReasonCancelled, true), ctx.Err()
			}
			return finish(rec, meta, ReasonApprovalRejected, true),
				fmt.Errorf("agent %s: %s", current.ID, gateStep.Error)
		}

		step := s.invoke(ctx, d, current, prompt)
		if _, aerr := rec.Append(step); aerr != nil {
			return finish(rec, meta, ReasonIterationLimit, true), &agent.IterationLimitError{Limit: d.MaxIterations}
		}

		switch step.Status {
		case trace.StatusSuccess:
		case trace.StatusCancelled:
			return finish(rec, meta, ReasonCancelled, true), ctx.Err()
		default:
			return finish(rec, meta, ReasonAgentFailure, true),
				fmt.Errorf("agent %s: %s", current.ID, step.Error)
		}

		// The hard cap counts every recorded step, router steps included.
		// At the cap there is no room to record a routing decision, so the
		// run ends here.
		if rec.Len() >= d.MaxIterations {
			return finish(rec, meta, ReasonIterationLimit, true), &agent.IterationLimitError{Limit: d.MaxIterations}
		}

		decision, derr := s.router.Decide(ctx, d, rec.Snapshot())
		if derr != nil {
			routerStep := trace.Step{
				AgentID: trace.RouterAgentID,
				Status:  trace.StatusFailure,
				Error:   derr.Error(),
			}
			if _, aerr := rec.Append(routerStep); aerr != nil {
				return finish(rec, meta, ReasonIterationLimit, true), &agent.IterationLimitError{Limit: d.MaxIterations}
			}
			if ctx.Err() != nil {
				return finish(rec, meta, ReasonCancelled, true), ctx.Err()
			}
			return finish(rec, meta, ReasonRouterError, true), fmt.Errorf("router: %w", derr)
		}

		if s.metrics != nil {
			s.metrics.RecordRouterDecision(d.ID, string(decision.Outcome))
		}

		routerStep := trace.Step{
			AgentID:     trace.RouterAgentID,
			Status:      trace.StatusSuccess,
			RawDecision: decision.Raw,
			NextAgentID: decision.NextAgentID,
			Terminate:   decision.Outcome == router.OutcomeTerminate,
			ParsedOK:    decision.Outcome != router.OutcomeParseFailed,
		}
		if decision.Outcome == router.OutcomeParseFailed {
			routerStep.Error = "unparseable routing decision"
		}
		if _, aerr := rec.Append(routerStep); aerr != nil {
			return finish(rec, meta, ReasonIterationLimit, true), &agent.IterationLimitError{Limit: d.MaxIterations}
		}

		switch decision.Outcome {
		case router.OutcomeTerminate:
			s.logger.Info("router terminated run",
				zap.String("run_id", meta.RunID),
				zap.String("reason", decision.Reason),
			)
			return finish(rec, meta, ReasonRouterTerminate, false), nil

		case router.OutcomeContinue:
			next, ok := agents[decision.NextAgentID]
			if !ok {
				s.logger.Warn("router chose unknown agent, using default",
					zap.String("run_id", meta.RunID),
					zap.String("next_agent", decision.NextAgentID),
				)
				next = agents[d.DefaultAgent()]
			}
			current = next

		default: // parse failure hands control to the default agent
			s.logger.Warn("routing decision unparseable, using default agent",
				zap.String("run_id", meta.RunID),
				zap.String("raw", truncate(decision.Raw, 120)),
			)
			current = agents[d.DefaultAgent()]
		}
	}
}

// promptWindow shapes what each successive agent sees of the run so far.
// Implementations may append compaction steps to the recorder; the ledger
// itself is never rewritten.
type promptWindow interface {
	next(ctx context.Context, rec *trace.Recorder, task string) (string, error)
}

// plainWindow renders the task plus the full transcript of agent outputs.
type plainWindow struct{}

func (plainWindow) next(_ context.Context, rec *trace.Recorder, task string) (string, error) {
	return renderTranscript(task, "", rec.Snapshot(), 0), nil
}

// renderTranscript builds an agent prompt from the task, an optional
// summary of older turns, and the transcript starting at fromIndex.
func renderTranscript(task, summary string, steps []trace.Step, fromIndex int) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(task)
	if summary != "" {
		b.WriteString("\n\nSummary of earlier turns:\n")
		b.WriteString(summary)
	}

	wrote := false
	for _, s := range steps {
		if s.Index < fromIndex || s.IsRouter() || s.Summary || s.Status != trace.StatusSuccess {
			continue
		}
		if !wrote {
			b.WriteString("\n\nConversation so far:")
			wrote = true
		}
		fmt.Fprintf(&b, "\n[%s]: %s", s.AgentID, s.Output)
	}
	return b.String()
}
