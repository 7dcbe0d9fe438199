// Package orchestrator is the engine's front door: it owns the validated
// agent and domain registries, dispatches runs to the configured strategy,
// and optionally persists finished results at the checkpoint boundary.
// All collaborators are injected at construction; the package keeps no
// global state.
package orchestrator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/checkpoint"
	"github.com/BaSui01/agentorch/hitl"
	"github.com/BaSui01/agentorch/internal/metrics"
	"github.com/BaSui01/agentorch/router"
	"github.com/BaSui01/agentorch/strategy"
	"github.com/BaSui01/agentorch/tokens"
	"github.com/BaSui01/agentorch/trace"
)

// Options carries everything an Orchestrator needs. Executor is required.
// Router defaults to the keyword rule router; Store, Gate, Metrics, Tokens,
// and Logger may be nil.
type Options struct {
	Agents   []agent.Agent
	Domains  []agent.Domain
	Executor agent.Executor
	Router   router.Port
	Gate     *hitl.Gate
	Store    checkpoint.Store
	Metrics  *metrics.Collector
	Tokens   tokens.Counter
	Logger   *zap.Logger
}

// Orchestrator dispatches tasks to domains. It is safe for concurrent use:
// every run owns its own ledger and the registries are read-only after New.
type Orchestrator struct {
	agents     map[string]agent.Agent
	domains    map[string]*agent.Domain
	strategies map[string]strategy.Strategy
	store      checkpoint.Store
	metrics    *metrics.Collector
	logger     *zap.Logger
	tracer     oteltrace.Tracer
}

// New validates the whole configuration up front and builds the engine.
// Misconfiguration surfaces here, before any agent ever runs.
func New(opts Options) (*Orchestrator, error) {
	if opts.Executor == nil {
		return nil, fmt.Errorf("%w: executor is required", agent.ErrInvalidDomain)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	agents := make(map[string]agent.Agent, len(opts.Agents))
	for _, a := range opts.Agents {
		if a.ID == "" {
			return nil, fmt.Errorf("%w: agent with empty id", agent.ErrInvalidDomain)
		}
		if _, dup := agents[a.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate agent id %q", agent.ErrInvalidDomain, a.ID)
		}
		agents[a.ID] = a
	}

	rt := opts.Router
	if rt == nil {
		rt = router.NewRuleRouter(agents, logger)
	}

	domains := make(map[string]*agent.Domain, len(opts.Domains))
	for i := range opts.Domains {
		d := opts.Domains[i]
		if err := validateDomain(&d, agents); err != nil {
			return nil, err
		}
		if _, dup := domains[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate domain id %q", agent.ErrInvalidDomain, d.ID)
		}
		domains[d.ID] = &d
	}

	strategies := strategy.BuildRegistry(strategy.Options{
		Executor: opts.Executor,
		Router:   rt,
		Gate:     opts.Gate,
		Metrics:  opts.Metrics,
		Tokens:   opts.Tokens,
		Logger:   logger,
	})

	logger.Info("orchestrator ready",
		zap.Int("agents", len(agents)),
		zap.Int("domains", len(domains)),
	)

	return &Orchestrator{
		agents:     agents,
		domains:    domains,
		strategies: strategies,
		store:      opts.Store,
		metrics:    opts.Metrics,
		logger:     logger.With(zap.String("component", "orchestrator")),
		tracer:     otel.Tracer("agentorch/orchestrator"),
	}, nil
}

// Execute runs the task in the named domain and returns the complete step
// ledger. The Result is structurally valid even when err is non-nil.
func (o *Orchestrator) Execute(ctx context.Context, domainID, task string) (*trace.Result, error) {
	return o.ExecuteWithHistory(ctx, domainID, task, nil)
}

// ExecuteWithHistory runs the task with prior conversation steps supplied by
// the caller, who owns any cross-call state and the conversation id used to
// correlate runs. History informs strategy prompts; it does not occupy ledger
// slots in the new run.
func (o *Orchestrator) ExecuteWithHistory(ctx context.Context, domainID, task string, history []trace.Step) (*trace.Result, error) {
	d, ok := o.domains[domainID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown domain %q", agent.ErrInvalidDomain, domainID)
	}
	strat := o.strategies[d.Strategy]

	ctx, span := o.tracer.Start(ctx, "orchestrator.execute",
		oteltrace.WithAttributes(
			attribute.String("domain.id", d.ID),
			attribute.String("domain.strategy", d.Strategy),
		),
	)
	defer span.End()

	result, err := strat.Execute(ctx, d, o.agents, task, history)

	status := "success"
	if err != nil {
		status = "failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		attribute.String("run.id", result.Metadata.RunID),
		attribute.Int("run.steps", len(result.Steps)),
		attribute.String("run.termination_reason", result.Metadata.TerminationReason),
	)

	if o.metrics != nil {
		o.metrics.RecordRun(d.ID, d.Strategy, status, result.Metadata.Duration)
	}

	o.logger.Info("run finished",
		zap.String("run_id", result.Metadata.RunID),
		zap.String("domain", d.ID),
		zap.String("strategy", d.Strategy),
		zap.String("termination_reason", result.Metadata.TerminationReason),
		zap.Int("steps", len(result.Steps)),
		zap.Duration("duration", result.Metadata.Duration),
		zap.Bool("failed", result.Metadata.Failed),
	)
	return result, err
}

// ExecuteAndCheckpoint runs the task and persists the finished result under
// the conversation id. The run's own error takes precedence over a
// checkpoint write failure, and the result is returned either way.
func (o *Orchestrator) ExecuteAndCheckpoint(ctx context.Context, domainID, conversationID, task string) (*trace.Result, error) {
	result, err := o.Execute(ctx, domainID, task)
	if result == nil {
		return nil, err
	}
	if o.store == nil {
		return result, err
	}

	if serr := o.store.SaveResult(ctx, conversationID, result); serr != nil {
		o.logger.Error("checkpoint save failed",
			zap.String("run_id", result.Metadata.RunID),
			zap.String("conversation_id", conversationID),
			zap.Error(serr),
		)
		if err == nil {
			err = fmt.Errorf("checkpoint: %w", serr)
		}
	}
	return result, err
}

// History returns the persisted results for a conversation, oldest first.
func (o *Orchestrator) History(ctx context.Context, conversationID string) ([]*trace.Result, error) {
	if o.store == nil {
		return nil, checkpoint.ErrNotFound
	}
	return o.store.History(ctx, conversationID)
}

// Domain returns the descriptor for the given id.
func (o *Orchestrator) Domain(id string) (*agent.Domain, bool) {
	d, ok := o.domains[id]
	return d, ok
}

// validateDomain enforces every referential and sizing constraint a run
// depends on, so strategies can index agents without re-checking.
func validateDomain(d *agent.Domain, agents map[string]agent.Agent) error {
	if d.ID == "" {
		return fmt.Errorf("%w: domain with empty id", agent.ErrInvalidDomain)
	}
	if len(d.AgentIDs) == 0 {
		return fmt.Errorf("%w: domain %q lists no agents", agent.ErrInvalidDomain, d.ID)
	}
	if d.MaxIterations < 1 {
		return fmt.Errorf("%w: domain %q max_iterations must be >= 1", agent.ErrInvalidDomain, d.ID)
	}
	if d.MaxRetries < 0 {
		return fmt.Errorf("%w: domain %q max_retries must be >= 0", agent.ErrInvalidDomain, d.ID)
	}

	seen := make(map[string]struct{}, len(d.AgentIDs))
	for _, id := range d.AgentIDs {
		if _, ok := agents[id]; !ok {
			return fmt.Errorf("%w: domain %q references agent %q", agent.ErrUnknownAgent, d.ID, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: domain %q lists agent %q twice", agent.ErrInvalidDomain, d.ID, id)
		}
		seen[id] = struct{}{}
	}

	for field, id := range map[string]string{
		"fallback_agent":    d.FallbackAgentID,
		"tie_breaker_agent": d.TieBreakerAgentID,
		"summarizer_agent":  d.SummarizerAgentID,
		"default_agent":     d.DefaultAgentID,
	} {
		if id == "" {
			continue
		}
		if _, ok := agents[id]; !ok {
			return fmt.Errorf("%w: domain %q %s %q", agent.ErrUnknownAgent, d.ID, field, id)
		}
	}
	if d.Validation.Type == agent.ValidationAgent {
		if _, ok := agents[d.Validation.ValidatorAgentID]; !ok {
			return fmt.Errorf("%w: domain %q validator agent %q", agent.ErrUnknownAgent, d.ID, d.Validation.ValidatorAgentID)
		}
	}

	switch d.Strategy {
	case strategy.NameSequential, strategy.NameDynamic:
	case strategy.NameHybrid:
		if d.SummarizerAgentID == "" {
			return fmt.Errorf("%w: domain %q hybrid strategy requires a summarizer agent", agent.ErrInvalidDomain, d.ID)
		}
	case strategy.NameParallel, strategy.NameConsensus:
		// Every branch step plus the synthesis step must fit under the cap,
		// and a configured tie-breaker needs a slot of its own.
		required := len(d.AgentIDs) + 1
		if d.Strategy == strategy.NameConsensus && d.TieBreakerAgentID != "" {
			required++
		}
		if d.MaxIterations < required {
			return fmt.Errorf("%w: domain %q max_iterations %d cannot hold %d branches plus synthesis",
				agent.ErrInvalidDomain, d.ID, d.MaxIterations, len(d.AgentIDs))
		}
		if d.Quorum > len(d.AgentIDs) {
			return fmt.Errorf("%w: domain %q quorum %d exceeds agent count %d",
				agent.ErrInvalidDomain, d.ID, d.Quorum, len(d.AgentIDs))
		}
	default:
		return fmt.Errorf("%w: %q in domain %q", agent.ErrUnknownStrategy, d.Strategy, d.ID)
	}

	return nil
}
