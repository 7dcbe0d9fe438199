// Package agentorch provides a top-level convenience entry point for
// building an orchestrator with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/agentorch"
//
//	o, err := agentorch.New(myExecutor,
//		agentorch.WithAgents(researcher, writer),
//		agentorch.WithDomain(editorial),
//	)
//	result, err := o.Execute(ctx, "editorial", "Write a launch post")
//
// This is a thin wrapper around [orchestrator.New]; both produce identical
// results. Use this package when you prefer the shorter import path.
package agentorch

import (
	"go.uber.org/zap"

	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/checkpoint"
	"github.com/BaSui01/agentorch/hitl"
	"github.com/BaSui01/agentorch/orchestrator"
	"github.com/BaSui01/agentorch/router"
)

// Option configures the orchestrator created by [New].
type Option func(*orchestrator.Options)

// New creates an [orchestrator.Orchestrator] around the given executor.
func New(exec agent.Executor, opts ...Option) (*orchestrator.Orchestrator, error) {
	o := orchestrator.Options{Executor: exec}
	for _, opt := range opts {
		opt(&o)
	}
	return orchestrator.New(o)
}

// WithAgents registers agent descriptors.
func WithAgents(agents ...agent.Agent) Option {
	return func(o *orchestrator.Options) {
		o.Agents = append(o.Agents, agents...)
	}
}

// WithDomain registers a domain.
func WithDomain(d agent.Domain) Option {
	return func(o *orchestrator.Options) {
		o.Domains = append(o.Domains, d)
	}
}

// WithRouter sets the router port. Defaults to the keyword rule router.
func WithRouter(rt router.Port) Option {
	return func(o *orchestrator.Options) { o.Router = rt }
}

// WithGate enables the human-in-the-loop approval gate.
func WithGate(g *hitl.Gate) Option {
	return func(o *orchestrator.Options) { o.Gate = g }
}

// WithStore sets the checkpoint store used by ExecuteAndCheckpoint.
func WithStore(s checkpoint.Store) Option {
	return func(o *orchestrator.Options) { o.Store = s }
}

// WithLogger sets a custom zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *orchestrator.Options) { o.Logger = l }
}
