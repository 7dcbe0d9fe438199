package router

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/trace"
)

// RuleRouter is a deterministic, rule-based Port: it matches the routing
// keywords declared on each agent descriptor against the latest agent
// output. First agent (in domain order) with a matching keyword wins; an
// output matching the current agent's own keywords terminates to avoid
// self-handoff loops; no match at all routes to the domain default.
type RuleRouter struct {
	agents map[string]agent.Agent
	logger *zap.Logger
}

// NewRuleRouter 创建基于关键词规则的路由器
func NewRuleRouter(agents map[string]agent.Agent, logger *zap.Logger) *RuleRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleRouter{
		agents: agents,
		logger: logger.With(zap.String("component", "rule_router")),
	}
}

func (r *RuleRouter) Decide(ctx context.Context, d *agent.Domain, steps []trace.Step) (Decision, error) {
	last, ok := lastAgentStep(steps)
	if !ok {
		return ContinueWith(d.DefaultAgent(), ""), nil
	}

	output := strings.ToLower(last.Output)

	for _, id := range d.AgentIDs {
		a, exists := r.agents[id]
		if !exists {
			continue
		}
		for _, kw := range a.RoutingKeywords {
			if kw == "" || !strings.Contains(output, strings.ToLower(kw)) {
				continue
			}
			if id == last.AgentID {
				// The producing agent matched its own keywords: nothing
				// further to hand off to.
				return Terminate("matched producing agent", output), nil
			}
			r.logger.Debug("keyword handoff",
				zap.String("from", last.AgentID),
				zap.String("to", id),
				zap.String("keyword", kw),
			)
			return ContinueWith(id, output), nil
		}
	}

	return Terminate("no routing keyword matched", output), nil
}

func lastAgentStep(steps []trace.Step) (trace.Step, bool) {
	for i := len(steps) - 1; i >= 0; i-- {
		if !steps[i].IsRouter() {
			return steps[i], true
		}
	}
	return trace.Step{}, false
}
