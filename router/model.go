package router

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/trace"
)

// maxTraceLinesInPrompt bounds how much accumulated trace the router prompt
// carries. Older steps are elided, newest kept.
const maxTraceLinesInPrompt = 12

// ModelRouter consults a designated router agent through the executor port
// and parses its structured reply. The router agent is a normal Agent
// descriptor; its instructions plus the few-shot scaffold below steer it to
// emit the wire format ParseDecision understands.
type ModelRouter struct {
	exec        agent.Executor
	routerAgent agent.Agent
	logger      *zap.Logger
}

// NewModelRouter 创建模型路由器，通过执行器端口调用指定的路由 Agent
func NewModelRouter(exec agent.Executor, routerAgent agent.Agent, logger *zap.Logger) *ModelRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelRouter{
		exec:        exec,
		routerAgent: routerAgent,
		logger:      logger.With(zap.String("component", "model_router")),
	}
}

func (m *ModelRouter) Decide(ctx context.Context, d *agent.Domain, steps []trace.Step) (Decision, error) {
	prompt := m.buildPrompt(d, steps)

	raw, err := m.exec.Invoke(ctx, m.routerAgent, prompt)
	if err != nil {
		return Decision{}, fmt.Errorf("router agent invocation: %w", err)
	}

	known := make(map[string]struct{}, len(d.AgentIDs))
	for _, id := range d.AgentIDs {
		known[id] = struct{}{}
	}

	decision := ParseDecision(raw, known)
	if decision.Outcome == OutcomeParseFailed {
		m.logger.Warn("router output unparseable",
			zap.String("domain", d.ID),
			zap.String("raw", truncate(raw, 200)),
		)
	}
	return decision, nil
}

// buildPrompt renders the few-shot handoff prompt: available agents, two
// worked examples of the wire format, then the recent trace.
func (m *ModelRouter) buildPrompt(d *agent.Domain, steps []trace.Step) string {
	var b strings.Builder

	b.WriteString("You coordinate a team of agents. Decide who acts next.\n\nAgents:\n")
	for _, id := range d.AgentIDs {
		fmt.Fprintf(&b, "- %s\n", id)
	}

	b.WriteString("\nReply with exactly one JSON object.\n")
	b.WriteString("Example (handoff): {\"next_agent\": \"" + exampleAgent(d) + "\", \"terminate\": false, \"reason\": \"needs review\"}\n")
	b.WriteString("Example (done): {\"next_agent\": \"\", \"terminate\": true, \"reason\": \"task complete\"}\n")

	b.WriteString("\nExecution so far:\n")
	for _, s := range recentAgentSteps(steps, maxTraceLinesInPrompt) {
		fmt.Fprintf(&b, "[%s] %s\n", s.AgentID, truncate(s.Output, 400))
	}

	b.WriteString("\nDecision:")
	return b.String()
}

func exampleAgent(d *agent.Domain) string {
	if len(d.AgentIDs) > 0 {
		return d.AgentIDs[0]
	}
	return "agent"
}

func recentAgentSteps(steps []trace.Step, n int) []trace.Step {
	var out []trace.Step
	for _, s := range steps {
		if !s.IsRouter() {
			out = append(out, s)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
