// Package mocks provides scripted executor and router doubles for tests.
package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/router"
	"github.com/BaSui01/agentorch/trace"
)

// ExecutorCall records one Invoke observed by the scripted executor.
type ExecutorCall struct {
	AgentID string
	Prompt  string
}

type scriptEntry struct {
	output string
	err    error
}

// ScriptedExecutor is an agent.Executor returning canned responses per
// agent id. Responses are consumed in order; the last one repeats once the
// queue drains, so loops keep getting a deterministic answer. Safe for
// concurrent use.
type ScriptedExecutor struct {
	mu      sync.Mutex
	scripts map[string][]scriptEntry
	delays  map[string]time.Duration
	calls   []ExecutorCall
}

// NewScriptedExecutor 创建脚本化执行器
func NewScriptedExecutor() *ScriptedExecutor {
	return &ScriptedExecutor{
		scripts: make(map[string][]scriptEntry),
		delays:  make(map[string]time.Duration),
	}
}

// Respond enqueues successful responses for the agent.
func (e *ScriptedExecutor) Respond(agentID string, outputs ...string) *ScriptedExecutor {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, out := range outputs {
		e.scripts[agentID] = append(e.scripts[agentID], scriptEntry{output: out})
	}
	return e
}

// Fail enqueues an error response for the agent.
func (e *ScriptedExecutor) Fail(agentID string, err error) *ScriptedExecutor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts[agentID] = append(e.scripts[agentID], scriptEntry{err: err})
	return e
}

// Delay makes every invocation of the agent wait before responding, so
// tests can exercise step timeouts and cancellation.
func (e *ScriptedExecutor) Delay(agentID string, d time.Duration) *ScriptedExecutor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delays[agentID] = d
	return e
}

func (e *ScriptedExecutor) Invoke(ctx context.Context, a agent.Agent, prompt string) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, ExecutorCall{AgentID: a.ID, Prompt: prompt})
	delay := e.delays[a.ID]

	queue := e.scripts[a.ID]
	var entry scriptEntry
	switch len(queue) {
	case 0:
		e.mu.Unlock()
		return "", &agent.InvocationError{
			AgentID: a.ID,
			Kind:    agent.InvocationMalformedOutput,
			Err:     fmt.Errorf("no scripted response for agent %s", a.ID),
		}
	case 1:
		entry = queue[0]
	default:
		entry = queue[0]
		e.scripts[a.ID] = queue[1:]
	}
	e.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if entry.err != nil {
		return "", entry.err
	}
	return entry.output, nil
}

// Calls returns every recorded invocation in order.
func (e *ScriptedExecutor) Calls() []ExecutorCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ExecutorCall, len(e.calls))
	copy(out, e.calls)
	return out
}

// CallCount returns how many times the agent was invoked.
func (e *ScriptedExecutor) CallCount(agentID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c.AgentID == agentID {
			n++
		}
	}
	return n
}

type routedEntry struct {
	decision router.Decision
	err      error
}

// ScriptedRouter is a router.Port replaying a fixed decision sequence. An
// exhausted script terminates, so a runaway loop ends instead of hanging.
type ScriptedRouter struct {
	mu    sync.Mutex
	queue []routedEntry
}

// NewScriptedRouter 创建脚本化路由器
func NewScriptedRouter() *ScriptedRouter {
	return &ScriptedRouter{}
}

// Next enqueues a decision.
func (r *ScriptedRouter) Next(d router.Decision) *ScriptedRouter {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, routedEntry{decision: d})
	return r
}

// NextErr enqueues a transport-level routing error.
func (r *ScriptedRouter) NextErr(err error) *ScriptedRouter {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, routedEntry{err: err})
	return r
}

func (r *ScriptedRouter) Decide(ctx context.Context, d *agent.Domain, steps []trace.Step) (router.Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return router.Terminate("script exhausted", ""), nil
	}
	entry := r.queue[0]
	r.queue = r.queue[1:]
	if entry.err != nil {
		return router.Decision{}, entry.err
	}
	return entry.decision, nil
}
