package strategy

import (
	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/testutil/mocks"
)

// ============================================================
// Shared fixtures
// ============================================================

func agentMap(ids ...string) map[string]agent.Agent {
	out := make(map[string]agent.Agent, len(ids))
	for _, id := range ids {
		out[id] = agent.Agent{ID: id, Name: id}
	}
	return out
}

func optionsWith(exec *mocks.ScriptedExecutor) Options {
	return Options{Executor: exec}
}

func mocksExec() *mocks.ScriptedExecutor {
	return mocks.NewScriptedExecutor()
}
