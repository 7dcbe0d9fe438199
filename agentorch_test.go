package agentorch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/checkpoint"
	"github.com/BaSui01/agentorch/testutil/mocks"
)

func TestNew_BuildsWorkingOrchestrator(t *testing.T) {
	exec := mocks.NewScriptedExecutor().
		Respond("researcher", "findings").
		Respond("writer", "article")

	o, err := New(exec,
		WithAgents(agent.Agent{ID: "researcher"}, agent.Agent{ID: "writer"}),
		WithDomain(agent.Domain{
			ID:            "editorial",
			Strategy:      "sequential",
			AgentIDs:      []string{"researcher", "writer"},
			MaxIterations: 10,
		}),
		WithStore(checkpoint.NewMemoryStore()),
	)
	require.NoError(t, err)

	res, err := o.Execute(context.Background(), "editorial", "cover the launch")
	require.NoError(t, err)
	assert.Equal(t, "article", res.FinalResponse())
}

func TestNew_SurfacesValidationErrors(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(mocks.NewScriptedExecutor(),
		WithDomain(agent.Domain{ID: "d", Strategy: "sequential", AgentIDs: []string{"ghost"}, MaxIterations: 1}),
	)
	assert.ErrorIs(t, err, agent.ErrUnknownAgent)
}
