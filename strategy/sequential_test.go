package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/trace"
)

func TestSequential_RetryExhaustionEscalatesToFallback(t *testing.T) {
	exec := mocksExec().
		Respond("drafter", "rough notes").
		Respond("fallback", "APPROVED final answer")
	s := NewSequential(optionsWith(exec))

	d := &agent.Domain{
		ID:              "support",
		Strategy:        NameSequential,
		AgentIDs:        []string{"drafter"},
		MaxIterations:   10,
		MaxRetries:      2,
		FallbackAgentID: "fallback",
		Validation: agent.ValidationConfig{
			Type:     agent.ValidationKeyword,
			Keywords: []string{"approved"},
		},
	}

	res, err := s.Execute(context.Background(), d, agentMap("drafter", "fallback"), "answer the ticket", nil)
	require.NoError(t, err)

	// Three rejected attempts, then one successful fallback step.
	require.Len(t, res.Steps, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, "drafter", res.Steps[i].AgentID)
		assert.Equal(t, trace.StatusValidationFailed, res.Steps[i].Status)
	}
	assert.Equal(t, "fallback", res.Steps[3].AgentID)
	assert.Equal(t, trace.StatusSuccess, res.Steps[3].Status)

	assert.Equal(t, 3, exec.CallCount("drafter"))
	assert.Equal(t, 1, exec.CallCount("fallback"))
	assert.Equal(t, "APPROVED final answer", res.FinalResponse())
	assert.Equal(t, ReasonCompleted, res.Metadata.TerminationReason)
	assert.False(t, res.Metadata.Failed)
}

func TestSequential_RetryPromptCarriesRejectionReason(t *testing.T) {
	exec := mocksExec().Respond("drafter", "too short", "APPROVED answer")
	s := NewSequential(optionsWith(exec))

	d := &agent.Domain{
		ID:            "support",
		Strategy:      NameSequential,
		AgentIDs:      []string{"drafter"},
		MaxIterations: 10,
		MaxRetries:    1,
		Validation: agent.ValidationConfig{
			Type:     agent.ValidationKeyword,
			Keywords: []string{"approved"},
		},
	}

	res, err := s.Execute(context.Background(), d, agentMap("drafter"), "task", nil)
	require.NoError(t, err)
	require.Len(t, res.Steps, 2)

	calls := exec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "task", calls[0].Prompt)
	assert.Contains(t, calls[1].Prompt, "rejected")
	assert.Contains(t, calls[1].Prompt, "approved")
}

func TestSequential_AttemptsNeverExceedOnePlusMaxRetries(t *testing.T) {
	exec := mocksExec().Respond("drafter", "never valid")
	s := NewSequential(optionsWith(exec))

	d := &agent.Domain{
		ID:            "support",
		Strategy:      NameSequential,
		AgentIDs:      []string{"drafter"},
		MaxIterations: 20,
		MaxRetries:    3,
		Validation: agent.ValidationConfig{
			Type:     agent.ValidationKeyword,
			Keywords: []string{"approved"},
		},
	}

	res, err := s.Execute(context.Background(), d, agentMap("drafter"), "task", nil)

	var vf *agent.ValidationFailure
	require.ErrorAs(t, err, &vf)
	assert.Equal(t, "drafter", vf.AgentID)

	assert.Equal(t, 4, exec.CallCount("drafter"))
	assert.Len(t, res.Steps, 4)
	assert.Equal(t, ReasonValidationFailed, res.Metadata.TerminationReason)
	assert.True(t, res.Metadata.Failed)
}

func TestSequential_ChainsOutputsThroughPipeline(t *testing.T) {
	exec := mocksExec().
		Respond("researcher", "research findings").
		Respond("writer", "polished article")
	s := NewSequential(optionsWith(exec))

	d := &agent.Domain{
		ID:            "editorial",
		Strategy:      NameSequential,
		AgentIDs:      []string{"researcher", "writer"},
		MaxIterations: 10,
	}

	res, err := s.Execute(context.Background(), d, agentMap("researcher", "writer"), "cover the launch", nil)
	require.NoError(t, err)
	require.Len(t, res.Steps, 2)

	calls := exec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "cover the launch", calls[0].Prompt)
	assert.Equal(t, "research findings", calls[1].Prompt)
	assert.Equal(t, "polished article", res.FinalResponse())
}

func TestSequential_InvocationFailureRecordsStepAndRetries(t *testing.T) {
	exec := mocksExec().
		Fail("drafter", &agent.InvocationError{AgentID: "drafter", Kind: agent.InvocationTransport, Err: errors.New("reset")}).
		Respond("drafter", "recovered answer")
	s := NewSequential(optionsWith(exec))

	d := &agent.Domain{
		ID:            "support",
		Strategy:      NameSequential,
		AgentIDs:      []string{"drafter"},
		MaxIterations: 10,
		MaxRetries:    1,
	}

	res, err := s.Execute(context.Background(), d, agentMap("drafter"), "task", nil)
	require.NoError(t, err)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, trace.StatusFailure, res.Steps[0].Status)
	assert.Empty(t, res.Steps[0].Output)
	assert.NotEmpty(t, res.Steps[0].Error)
	assert.Equal(t, "recovered answer", res.FinalResponse())
}

func TestSequential_HistoryPrefixesFirstPrompt(t *testing.T) {
	exec := mocksExec().Respond("drafter", "follow-up answer")
	s := NewSequential(optionsWith(exec))

	d := &agent.Domain{
		ID:            "support",
		Strategy:      NameSequential,
		AgentIDs:      []string{"drafter"},
		MaxIterations: 10,
	}

	history := []trace.Step{
		{Index: 0, AgentID: "drafter", Output: "earlier answer", Status: trace.StatusSuccess},
		{Index: 1, AgentID: trace.RouterAgentID, Status: trace.StatusSuccess},
	}
	res, err := s.Execute(context.Background(), d, agentMap("drafter"), "follow up", history)
	require.NoError(t, err)
	require.Len(t, res.Steps, 1)

	calls := exec.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "Previous conversation:")
	assert.Contains(t, calls[0].Prompt, "[drafter]: earlier answer")
	assert.Contains(t, calls[0].Prompt, "follow up")
	assert.NotContains(t, calls[0].Prompt, trace.RouterAgentID+"]:")
}

func TestSequential_CancelledContextYieldsValidPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := mocksExec().Respond("drafter", "unused")
	s := NewSequential(optionsWith(exec))

	d := &agent.Domain{
		ID:            "support",
		Strategy:      NameSequential,
		AgentIDs:      []string{"drafter"},
		MaxIterations: 10,
	}

	res, err := s.Execute(ctx, d, agentMap("drafter"), "task", nil)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, ReasonCancelled, res.Metadata.TerminationReason)
	assert.True(t, res.Metadata.Failed)
	for i, step := range res.Steps {
		assert.Equal(t, i, step.Index)
	}
}
