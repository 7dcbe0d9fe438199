package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/router"
	"github.com/BaSui01/agentorch/testutil/mocks"
	"github.com/BaSui01/agentorch/trace"
)

func hybridDomain() *agent.Domain {
	return &agent.Domain{
		ID:                    "longform",
		Strategy:              NameHybrid,
		AgentIDs:              []string{"worker"},
		SummarizerAgentID:     "summarizer",
		MaxIterations:         10,
		SummaryTokenThreshold: 1, // compact as soon as there is anything to fold
		PreserveRecent:        1,
	}
}

func TestHybrid_CompactsWindowButKeepsFullLedger(t *testing.T) {
	exec := mocksExec().
		Respond("worker", "draft one", "draft two", "final").
		Respond("summarizer", "condensed history")
	rt := mocks.NewScriptedRouter().
		Next(router.ContinueWith("worker", "")).
		Next(router.ContinueWith("worker", "")).
		Next(router.Terminate("done", ""))
	h := NewHybrid(Options{Executor: exec, Router: rt})

	agents := agentMap("worker", "summarizer")
	res, err := h.Execute(context.Background(), hybridDomain(), agents, "write the report", nil)
	require.NoError(t, err)

	// worker, router, worker, router, summary, worker, router.
	require.Len(t, res.Steps, 7)
	summaryStep := res.Steps[4]
	assert.True(t, summaryStep.Summary)
	assert.Equal(t, "summarizer", summaryStep.AgentID)
	assert.Equal(t, "condensed history", summaryStep.Output)

	// Compaction rewrites the prompt window, never the ledger.
	assert.Equal(t, "draft one", res.Steps[0].Output)
	assert.Equal(t, "draft two", res.Steps[2].Output)
	assert.Equal(t, "final", res.FinalResponse())
	assert.Equal(t, 1, exec.CallCount("summarizer"))

	// The post-compaction prompt carries the summary and the preserved
	// recent turn, but not the folded one.
	calls := exec.Calls()
	var lastWorkerPrompt string
	for _, c := range calls {
		if c.AgentID == "worker" {
			lastWorkerPrompt = c.Prompt
		}
	}
	assert.Contains(t, lastWorkerPrompt, "condensed history")
	assert.Contains(t, lastWorkerPrompt, "draft two")
	assert.NotContains(t, lastWorkerPrompt, "draft one")
}

func TestHybrid_SummarizerFailureKeepsFullWindow(t *testing.T) {
	exec := mocksExec().
		Respond("worker", "draft one", "draft two", "final").
		Fail("summarizer", errors.New("summarizer offline"))
	rt := mocks.NewScriptedRouter().
		Next(router.ContinueWith("worker", "")).
		Next(router.ContinueWith("worker", "")).
		Next(router.Terminate("done", ""))
	h := NewHybrid(Options{Executor: exec, Router: rt})

	res, err := h.Execute(context.Background(), hybridDomain(), agentMap("worker", "summarizer"), "task", nil)
	require.NoError(t, err)

	// No summary step; the run continues on the uncompacted window.
	for _, step := range res.Steps {
		assert.False(t, step.Summary)
	}
	assert.Equal(t, "final", res.FinalResponse())

	calls := exec.Calls()
	var lastWorkerPrompt string
	for _, c := range calls {
		if c.AgentID == "worker" {
			lastWorkerPrompt = c.Prompt
		}
	}
	assert.Contains(t, lastWorkerPrompt, "draft one")
	assert.Contains(t, lastWorkerPrompt, "draft two")
}

func TestHybrid_BelowThresholdNeverSummarizes(t *testing.T) {
	exec := mocksExec().
		Respond("worker", "short").
		Respond("summarizer", "unused")
	rt := mocks.NewScriptedRouter().Next(router.Terminate("done", ""))

	d := hybridDomain()
	d.SummaryTokenThreshold = 100000
	h := NewHybrid(Options{Executor: exec, Router: rt})

	res, err := h.Execute(context.Background(), d, agentMap("worker", "summarizer"), "task", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, exec.CallCount("summarizer"))
	assert.Equal(t, "short", res.FinalResponse())
	assert.Equal(t, trace.RouterAgentID, res.LastStep().AgentID)
}
