package hitl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitPending(t *testing.T, g *Gate) Request {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if pending := g.Pending(); len(pending) > 0 {
			return pending[0]
		}
		select {
		case <-deadline:
			t.Fatal("no pending request appeared")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestGate_ApproveUnblocksRequester(t *testing.T) {
	g := NewGate(time.Minute, nil)

	type outcome struct {
		decision Decision
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		d, err := g.RequestApproval(context.Background(), Request{RunID: "run-1", AgentID: "deployer", Action: "deploy v2"})
		done <- outcome{d, err}
	}()

	req := waitPending(t, g)
	assert.Equal(t, "run-1", req.RunID)
	assert.False(t, req.CreatedAt.IsZero())
	require.NoError(t, g.Approve(req.ID))

	out := <-done
	require.NoError(t, out.err)
	assert.True(t, out.decision.Approved)
	assert.Empty(t, g.Pending())
}

func TestGate_RejectCarriesReason(t *testing.T) {
	g := NewGate(time.Minute, nil)

	done := make(chan Decision, 1)
	go func() {
		d, err := g.RequestApproval(context.Background(), Request{RunID: "run-1", AgentID: "deployer"})
		require.NoError(t, err)
		done <- d
	}()

	req := waitPending(t, g)
	require.NoError(t, g.Reject(req.ID, "release freeze"))

	d := <-done
	assert.False(t, d.Approved)
	assert.Equal(t, "release freeze", d.Reason)
}

func TestGate_TimeoutIsError(t *testing.T) {
	g := NewGate(20*time.Millisecond, nil)

	_, err := g.RequestApproval(context.Background(), Request{RunID: "run-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Empty(t, g.Pending())
}

func TestGate_ContextCancellation(t *testing.T) {
	g := NewGate(time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := g.RequestApproval(ctx, Request{RunID: "run-1"})
		errCh <- err
	}()

	waitPending(t, g)
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestGate_ResolveUnknownID(t *testing.T) {
	g := NewGate(time.Minute, nil)
	assert.Error(t, g.Approve("missing"))
	assert.Error(t, g.Reject("missing", "reason"))
}
