package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxRetries int) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetryingExecutor_RetriesTransientFailures(t *testing.T) {
	calls := 0
	inner := ExecutorFunc(func(ctx context.Context, a Agent, prompt string) (string, error) {
		calls++
		if calls < 3 {
			return "", &InvocationError{AgentID: a.ID, Kind: InvocationTransport, Err: errors.New("reset")}
		}
		return "ok", nil
	})

	r := NewRetryingExecutor(inner, fastPolicy(3), nil)
	out, err := r.Invoke(context.Background(), Agent{ID: "a"}, "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

func TestRetryingExecutor_DoesNotRetryMalformedOutput(t *testing.T) {
	calls := 0
	inner := ExecutorFunc(func(ctx context.Context, a Agent, prompt string) (string, error) {
		calls++
		return "", &InvocationError{AgentID: a.ID, Kind: InvocationMalformedOutput, Err: errors.New("bad json")}
	})

	r := NewRetryingExecutor(inner, fastPolicy(3), nil)
	_, err := r.Invoke(context.Background(), Agent{ID: "a"}, "p")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryingExecutor_DoesNotRetryUntypedErrors(t *testing.T) {
	calls := 0
	inner := ExecutorFunc(func(ctx context.Context, a Agent, prompt string) (string, error) {
		calls++
		return "", errors.New("plain failure")
	})

	r := NewRetryingExecutor(inner, fastPolicy(3), nil)
	_, err := r.Invoke(context.Background(), Agent{ID: "a"}, "p")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryingExecutor_ExhaustionReturnsLastError(t *testing.T) {
	inner := ExecutorFunc(func(ctx context.Context, a Agent, prompt string) (string, error) {
		return "", &InvocationError{AgentID: a.ID, Kind: InvocationTimeout, Err: errors.New("deadline")}
	})

	r := NewRetryingExecutor(inner, fastPolicy(2), nil)
	_, err := r.Invoke(context.Background(), Agent{ID: "a"}, "p")

	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, InvocationTimeout, invErr.Kind)
}

func TestRetryingExecutor_CancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := ExecutorFunc(func(c context.Context, a Agent, prompt string) (string, error) {
		cancel()
		return "", &InvocationError{AgentID: a.ID, Kind: InvocationTransport, Err: errors.New("reset")}
	})

	policy := fastPolicy(3)
	policy.InitialDelay = time.Hour // the wait must be cut short by ctx
	r := NewRetryingExecutor(inner, policy, nil)

	start := time.Now()
	_, err := r.Invoke(ctx, Agent{ID: "a"}, "p")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRateLimitedExecutor_PassesThrough(t *testing.T) {
	inner := ExecutorFunc(func(ctx context.Context, a Agent, prompt string) (string, error) {
		return "out", nil
	})

	r := NewRateLimitedExecutor(inner, 100, 1)
	out, err := r.Invoke(context.Background(), Agent{ID: "a"}, "p")
	require.NoError(t, err)
	assert.Equal(t, "out", out)
}

func TestRateLimitedExecutor_RespectsCancelledContext(t *testing.T) {
	inner := ExecutorFunc(func(ctx context.Context, a Agent, prompt string) (string, error) {
		return "out", nil
	})
	r := NewRateLimitedExecutor(inner, 0.001, 1)

	// Drain the single burst token, then a cancelled wait must error.
	_, err := r.Invoke(context.Background(), Agent{ID: "a"}, "p")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Invoke(ctx, Agent{ID: "a"}, "p")
	assert.Error(t, err)
}
