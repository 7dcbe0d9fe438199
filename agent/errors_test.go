package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvocationError_Retryable(t *testing.T) {
	assert.True(t, (&InvocationError{Kind: InvocationTimeout}).Retryable())
	assert.True(t, (&InvocationError{Kind: InvocationTransport}).Retryable())
	assert.False(t, (&InvocationError{Kind: InvocationMalformedOutput}).Retryable())
}

func TestInvocationError_Unwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := &InvocationError{AgentID: "a", Kind: InvocationTransport, Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "transport")
	assert.Contains(t, err.Error(), "a")
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	assert.ErrorIs(t, &QuorumError{Required: 3, Succeeded: 1}, ErrQuorumNotMet)
	assert.ErrorIs(t, &IterationLimitError{Limit: 5}, ErrIterationLimit)
	assert.NotErrorIs(t, &QuorumError{}, ErrIterationLimit)
}

func TestDomain_DefaultAgent(t *testing.T) {
	d := &Domain{AgentIDs: []string{"a", "b"}}
	assert.Equal(t, "a", d.DefaultAgent())

	d.DefaultAgentID = "b"
	assert.Equal(t, "b", d.DefaultAgent())

	assert.Equal(t, "", (&Domain{}).DefaultAgent())
}

func TestAgent_HasCapability(t *testing.T) {
	a := Agent{Capabilities: []string{CapabilitySideEffect}}
	assert.True(t, a.HasCapability(CapabilitySideEffect))
	assert.False(t, a.HasCapability("search"))
	assert.False(t, Agent{}.HasCapability(CapabilitySideEffect))
}
