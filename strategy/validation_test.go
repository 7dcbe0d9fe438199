package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentorch/agent"
)

func TestKeywordValidator(t *testing.T) {
	v := &KeywordValidator{Keywords: []string{"Total", "currency"}}

	ok, _, err := v.Validate(context.Background(), "the TOTAL is 12 EUR (currency: EUR)")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, reason, err := v.Validate(context.Background(), "the total is 12")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "currency")
}

func TestSchemaValidator(t *testing.T) {
	v := &SchemaValidator{RequiredKeys: []string{"title", "body"}}

	ok, _, err := v.Validate(context.Background(), ` {"title": "x", "body": "y", "extra": 1} `)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, reason, err := v.Validate(context.Background(), `{"title": "x"}`)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "body")

	ok, reason, err = v.Validate(context.Background(), "not json at all")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "JSON")
}

func TestAgentValidator_Verdicts(t *testing.T) {
	replies := map[string]string{}
	exec := agent.ExecutorFunc(func(ctx context.Context, a agent.Agent, prompt string) (string, error) {
		return replies["verdict"], nil
	})
	v := &AgentValidator{exec: exec, judge: agent.Agent{ID: "judge"}}

	replies["verdict"] = "VALID"
	ok, _, err := v.Validate(context.Background(), "output")
	require.NoError(t, err)
	assert.True(t, ok)

	replies["verdict"] = "invalid: misses the deadline section"
	ok, reason, err := v.Validate(context.Background(), "output")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "misses the deadline section", reason)

	replies["verdict"] = "hmm, hard to say"
	_, _, err = v.Validate(context.Background(), "output")
	assert.Error(t, err)
}

func TestAgentValidator_ExecutorErrorSurfaces(t *testing.T) {
	boom := errors.New("judge offline")
	exec := agent.ExecutorFunc(func(ctx context.Context, a agent.Agent, prompt string) (string, error) {
		return "", boom
	})
	v := &AgentValidator{exec: exec, judge: agent.Agent{ID: "judge"}}

	_, _, err := v.Validate(context.Background(), "output")
	assert.ErrorIs(t, err, boom)
}

func TestValidatorFor_Dispatch(t *testing.T) {
	agents := agentMap("judge")
	exec := mocksExec()

	v, err := ValidatorFor(&agent.Domain{}, agents, exec)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = ValidatorFor(&agent.Domain{
		Validation: agent.ValidationConfig{Type: agent.ValidationKeyword, Keywords: []string{"x"}},
	}, agents, exec)
	require.NoError(t, err)
	assert.Equal(t, "keyword", v.Name())

	v, err = ValidatorFor(&agent.Domain{
		Validation: agent.ValidationConfig{Type: agent.ValidationAgent, ValidatorAgentID: "judge"},
	}, agents, exec)
	require.NoError(t, err)
	assert.Equal(t, "agent:judge", v.Name())

	_, err = ValidatorFor(&agent.Domain{
		Validation: agent.ValidationConfig{Type: agent.ValidationAgent, ValidatorAgentID: "ghost"},
	}, agents, exec)
	assert.ErrorIs(t, err, agent.ErrUnknownAgent)

	_, err = ValidatorFor(&agent.Domain{
		Validation: agent.ValidationConfig{Type: agent.ValidationKeyword},
	}, agents, exec)
	assert.ErrorIs(t, err, agent.ErrInvalidDomain)
}
