package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateCounter(t *testing.T) {
	c := EstimateCounter{}

	n, err := c.Count("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = c.Count("hi")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	long := strings.Repeat("abcd", 100)
	n, err = c.Count(long)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	// Many short words dominate the character estimate.
	n, err = c.Count("a b c d e f g h")
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	assert.Equal(t, "estimate", c.Name())
}

func TestTiktokenCounter_EncodingResolution(t *testing.T) {
	assert.Equal(t, "tiktoken[o200k_base]", NewTiktokenCounter("gpt-4o").Name())
	assert.Equal(t, "tiktoken[o200k_base]", NewTiktokenCounter("gpt-4o-2024-08-06").Name())
	assert.Equal(t, "tiktoken[cl100k_base]", NewTiktokenCounter("gpt-3.5-turbo-16k").Name())
	assert.Equal(t, "tiktoken[cl100k_base]", NewTiktokenCounter("entirely-unknown").Name())
}
