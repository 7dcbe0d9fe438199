package trace

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_AssignsContiguousIndices(t *testing.T) {
	rec := NewRecorder(10)

	for i := 0; i < 5; i++ {
		idx, err := rec.Append(Step{AgentID: "a", Status: StatusSuccess})
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}

	steps := rec.Close()
	require.Len(t, steps, 5)
	for i, s := range steps {
		assert.Equal(t, i, s.Index)
		assert.False(t, s.Timestamp.IsZero())
	}
}

func TestRecorder_EnforcesCap(t *testing.T) {
	rec := NewRecorder(2)

	_, err := rec.Append(Step{AgentID: "a", Status: StatusSuccess})
	require.NoError(t, err)
	_, err = rec.Append(Step{AgentID: "b", Status: StatusSuccess})
	require.NoError(t, err)

	_, err = rec.Append(Step{AgentID: "c", Status: StatusSuccess})
	assert.ErrorIs(t, err, ErrLedgerFull)

	// The rejected step must not appear in the ledger.
	assert.Len(t, rec.Close(), 2)
}

func TestRecorder_ConcurrentAppendsStayContiguous(t *testing.T) {
	const writers = 8
	const perWriter = 25

	rec := NewRecorder(writers * perWriter)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := rec.Append(Step{AgentID: "w", Status: StatusSuccess})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	steps := rec.Close()
	require.Len(t, steps, writers*perWriter)
	for i, s := range steps {
		assert.Equal(t, i, s.Index)
	}
}

func TestRecorder_AppendObservedByLaterSnapshot(t *testing.T) {
	rec := NewRecorder(4)

	_, err := rec.Append(Step{AgentID: "a", Status: StatusSuccess})
	require.NoError(t, err)

	snap := rec.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "a", snap[0].AgentID)

	// Snapshots are copies, mutating one must not touch the ledger.
	snap[0].AgentID = "mutated"
	assert.Equal(t, "a", rec.Snapshot()[0].AgentID)
}

func TestRecorder_CloseIsIdempotent(t *testing.T) {
	rec := NewRecorder(4)
	_, err := rec.Append(Step{AgentID: "a", Status: StatusSuccess})
	require.NoError(t, err)

	first := rec.Close()
	second := rec.Close()
	assert.Equal(t, first, second)

	_, err = rec.Append(Step{AgentID: "b", Status: StatusSuccess})
	assert.ErrorIs(t, err, ErrRecorderClosed)

	assert.Len(t, rec.Snapshot(), 1)
}

func TestRecorder_MinimumCapIsOne(t *testing.T) {
	rec := NewRecorder(0)
	_, err := rec.Append(Step{AgentID: "a", Status: StatusSuccess})
	require.NoError(t, err)
	_, err = rec.Append(Step{AgentID: "b", Status: StatusSuccess})
	assert.ErrorIs(t, err, ErrLedgerFull)
}
