package sequential

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metailurini/durableset/persist"
)

func newTestSet(t *testing.T, maxWriteOps int) *Set {
	t.Helper()
	store, err := persist.New(1, maxWriteOps)
	require.NoError(t, err)
	return New(store, nil, maxWriteOps)
}

func TestInsertContainsRemove(t *testing.T) {
	s := newTestSet(t, 8)

	assert.False(t, s.Contains(5))
	assert.True(t, s.Insert(5, 50))
	assert.True(t, s.Contains(5))
	assert.False(t, s.Insert(5, 99))

	assert.True(t, s.Remove(5))
	assert.False(t, s.Contains(5))
	assert.False(t, s.Remove(5))
}

func TestArenaExhaustion(t *testing.T) {
	s := newTestSet(t, 2)
	assert.True(t, s.Insert(1, 1))
	assert.True(t, s.Insert(2, 2))
	assert.False(t, s.Insert(3, 3))
}

func TestRecoverReplaysCommittedNodes(t *testing.T) {
	s := newTestSet(t, 8)
	for _, k := range []int64{1, 2, 3} {
		require.True(t, s.Insert(k, k))
	}
	require.True(t, s.Remove(2))

	s.Recover(8)
	assert.Equal(t, []int64{1, 3}, s.Keys())
}

// TestAgainstMapOracle fuzzes a random sequence of insert/remove/contains
// against a plain Go map: this set is itself the oracle the other four
// variants get checked against, so its own correctness is checked here
// against the simplest possible reference.
func TestAgainstMapOracle(t *testing.T) {
	const ops = 500
	s := newTestSet(t, ops)
	oracle := make(map[int64]int64)
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < ops; i++ {
		key := int64(rng.IntN(50))
		switch rng.IntN(3) {
		case 0:
			item := int64(i)
			want := oracle[key]
			_, existed := oracle[key]
			got := s.Insert(key, item)
			assert.Equal(t, !existed, got)
			if !existed {
				oracle[key] = item
			}
			_ = want
		case 1:
			_, existed := oracle[key]
			got := s.Remove(key)
			assert.Equal(t, existed, got)
			delete(oracle, key)
		default:
			_, existed := oracle[key]
			assert.Equal(t, existed, s.Contains(key))
		}
	}

	for key := range oracle {
		assert.True(t, s.Contains(key))
	}
}
