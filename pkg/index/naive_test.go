package index

import (
	"testing"

	"github.com/ragcore/ragcore/pkg/kernel"
	"github.com/stretchr/testify/require"
)

func unit(t *testing.T, v []float32) []float32 {
	t.Helper()
	n, err := kernel.Normalize(v)
	require.NoError(t, err)
	return n
}

func TestNaiveEmptyIndex(t *testing.T) {
	idx := NewNaive(3)
	results, err := idx.Query(unit(t, []float32{1, 0, 0}), 5, 0)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestNaiveSelfRetrieval(t *testing.T) {
	idx := NewNaive(3)
	v := unit(t, []float32{1, 2, 3})
	require.NoError(t, idx.Add("a", v))

	results, err := idx.Query(v, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "a", results[0].ID)
	require.GreaterOrEqual(t, results[0].Similarity, 1-kernel.Epsilon)
}

func TestNaiveOrderingAndTieBreak(t *testing.T) {
	idx := NewNaive(3)
	require.NoError(t, idx.Build([]Point{
		{ID: "b", Vector: unit(t, []float32{0, 1, 0})},
		{ID: "a", Vector: unit(t, []float32{1, 0, 0})},
	}))

	results, err := idx.Query(unit(t, []float32{1, 1, 0}), 2, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.InDelta(t, results[0].Similarity, results[1].Similarity, 1e-6)
	require.Equal(t, "a", results[0].ID)
	require.Equal(t, "b", results[1].ID)
}

func TestNaiveMinSimFilter(t *testing.T) {
	idx := NewNaive(3)
	require.NoError(t, idx.Build([]Point{
		{ID: "a", Vector: unit(t, []float32{1, 0, 0})},
		{ID: "b", Vector: unit(t, []float32{0, 1, 0})},
	}))

	results, err := idx.Query(unit(t, []float32{1, 0, 0}), 5, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "a", results[0].ID)
}

func TestNaiveDimensionMismatch(t *testing.T) {
	idx := NewNaive(3)
	err := idx.Add("a", []float32{1, 2})
	require.Error(t, err)
}

func TestNaiveRemove(t *testing.T) {
	idx := NewNaive(3)
	v := unit(t, []float32{1, 0, 0})
	require.NoError(t, idx.Add("a", v))
	require.True(t, idx.Remove("a"))
	require.False(t, idx.Remove("a"))
	require.Equal(t, 0, idx.Size())
}
