package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.EnsureCollection(ctx, "c", 2, MetricL2))
	require.NoError(t, s.EnsureCollection(ctx, "c", 3, MetricL2))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Upsert(ctx, "c", &Record{
			ID:      id,
			Vector:  []float32{1, 2},
			Payload: Payload{DocumentID: "d", Text: id, FileID: "f"},
		}))
	}

	all, err := s.FetchAll(ctx, "c", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].Payload.Text)
	assert.Equal(t, "c", all[2].Payload.Text)

	limited, err := s.FetchAll(ctx, "c", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	n, err := s.Count(ctx, "c")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestMemoryStoreUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.EnsureCollection(ctx, "c", 1, MetricL2))

	require.NoError(t, s.Upsert(ctx, "c", &Record{ID: "x", Vector: []float32{1}, Payload: Payload{Text: "old"}}))
	require.NoError(t, s.Upsert(ctx, "c", &Record{ID: "x", Vector: []float32{2}, Payload: Payload{Text: "new"}}))

	all, err := s.FetchAll(ctx, "c", 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "new", all[0].Payload.Text)
}

func TestMemoryStoreIsolatesCallerSlices(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.EnsureCollection(ctx, "c", 1, MetricL2))

	vec := []float32{1}
	require.NoError(t, s.Upsert(ctx, "c", &Record{ID: "x", Vector: vec}))
	vec[0] = 9

	all, err := s.FetchAll(ctx, "c", 0)
	require.NoError(t, err)
	assert.Equal(t, float32(1), all[0].Vector[0])
}

func TestMemoryStoreErrors(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	assert.Error(t, s.Upsert(ctx, "missing", &Record{ID: "x"}))
	_, err := s.FetchAll(ctx, "missing", 0)
	assert.Error(t, err)

	require.NoError(t, s.EnsureCollection(ctx, "c", 1, MetricL2))
	assert.Error(t, s.Upsert(ctx, "c", &Record{}))
}
