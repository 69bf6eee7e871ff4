package biz

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragpipe/internal/rag/store"
)

func seed(t *testing.T, s store.VectorStore, vectors map[string][]float32, order ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, testCollection, 0, store.MetricL2))
	for _, text := range order {
		require.NoError(t, s.Upsert(ctx, testCollection, &store.Record{
			ID:      "id-" + text,
			Vector:  vectors[text],
			Payload: store.Payload{DocumentID: "doc", Text: text, FileID: "file"},
		}))
	}
}

func TestRetrieveRanksByDistance(t *testing.T) {
	f := newFixture(t, 100)
	// 到查询向量的平方距离分别为 0.9、0.1、0.5
	seed(t, f.store, map[string][]float32{
		"p0": {float32(math.Sqrt(0.9))},
		"p1": {float32(math.Sqrt(0.1))},
		"p2": {float32(math.Sqrt(0.5))},
	}, "p0", "p1", "p2")
	f.embedder.vectors = map[string][]float32{"query": {0}}

	r := NewRetriever(f.store, f.embedder, NewGenerator(f.chat, testPrompts, f.metrics), f.metrics,
		&RetrieverConfig{Collection: testCollection, TopK: 2})

	results, err := r.Retrieve(context.Background(), "query")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "p1", results[0].Record.Payload.Text)
	assert.InDelta(t, 0.1, results[0].Distance, 1e-5)

	assert.Equal(t, 2, results[1].Rank)
	assert.Equal(t, "p2", results[1].Record.Payload.Text)
	assert.InDelta(t, 0.5, results[1].Distance, 1e-5)
}

func TestAnswerPassesReferencesInRankOrder(t *testing.T) {
	f := newFixture(t, 100)
	seed(t, f.store, map[string][]float32{
		"far":  {10, 0},
		"near": {1, 0},
		"mid":  {5, 0},
	}, "far", "near", "mid")
	f.embedder.vectors = map[string][]float32{"q": {0, 0}}

	answer, err := f.retr.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "q", answer.Query)
	assert.Equal(t, Answered("an answer"), answer.Response)
	assert.NoError(t, answer.GenerationErr)
	require.Len(t, answer.References, 3)

	assert.Equal(t, BuildUserPrompt(testPrompts.UserPrompt, "q", []string{"near", "mid", "far"}), f.chat.lastPrompt)
	assert.Equal(t, "system", f.chat.lastSystem)
}

func TestAnswerIsStateless(t *testing.T) {
	f := newFixture(t, 100)
	seed(t, f.store, map[string][]float32{"a": {1, 0}, "b": {0, 1}}, "a", "b")
	f.embedder.vectors = map[string][]float32{"q": {1, 0}}

	first, err := f.retr.Answer(context.Background(), "q")
	require.NoError(t, err)
	second, err := f.retr.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, first.References, second.References)
}

func TestAnswerGenerationFailure(t *testing.T) {
	f := newFixture(t, 100)
	seed(t, f.store, map[string][]float32{"a": {1, 0}}, "a")
	f.embedder.vectors = map[string][]float32{"q": {1, 0}}
	f.chat.err = errBoom

	answer, err := f.retr.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, NoAnswer, answer.Response)
	assert.False(t, answer.Response.OK)

	kind, ok := KindOf(answer.GenerationErr)
	assert.True(t, ok)
	assert.Equal(t, KindGeneration, kind)

	stats := f.metrics.Stats()["queries"].(map[string]interface{})
	assert.EqualValues(t, 1, stats["no_answer"])
}

func TestAnswerStageFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		stage Stage
		kind  ErrorKind
	}{
		{
			name:  "embedding fails",
			setup: func(f *fixture) { f.embedder.err = errBoom },
			stage: StageEmbedQuery,
			kind:  KindEmbedding,
		},
		{
			name: "store read fails",
			setup: func(f *fixture) {
				seed(t, f.store, map[string][]float32{"a": {1, 0}}, "a")
				f.store.fetchErr = errBoom
			},
			stage: StageFetchRecords,
			kind:  KindStoreRead,
		},
		{
			name:  "collection missing",
			setup: func(*fixture) {},
			stage: StageFetchRecords,
			kind:  KindStoreRead,
		},
		{
			name:  "collection empty",
			setup: func(f *fixture) { seed(t, f.store, nil) },
			stage: StageBuildIndex,
			kind:  KindStoreRead,
		},
		{
			name: "dimension mismatch",
			setup: func(f *fixture) {
				seed(t, f.store, map[string][]float32{"a": {1, 0}}, "a")
				f.embedder.vectors = map[string][]float32{"q": {1, 0, 0}}
			},
			stage: StageSearch,
			kind:  KindStoreRead,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 100)
			tt.setup(f)

			answer, err := f.retr.Answer(context.Background(), "q")
			require.Error(t, err)
			assert.Nil(t, answer)

			stage, _ := StageOf(err)
			kind, _ := KindOf(err)
			assert.Equal(t, tt.stage, stage)
			assert.Equal(t, tt.kind, kind)
			assert.Empty(t, f.chat.lastPrompt, "generation must not run after a failed stage")
		})
	}
}
