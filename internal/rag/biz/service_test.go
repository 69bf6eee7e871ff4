package biz

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragpipe/internal/rag/extract"
	"github.com/kart-io/ragpipe/internal/rag/metadata"
)

func TestServiceUploadParseQuery(t *testing.T) {
	f := newFixture(t, 60)
	ctx := context.Background()

	doc, err := f.service.Upload(ctx, "history.txt", strings.NewReader(historyText))
	require.NoError(t, err)
	assert.NotEmpty(t, doc.FileID)
	assert.Equal(t, metadata.StatusUploaded, doc.Status)

	res, err := f.service.Parse(ctx, doc.FileID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ChunkCount)

	f.embedder.vectors = map[string][]float32{"When did Spain arrive?": {40, 1}}
	answer, err := f.service.Query(ctx, "When did Spain arrive?")
	require.NoError(t, err)
	assert.True(t, answer.Response.OK)
	require.NotEmpty(t, answer.References)

	docs, err := f.service.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, metadata.StatusIndexed, docs[0].Status)

	stats, err := f.service.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats["records"])
	assert.Equal(t, "memory", stats["vector_store"])
	assert.Equal(t, 1, stats["documents"].(map[string]any)["indexed"])
}

func TestServiceParseUnknownFile(t *testing.T) {
	f := newFixture(t, 60)
	_, err := f.service.Parse(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestServiceUploadRejectsUnsupportedType(t *testing.T) {
	f := newFixture(t, 60)
	_, err := f.service.Upload(context.Background(), "photo.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, extract.ErrUnsupportedType)

	docs, err := f.service.Documents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}
