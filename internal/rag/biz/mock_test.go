package biz

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragpipe/internal/rag/metadata"
	"github.com/kart-io/ragpipe/internal/rag/metrics"
	"github.com/kart-io/ragpipe/internal/rag/prompt"
	"github.com/kart-io/ragpipe/internal/rag/store"
	"github.com/kart-io/ragpipe/internal/rag/upload"
	"github.com/kart-io/ragpipe/pkg/infra/pool"
	poolopts "github.com/kart-io/ragpipe/pkg/options/pool"
)

var errBoom = errors.New("boom")

// fakeEmbedder 按固定映射或文本长度生成向量。
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	failOn  map[string]bool
	err     error
	delay   func(text string) time.Duration
	calls   int
}

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.delay != nil {
		select {
		case <-time.After(e.delay(text)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil || e.failOn[text] {
		return nil, errBoom
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{float32(len(text)), 1}, nil
}

func (e *fakeEmbedder) Name() string { return "fake" }

func (e *fakeEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// fakeChat 记录最后一次提示词。
type fakeChat struct {
	mu         sync.Mutex
	reply      string
	err        error
	lastPrompt string
	lastSystem string
}

func (c *fakeChat) Generate(_ context.Context, prompt, systemPrompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPrompt = prompt
	c.lastSystem = systemPrompt
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func (c *fakeChat) Name() string { return "fake-chat" }

// faultyStore 在指定操作上注入错误。
type faultyStore struct {
	*store.MemoryStore
	ensureErr error
	fetchErr  error
	failAfter int
	upserts   int
}

func (s *faultyStore) EnsureCollection(ctx context.Context, name string, dim int, metric store.Metric) error {
	if s.ensureErr != nil {
		return s.ensureErr
	}
	return s.MemoryStore.EnsureCollection(ctx, name, dim, metric)
}

func (s *faultyStore) Upsert(ctx context.Context, collection string, r *store.Record) error {
	if s.failAfter > 0 && s.upserts >= s.failAfter {
		return errBoom
	}
	s.upserts++
	return s.MemoryStore.Upsert(ctx, collection, r)
}

func (s *faultyStore) FetchAll(ctx context.Context, collection string, limit int) ([]*store.Record, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.MemoryStore.FetchAll(ctx, collection, limit)
}

// flushingStore 统计写入与 Flush 次数。
type flushingStore struct {
	*store.MemoryStore
	mu       sync.Mutex
	upserts  int
	flushes  int
	flushErr error
}

func (s *flushingStore) Upsert(ctx context.Context, collection string, r *store.Record) error {
	s.mu.Lock()
	s.upserts++
	s.mu.Unlock()
	return s.MemoryStore.Upsert(ctx, collection, r)
}

func (s *flushingStore) Flush(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return s.flushErr
}

// memMetadata 是内存中的元数据存储，与真实存储一样在 ctx 失效后拒绝写入。
type memMetadata struct {
	mu   sync.Mutex
	docs map[string]metadata.Document
}

func newMemMetadata() *memMetadata {
	return &memMetadata{docs: make(map[string]metadata.Document)}
}

func (m *memMetadata) Put(ctx context.Context, doc *metadata.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.FileID] = *doc
	return nil
}

func (m *memMetadata) Get(_ context.Context, fileID string) (*metadata.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[fileID]
	if !ok {
		return nil, metadata.ErrNotFound
	}
	return &d, nil
}

func (m *memMetadata) List(context.Context) ([]*metadata.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*metadata.Document, 0, len(m.docs))
	for _, d := range m.docs {
		d := d
		out = append(out, &d)
	}
	return out, nil
}

func (m *memMetadata) Close() error { return nil }

type staticPrompts prompt.Prompts

func (p staticPrompts) Get() prompt.Prompts { return prompt.Prompts(p) }

var testPrompts = staticPrompts{SystemPrompt: "system", UserPrompt: "Answer from the references."}

const testCollection = "philippine_history"

// fixture 组装一套可用的索引器和检索器。
type fixture struct {
	store    *faultyStore
	embedder *fakeEmbedder
	chat     *fakeChat
	meta     *memMetadata
	files    *upload.LocalStorage
	metrics  *metrics.RAGMetrics
	indexer  *Indexer
	retr     *Retriever
	service  *RAGService
}

func newFixture(t *testing.T, chunkSize int) *fixture {
	t.Helper()

	files, err := upload.NewLocalStorage(t.TempDir(), 0)
	require.NoError(t, err)

	opts := poolopts.NewOptions()
	opts.Capacity = 4
	p, err := pool.NewPool("embed-test", opts)
	require.NoError(t, err)
	t.Cleanup(p.Release)

	f := &fixture{
		store:    &faultyStore{MemoryStore: store.NewMemoryStore()},
		embedder: &fakeEmbedder{},
		chat:     &fakeChat{reply: "an answer"},
		meta:     newMemMetadata(),
		files:    files,
		metrics:  metrics.NewRAGMetrics(),
	}

	f.indexer = NewIndexer(IndexerDeps{
		Store:    f.store,
		Embedder: f.embedder,
		Files:    f.files,
		Metadata: f.meta,
		Pool:     p,
		Metrics:  f.metrics,
	}, &IndexerConfig{ChunkSize: chunkSize, Collection: testCollection, EmbeddingDim: 2})

	gen := NewGenerator(f.chat, testPrompts, f.metrics)
	f.retr = NewRetriever(f.store, f.embedder, gen, f.metrics, &RetrieverConfig{Collection: testCollection})
	f.service = NewRAGService(f.indexer, f.retr)
	return f
}

// addTextDocument 保存一个文本文件并登记元数据。
func (f *fixture) addTextDocument(t *testing.T, fileID, content string) *metadata.Document {
	t.Helper()
	path := filepath.Join(f.files.Root(), fileID+".txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	doc := &metadata.Document{FileID: fileID, Filename: "doc.txt", Location: path, Status: metadata.StatusUploaded}
	require.NoError(t, f.meta.Put(context.Background(), doc))
	return doc
}
