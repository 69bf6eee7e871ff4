package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/ragpipe/internal/rag/index"
	"github.com/kart-io/ragpipe/internal/rag/metrics"
	"github.com/kart-io/ragpipe/internal/rag/store"
	ctxlog "github.com/kart-io/ragpipe/pkg/infra/logger"
	"github.com/kart-io/ragpipe/pkg/llm"
)

// DefaultTopK 默认返回的参考分块数。
const DefaultTopK = 5

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// Collection 集合名称。
	Collection string
	// TopK 检索结果数量。
	TopK int
	// FetchLimit 每次查询从存储读取的记录上限。
	FetchLimit int
}

// Retriever 负责检索和回答。不在查询之间保存任何状态。
type Retriever struct {
	store         store.VectorStore
	embedProvider llm.EmbeddingProvider
	generator     *Generator
	metrics       *metrics.RAGMetrics
	config        *RetrieverConfig
}

// Answer 是一次查询的结果。
type Answer struct {
	Query      string
	Response   Response
	References []index.Result
	// GenerationErr 记录生成失败的原因，此时 Response 为 NoAnswer。
	GenerationErr error
}

// NewRetriever 创建检索器实例。
func NewRetriever(vectorStore store.VectorStore, embedProvider llm.EmbeddingProvider, generator *Generator, m *metrics.RAGMetrics, config *RetrieverConfig) *Retriever {
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	if config.FetchLimit <= 0 {
		config.FetchLimit = store.DefaultFetchLimit
	}
	if m == nil {
		m = metrics.Default()
	}
	return &Retriever{
		store:         vectorStore,
		embedProvider: embedProvider,
		generator:     generator,
		metrics:       m,
		config:        config,
	}
}

// Retrieve 执行 EmbedQuery、FetchRecords、BuildIndex 和 Search 四个阶段。
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]index.Result, error) {
	vec, err := r.embedProvider.EmbedSingle(ctx, query)
	r.metrics.RecordEmbedding(1, err)
	if err != nil {
		return nil, newStageError(StageEmbedQuery, KindEmbedding, err)
	}

	start := time.Now()
	results, scanned, err := r.search(ctx, vec)
	r.metrics.RecordRetrieval(time.Since(start), scanned, err)
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Infow("Retrieved references",
		"collection", r.config.Collection,
		"scanned", scanned,
		"results", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}

func (r *Retriever) search(ctx context.Context, vec []float32) ([]index.Result, int, error) {
	records, err := r.store.FetchAll(ctx, r.config.Collection, r.config.FetchLimit)
	if err != nil {
		return nil, 0, newStageError(StageFetchRecords, KindStoreRead, err)
	}
	if len(records) >= r.config.FetchLimit {
		ctxlog.FromContext(ctx).Warnw("Fetch limit reached, records beyond it are not searched",
			"collection", r.config.Collection,
			"limit", r.config.FetchLimit,
		)
	}

	idx, err := index.Build(records)
	if err != nil {
		return nil, len(records), newStageError(StageBuildIndex, KindStoreRead, err)
	}

	results, err := idx.Search(vec, r.config.TopK)
	if err != nil {
		return nil, idx.Len(), newStageError(StageSearch, KindStoreRead,
			fmt.Errorf("query vector has %d dimensions, collection has %d: %w", len(vec), idx.Dim(), err))
	}
	return results, idx.Len(), nil
}

// Answer 执行完整的查询流程。检索阶段失败时返回 *StageError；
// 生成失败不视为错误，返回 NoAnswer 并记录在 GenerationErr 中。
func (r *Retriever) Answer(ctx context.Context, query string) (*Answer, error) {
	results, err := r.Retrieve(ctx, query)
	if err != nil {
		r.metrics.RecordQuery(false, err)
		ctxlog.FromContext(ctx).Errorw("Query failed", "error", err.Error())
		return nil, err
	}

	references := make([]string, len(results))
	for i, res := range results {
		references[i] = res.Record.Payload.Text
	}

	answer := &Answer{Query: query, References: results}
	answer.Response, answer.GenerationErr = r.generator.Generate(ctx, query, references)
	r.metrics.RecordQuery(!answer.Response.OK, nil)
	return answer, nil
}
