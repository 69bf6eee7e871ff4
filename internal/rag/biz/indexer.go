package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kart-io/ragpipe/internal/rag/extract"
	"github.com/kart-io/ragpipe/internal/rag/metadata"
	"github.com/kart-io/ragpipe/internal/rag/metrics"
	"github.com/kart-io/ragpipe/internal/rag/segment"
	"github.com/kart-io/ragpipe/internal/rag/store"
	"github.com/kart-io/ragpipe/internal/rag/upload"
	ctxlog "github.com/kart-io/ragpipe/pkg/infra/logger"
	"github.com/kart-io/ragpipe/pkg/infra/pool"
	"github.com/kart-io/ragpipe/pkg/llm"
)

// statusWriteTimeout 限制失败状态写入的耗时。写入不受请求上下文取消的影响。
const statusWriteTimeout = 5 * time.Second

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	// ChunkSize 分块大小阈值（字节）。
	ChunkSize int
	// Collection 集合名称。
	Collection string
	// EmbeddingDim 嵌入向量维度。
	EmbeddingDim int
}

// IndexerDeps 索引器依赖。
type IndexerDeps struct {
	Store    store.VectorStore
	Embedder llm.EmbeddingProvider
	Files    upload.Storage
	Metadata metadata.Store
	// Pool 为空时按顺序嵌入。
	Pool    *pool.Pool
	Metrics *metrics.RAGMetrics
}

// IngestResult 是一次解析的结果。
type IngestResult struct {
	FileID     string `json:"file_id"`
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
}

// Indexer 负责文档索引。
type Indexer struct {
	deps   IndexerDeps
	config *IndexerConfig
	newID  func() string
}

// NewIndexer 创建索引器实例。
func NewIndexer(deps IndexerDeps, config *IndexerConfig) *Indexer {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Default()
	}
	return &Indexer{
		deps:   deps,
		config: config,
		newID:  uuid.NewString,
	}
}

// Ingest 解析并索引文档。每次调用生成新的 document_id 和记录 ID，
// 重复解析同一文件会在集合中累积重复记录。
// 写入过程中失败时已写入的分块保留在存储中。
func (i *Indexer) Ingest(ctx context.Context, doc *metadata.Document) (*IngestResult, error) {
	ctx = ctxlog.WithFields(ctx, "file_id", doc.FileID)
	start := time.Now()
	res, err := i.ingest(ctx, doc)
	i.deps.Metrics.RecordIndexing(chunkCount(res), err)

	log := ctxlog.FromContext(ctx)
	if err != nil {
		log.Errorw("Document indexing failed", "error", err.Error())
		i.recordFailure(ctx, doc, err)
		return nil, err
	}

	log.Infow("Document indexed",
		"document_id", res.DocumentID,
		"chunks", res.ChunkCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// recordFailure 将文档标记为失败。解析超时或客户端断开后 ctx 已失效，
// 因此在脱离取消的上下文中写入。
func (i *Indexer) recordFailure(ctx context.Context, doc *metadata.Document, cause error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	doc.Status = metadata.StatusFailed
	doc.Error = cause.Error()
	if err := i.deps.Metadata.Put(writeCtx, doc); err != nil {
		ctxlog.FromContext(ctx).Warnw("Failed to record indexing failure", "error", err.Error())
	}
}

func (i *Indexer) ingest(ctx context.Context, doc *metadata.Document) (*IngestResult, error) {
	elements, err := i.extract(ctx, doc)
	if err != nil {
		return nil, newStageError(StageExtract, KindExtraction, err)
	}

	texts, err := segment.Split(elements, i.config.ChunkSize)
	if err != nil {
		return nil, newStageError(StageSegment, KindSegmentation, err)
	}
	if len(texts) == 0 {
		return nil, newStageError(StageSegment, KindSegmentation, ErrEmptyDocument)
	}

	documentID := i.newID()
	chunks := newChunks(texts, documentID, doc.FileID)
	ctxlog.FromContext(ctx).Infow("Document segmented",
		"document_id", documentID,
		"elements", len(elements),
		"chunks", len(chunks),
	)

	if err := i.deps.Store.EnsureCollection(ctx, i.config.Collection, i.config.EmbeddingDim, store.MetricL2); err != nil {
		return nil, newStageError(StageEnsureCollection, KindStoreConnection, err)
	}

	err = i.embed(ctx, chunks)
	i.deps.Metrics.RecordEmbedding(len(chunks), err)
	if err != nil {
		return nil, newStageError(StageEmbedChunks, KindEmbedding, err)
	}

	for n, c := range chunks {
		record := &store.Record{
			ID:     i.newID(),
			Vector: c.Embedding,
			Payload: store.Payload{
				DocumentID: c.DocumentID,
				Text:       c.Text,
				FileID:     c.FileID,
			},
		}
		if err := i.deps.Store.Upsert(ctx, i.config.Collection, record); err != nil {
			return nil, newStageError(StageUpsert, KindStoreWrite,
				fmt.Errorf("chunk %d of %d: %w", n+1, len(chunks), err))
		}
	}
	if f, ok := i.deps.Store.(store.Flusher); ok {
		if err := f.Flush(ctx, i.config.Collection); err != nil {
			return nil, newStageError(StageUpsert, KindStoreWrite, err)
		}
	}

	doc.DocumentID = documentID
	doc.ChunkCount = len(chunks)
	doc.Status = metadata.StatusIndexed
	doc.Error = ""
	if err := i.deps.Metadata.Put(ctx, doc); err != nil {
		return nil, newStageError(StageUpdateMetadata, KindStoreWrite, err)
	}

	return &IngestResult{
		FileID:     doc.FileID,
		DocumentID: documentID,
		ChunkCount: len(chunks),
	}, nil
}

func (i *Indexer) extract(ctx context.Context, doc *metadata.Document) ([]string, error) {
	name := doc.Filename
	if name == "" {
		name = doc.Location
	}
	extractor, err := extract.ForFile(name)
	if err != nil {
		return nil, err
	}

	f, err := i.deps.Files.Open(ctx, upload.Location(doc.Location))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", doc.Location, err)
	}
	defer func() { _ = f.Close() }()

	return extractor.Extract(ctx, f, f.Size())
}

// embed 在池中并发计算嵌入，结果按分块下标写回，保持分块顺序。
func (i *Indexer) embed(ctx context.Context, chunks []*Chunk) error {
	embedOne := func(ctx context.Context, n int) error {
		vec, err := i.deps.Embedder.EmbedSingle(ctx, chunks[n].Text)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", n+1, err)
		}
		if i.config.EmbeddingDim > 0 && len(vec) != i.config.EmbeddingDim {
			return fmt.Errorf("chunk %d: embedding has %d dimensions, collection expects %d",
				n+1, len(vec), i.config.EmbeddingDim)
		}
		chunks[n].Embedding = vec
		return nil
	}

	if i.deps.Pool == nil {
		for n := range chunks {
			if err := embedOne(ctx, n); err != nil {
				return err
			}
		}
		return nil
	}
	return i.deps.Pool.ForEach(ctx, len(chunks), embedOne)
}

func chunkCount(res *IngestResult) int {
	if res == nil {
		return 0
	}
	return res.ChunkCount
}
