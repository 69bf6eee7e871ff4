package biz

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/kart-io/ragpipe/internal/rag/extract"
	"github.com/kart-io/ragpipe/internal/rag/metadata"
	"github.com/kart-io/ragpipe/internal/rag/metrics"
	"github.com/kart-io/ragpipe/internal/rag/store"
	"github.com/kart-io/ragpipe/internal/rag/upload"
	ctxlog "github.com/kart-io/ragpipe/pkg/infra/logger"
)

// ErrDocumentNotFound 未知的 file_id。
var ErrDocumentNotFound = errors.New("file not found")

// Service 定义 RAG 服务接口。
type Service interface {
	// Upload 保存上传文件并登记元数据。
	Upload(ctx context.Context, filename string, r io.Reader) (*metadata.Document, error)
	// Parse 解析并索引已上传的文件。
	Parse(ctx context.Context, fileID string) (*IngestResult, error)
	// Query 执行 RAG 查询。
	Query(ctx context.Context, question string) (*Answer, error)
	// Documents 返回已上传的文档。
	Documents(ctx context.Context) ([]*metadata.Document, error)
	// GetStats 获取知识库统计信息。
	GetStats(ctx context.Context) (map[string]any, error)
}

// RAGService 组合 Indexer 和 Retriever 提供完整的 RAG 服务。
type RAGService struct {
	indexer    *Indexer
	retriever  *Retriever
	files      upload.Storage
	meta       metadata.Store
	store      store.VectorStore
	metrics    *metrics.RAGMetrics
	collection string
	newID      func() string
}

// NewRAGService 创建 RAG 服务实例。
func NewRAGService(indexer *Indexer, retriever *Retriever) *RAGService {
	return &RAGService{
		indexer:    indexer,
		retriever:  retriever,
		files:      indexer.deps.Files,
		meta:       indexer.deps.Metadata,
		store:      indexer.deps.Store,
		metrics:    indexer.deps.Metrics,
		collection: indexer.config.Collection,
		newID:      uuid.NewString,
	}
}

// Upload 以新的 file_id 保存文件。
func (s *RAGService) Upload(ctx context.Context, filename string, r io.Reader) (*metadata.Document, error) {
	if _, err := extract.ForFile(filename); err != nil {
		return nil, err
	}

	fileID := s.newID()
	loc, err := s.files.Save(ctx, fileID, filename, r)
	if err != nil {
		return nil, err
	}

	doc := &metadata.Document{
		FileID:   fileID,
		Filename: filename,
		Location: string(loc),
		Status:   metadata.StatusUploaded,
	}
	if err := s.meta.Put(ctx, doc); err != nil {
		_ = s.files.Remove(ctx, loc)
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}

	ctxlog.FromContext(ctx).Infow("File uploaded", "file_id", fileID, "filename", filename)
	return doc, nil
}

// Parse 按 file_id 查找文档并索引。
func (s *RAGService) Parse(ctx context.Context, fileID string) (*IngestResult, error) {
	doc, err := s.meta.Get(ctx, fileID)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, fileID)
	}
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Infow("Parsing file", "file_id", fileID, "location", doc.Location)
	return s.indexer.Ingest(ctx, doc)
}

// Query 执行 RAG 查询。
func (s *RAGService) Query(ctx context.Context, question string) (*Answer, error) {
	return s.retriever.Answer(ctx, question)
}

// Documents 返回已上传的文档。
func (s *RAGService) Documents(ctx context.Context) ([]*metadata.Document, error) {
	return s.meta.List(ctx)
}

// GetStats 获取知识库统计信息。
func (s *RAGService) GetStats(ctx context.Context) (map[string]any, error) {
	stats := map[string]any{
		"collection":   s.collection,
		"vector_store": s.store.Name(),
		"metrics":      s.metrics.Stats(),
	}

	if c, ok := s.store.(store.Counter); ok {
		n, err := c.Count(ctx, s.collection)
		if err != nil {
			ctxlog.FromContext(ctx).Warnw("Failed to count records", "collection", s.collection, "error", err.Error())
		} else {
			stats["records"] = n
		}
	}

	docs, err := s.meta.List(ctx)
	if err != nil {
		return nil, err
	}
	indexed := 0
	for _, d := range docs {
		if d.Status == metadata.StatusIndexed {
			indexed++
		}
	}
	stats["documents"] = map[string]any{
		"total":   len(docs),
		"indexed": indexed,
	}
	return stats, nil
}

var _ Service = (*RAGService)(nil)
