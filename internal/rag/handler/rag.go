// Package handler provides HTTP handlers for RAG service.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/ragpipe/internal/pkg/httputils"
	"github.com/kart-io/ragpipe/internal/rag/biz"
	"github.com/kart-io/ragpipe/internal/rag/extract"
	"github.com/kart-io/ragpipe/internal/rag/metrics"
	"github.com/kart-io/ragpipe/pkg/infra/app"
	apierrors "github.com/kart-io/ragpipe/pkg/utils/errors"
)

// Default request timeouts.
const (
	DefaultQueryTimeout = 60 * time.Second
	DefaultParseTimeout = 10 * time.Minute
)

// RAGHandler handles RAG HTTP requests.
type RAGHandler struct {
	service      biz.Service
	metrics      *metrics.RAGMetrics
	queryTimeout time.Duration
	parseTimeout time.Duration
}

// Option configures a RAGHandler.
type Option func(*RAGHandler)

// WithTimeouts overrides the query and parse timeouts.
func WithTimeouts(query, parse time.Duration) Option {
	return func(h *RAGHandler) {
		if query > 0 {
			h.queryTimeout = query
		}
		if parse > 0 {
			h.parseTimeout = parse
		}
	}
}

// WithMetrics sets the metrics exported by the Metrics handler.
func WithMetrics(m *metrics.RAGMetrics) Option {
	return func(h *RAGHandler) {
		h.metrics = m
	}
}

// NewRAGHandler creates a new RAGHandler.
func NewRAGHandler(service biz.Service, opts ...Option) *RAGHandler {
	h := &RAGHandler{
		service:      service,
		metrics:      metrics.Default(),
		queryTimeout: DefaultQueryTimeout,
		parseTimeout: DefaultParseTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RootInfo describes the service.
type RootInfo struct {
	Message     string            `json:"message"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Endpoints   map[string]string `json:"endpoints"`
	Features    []string          `json:"features"`
}

// Root returns service information.
func (h *RAGHandler) Root(c *gin.Context) {
	httputils.WriteResponse(c, nil, RootInfo{
		Message:     "Philippine History RAG Pipeline API",
		Version:     app.GetVersion(),
		Description: "Upload PDFs and query their content with retrieval augmented generation",
		Endpoints: map[string]string{
			"upload":    "POST /RAG_pipeline/upload-file/ - Upload a PDF file",
			"parse":     "GET /RAG_pipeline/parse-file/{file_id} - Parse and index an uploaded file",
			"query":     "POST /RAG_pipeline/user-query - Query the indexed documents",
			"documents": "GET /RAG_pipeline/documents - List uploaded documents",
			"stats":     "GET /RAG_pipeline/stats - Knowledge base statistics",
		},
		Features: []string{
			"PDF text extraction and chunking",
			"Exact L2 similarity search",
			"OpenAI compatible embedding and chat",
		},
	})
}

// UploadResponse is returned by Upload.
type UploadResponse struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
}

// Upload stores a multipart file under a new file id.
func (h *RAGHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		httputils.WriteResponse(c, apierrors.ErrRAGInvalidRequest.WithMessage("multipart field 'file' is required").WithCause(err), nil)
		return
	}

	f, err := fh.Open()
	if err != nil {
		httputils.WriteResponse(c, apierrors.ErrRAGUploadFailed.WithCause(err), nil)
		return
	}
	defer func() { _ = f.Close() }()

	doc, err := h.service.Upload(c.Request.Context(), fh.Filename, f)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedType) {
			httputils.WriteResponse(c, apierrors.ErrRAGInvalidRequest.WithMessage(err.Error()).WithCause(err), nil)
			return
		}
		logger.Errorw("Upload failed", "filename", fh.Filename, "error", err.Error())
		httputils.WriteResponse(c, apierrors.ErrRAGUploadFailed.WithMessage(err.Error()).WithCause(err), nil)
		return
	}

	httputils.WriteResponse(c, nil, UploadResponse{FileID: doc.FileID, FileName: doc.Filename})
}

// ParseResponse is returned by Parse.
type ParseResponse struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	FileID     string `json:"file_id"`
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
}

// Parse extracts, segments, embeds and stores an uploaded file.
func (h *RAGHandler) Parse(c *gin.Context) {
	fileID := c.Param("file_id")
	if fileID == "" {
		httputils.WriteResponse(c, apierrors.ErrRAGInvalidRequest.WithMessage("file_id is required"), nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.parseTimeout)
	defer cancel()

	res, err := h.service.Parse(ctx, fileID)
	if err != nil {
		httputils.WriteResponse(c, parseError(ctx, err), nil)
		return
	}

	httputils.WriteResponse(c, nil, ParseResponse{
		StatusCode: http.StatusOK,
		Message:    "Parsing completed and data saved in the vector store!",
		FileID:     res.FileID,
		DocumentID: res.DocumentID,
		ChunkCount: res.ChunkCount,
	})
}

func parseError(ctx context.Context, err error) *apierrors.Errno {
	switch {
	case errors.Is(err, biz.ErrDocumentNotFound):
		return apierrors.ErrRAGFileNotFound.WithMessage(err.Error()).WithCause(err)
	case errors.Is(err, biz.ErrSegmentation):
		return apierrors.ErrRAGEmptyContent.WithMessage("Parsed content is empty.").WithCause(err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apierrors.ErrTimeout.WithMessage("Parsing timeout").WithCause(err)
	default:
		return apierrors.ErrRAGIndexFailed.WithMessagef("Parsing failed: %v", err).WithCause(err)
	}
}

// QueryRequest represents a query request.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// QueryResponse carries the answer; Response is null when no answer was generated.
type QueryResponse struct {
	Query    string       `json:"query"`
	Response biz.Response `json:"response"`
}

// Query performs a RAG query.
func (h *RAGHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, apierrors.ErrRAGInvalidRequest.WithMessage(err.Error()).WithCause(err), nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.queryTimeout)
	defer cancel()

	answer, err := h.service.Query(ctx, req.Query)
	if err != nil {
		// 检查是否超时
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			httputils.WriteResponse(c, apierrors.ErrRAGQueryTimeout.WithCause(err), nil)
			return
		}
		httputils.WriteResponse(c, apierrors.ErrRAGQueryFailed.WithMessagef("Query processing failed: %v", err).WithCause(err), nil)
		return
	}

	httputils.WriteResponse(c, nil, QueryResponse{Query: req.Query, Response: answer.Response})
}

// Documents lists uploaded documents.
func (h *RAGHandler) Documents(c *gin.Context) {
	docs, err := h.service.Documents(c.Request.Context())
	httputils.WriteResponse(c, err, docs)
}

// Stats returns knowledge base statistics.
func (h *RAGHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	httputils.WriteResponse(c, err, stats)
}

// Metrics 以 Prometheus 文本格式导出计数器。
func (h *RAGHandler) Metrics(c *gin.Context) {
	c.String(http.StatusOK, h.metrics.Export("ragpipe", "rag"))
}

// Healthz reports liveness.
func (h *RAGHandler) Healthz(c *gin.Context) {
	httputils.WriteResponse(c, nil, gin.H{"status": "ok"})
}
