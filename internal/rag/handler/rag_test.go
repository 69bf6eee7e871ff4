package handler

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragpipe/internal/rag/biz"
	"github.com/kart-io/ragpipe/internal/rag/extract"
	"github.com/kart-io/ragpipe/internal/rag/metadata"
	"github.com/kart-io/ragpipe/internal/rag/metrics"
	apierrors "github.com/kart-io/ragpipe/pkg/utils/errors"
	"github.com/kart-io/ragpipe/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	uploadErr error
	parseErr  error
	queryErr  error
	answer    *biz.Answer
	block     bool

	uploadedName string
	uploadedBody string
}

func (f *fakeService) Upload(_ context.Context, filename string, r io.Reader) (*metadata.Document, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	body, _ := io.ReadAll(r)
	f.uploadedName = filename
	f.uploadedBody = string(body)
	return &metadata.Document{FileID: "f-1", Filename: filename, Status: metadata.StatusUploaded}, nil
}

func (f *fakeService) Parse(ctx context.Context, fileID string) (*biz.IngestResult, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return &biz.IngestResult{FileID: fileID, DocumentID: "d-1", ChunkCount: 3}, nil
}

func (f *fakeService) Query(ctx context.Context, question string) (*biz.Answer, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.answer != nil {
		return f.answer, nil
	}
	return &biz.Answer{Query: question, Response: biz.Answered("Rizal wrote Noli Me Tangere.")}, nil
}

func (f *fakeService) Documents(context.Context) ([]*metadata.Document, error) {
	return []*metadata.Document{{FileID: "f-1", Filename: "history.pdf"}}, nil
}

func (f *fakeService) GetStats(context.Context) (map[string]any, error) {
	return map[string]any{"collection": "philippine_history"}, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    stdjson.RawMessage `json:"data"`
}

func newEngine(svc biz.Service, opts ...Option) *gin.Engine {
	h := NewRAGHandler(svc, opts...)
	r := gin.New()
	g := r.Group("/RAG_pipeline")
	g.GET("/", h.Root)
	g.POST("/upload-file/", h.Upload)
	g.GET("/parse-file/:file_id", h.Parse)
	g.POST("/user-query", h.Query)
	g.GET("/documents", h.Documents)
	g.GET("/stats", h.Stats)
	g.GET("/metrics", h.Metrics)
	r.GET("/healthz", h.Healthz)
	return r
}

func do(t *testing.T, r http.Handler, req *http.Request) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func multipartRequest(t *testing.T, field, name, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/RAG_pipeline/upload-file/", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRoot(t *testing.T) {
	code, env := do(t, newEngine(&fakeService{}), httptest.NewRequest(http.MethodGet, "/RAG_pipeline/", nil))
	assert.Equal(t, http.StatusOK, code)

	var info RootInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, "Philippine History RAG Pipeline API", info.Message)
	assert.Contains(t, info.Endpoints, "upload")
}

func TestUpload(t *testing.T) {
	svc := &fakeService{}
	code, env := do(t, newEngine(svc), multipartRequest(t, "file", "history.pdf", "%PDF-1.4"))
	require.Equal(t, http.StatusOK, code)

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, UploadResponse{FileID: "f-1", FileName: "history.pdf"}, resp)
	assert.Equal(t, "%PDF-1.4", svc.uploadedBody)
}

func TestUploadErrors(t *testing.T) {
	t.Run("missing file field", func(t *testing.T) {
		code, env := do(t, newEngine(&fakeService{}), multipartRequest(t, "other", "a.pdf", "x"))
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, apierrors.ErrRAGInvalidRequest.Code, env.Code)
	})

	t.Run("unsupported type", func(t *testing.T) {
		svc := &fakeService{uploadErr: fmt.Errorf("%w: .exe", extract.ErrUnsupportedType)}
		code, env := do(t, newEngine(svc), multipartRequest(t, "file", "a.exe", "x"))
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, apierrors.ErrRAGInvalidRequest.Code, env.Code)
	})

	t.Run("storage failure", func(t *testing.T) {
		svc := &fakeService{uploadErr: errors.New("disk full")}
		code, env := do(t, newEngine(svc), multipartRequest(t, "file", "a.pdf", "x"))
		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Equal(t, apierrors.ErrRAGUploadFailed.Code, env.Code)
		assert.Contains(t, env.Message, "disk full")
	})
}

func TestParse(t *testing.T) {
	code, env := do(t, newEngine(&fakeService{}), httptest.NewRequest(http.MethodGet, "/RAG_pipeline/parse-file/f-1", nil))
	require.Equal(t, http.StatusOK, code)

	var resp ParseResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "f-1", resp.FileID)
	assert.Equal(t, "d-1", resp.DocumentID)
	assert.Equal(t, 3, resp.ChunkCount)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHTTP int
		wantCode int
	}{
		{"unknown file", biz.ErrDocumentNotFound, http.StatusNotFound, apierrors.ErrRAGFileNotFound.Code},
		{"empty content", &biz.StageError{Stage: biz.StageSegment, Kind: biz.KindSegmentation, Err: biz.ErrEmptyDocument}, http.StatusBadRequest, apierrors.ErrRAGEmptyContent.Code},
		{"store failure", &biz.StageError{Stage: biz.StageUpsert, Kind: biz.KindStoreWrite, Err: errors.New("refused")}, http.StatusInternalServerError, apierrors.ErrRAGIndexFailed.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{parseErr: tt.err}
			code, env := do(t, newEngine(svc), httptest.NewRequest(http.MethodGet, "/RAG_pipeline/parse-file/f-1", nil))
			assert.Equal(t, tt.wantHTTP, code)
			assert.Equal(t, tt.wantCode, env.Code)
		})
	}
}

func TestParseTimeout(t *testing.T) {
	r := newEngine(&fakeService{block: true}, WithTimeouts(0, 20*time.Millisecond))
	code, env := do(t, r, httptest.NewRequest(http.MethodGet, "/RAG_pipeline/parse-file/f-1", nil))
	assert.Equal(t, apierrors.ErrTimeout.HTTPStatus(), code)
	assert.Equal(t, apierrors.ErrTimeout.Code, env.Code)
}

func queryRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/RAG_pipeline/user-query", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestQuery(t *testing.T) {
	code, env := do(t, newEngine(&fakeService{}), queryRequest(`{"query":"Who wrote Noli Me Tangere?"}`))
	require.Equal(t, http.StatusOK, code)

	var resp QueryResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "Who wrote Noli Me Tangere?", resp.Query)
	assert.Equal(t, biz.Answered("Rizal wrote Noli Me Tangere."), resp.Response)
}

func TestQueryNoAnswerRendersNull(t *testing.T) {
	svc := &fakeService{answer: &biz.Answer{Query: "q", Response: biz.NoAnswer}}
	code, env := do(t, newEngine(svc), queryRequest(`{"query":"q"}`))
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"query":"q","response":null}`, string(env.Data))
}

func TestQueryErrors(t *testing.T) {
	t.Run("missing query", func(t *testing.T) {
		code, env := do(t, newEngine(&fakeService{}), queryRequest(`{}`))
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, apierrors.ErrRAGInvalidRequest.Code, env.Code)
	})

	t.Run("retrieval failure", func(t *testing.T) {
		svc := &fakeService{queryErr: &biz.StageError{Stage: biz.StageFetchRecords, Kind: biz.KindStoreRead, Err: errors.New("down")}}
		code, env := do(t, newEngine(svc), queryRequest(`{"query":"q"}`))
		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Equal(t, apierrors.ErrRAGQueryFailed.Code, env.Code)
		assert.Contains(t, env.Message, "down")
	})

	t.Run("timeout", func(t *testing.T) {
		r := newEngine(&fakeService{block: true}, WithTimeouts(20*time.Millisecond, 0))
		code, env := do(t, r, queryRequest(`{"query":"q"}`))
		assert.Equal(t, http.StatusGatewayTimeout, code)
		assert.Equal(t, apierrors.ErrRAGQueryTimeout.Code, env.Code)
	})
}

func TestDocumentsAndStats(t *testing.T) {
	r := newEngine(&fakeService{})

	code, env := do(t, r, httptest.NewRequest(http.MethodGet, "/RAG_pipeline/documents", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "history.pdf")

	code, env = do(t, r, httptest.NewRequest(http.MethodGet, "/RAG_pipeline/stats", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "philippine_history")
}

func TestMetricsAndHealthz(t *testing.T) {
	m := metrics.NewRAGMetrics()
	m.RecordQuery(false, nil)
	r := newEngine(&fakeService{}, WithMetrics(m))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/RAG_pipeline/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ragpipe_rag_")

	code, _ := do(t, r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, code)
}
