package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ragpipe/pkg/utils/json"
)

// fakeQdrant 模拟 Qdrant REST 接口的最小子集。
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string]map[string]interface{}
	points      map[string][]qdrantPoint
	apiKeys     []string
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{
		collections: make(map[string]map[string]interface{}),
		points:      make(map[string][]qdrantPoint),
	}
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	body, _ := io.ReadAll(r.Body)
	var req map[string]interface{}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &req)
	}

	var name, action string
	_, _ = fmt.Sscanf(r.URL.Path, "/collections/%s", &name)
	for i, ch := range name {
		if ch == '/' {
			action = name[i+1:]
			name = name[:i]
			break
		}
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		if _, ok := f.collections[name]; !ok {
			http.Error(w, `{"status":{"error":"not found"}}`, http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"result":{"status":"green"}}`))
	case action == "" && r.Method == http.MethodPut:
		f.collections[name] = req
		_, _ = w.Write([]byte(`{"result":true}`))
	case action == "points" && r.Method == http.MethodPut:
		var up struct {
			Points []qdrantPoint `json:"points"`
		}
		_ = json.Unmarshal(body, &up)
		f.points[name] = append(f.points[name], up.Points...)
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	case action == "points/scroll":
		var sc struct {
			Limit  int  `json:"limit"`
			Offset *int `json:"offset"`
		}
		_ = json.Unmarshal(body, &sc)
		start := 0
		if sc.Offset != nil {
			start = *sc.Offset
		}
		pts := f.points[name]
		end := start + sc.Limit
		if end > len(pts) {
			end = len(pts)
		}
		var resp qdrantScrollResponse
		resp.Result.Points = pts[start:end]
		if end < len(pts) {
			resp.Result.NextPageOffset = end
		}
		b, _ := json.Marshal(resp)
		_, _ = w.Write(b)
	case action == "points/count":
		_, _ = fmt.Fprintf(w, `{"result":{"count":%d}}`, len(f.points[name]))
	default:
		http.NotFound(w, r)
	}
}

func TestQdrantStore(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s, err := NewQdrantStore(QdrantConfig{URL: srv.URL + "/", APIKey: "secret"})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.EnsureCollection(ctx, "history", 2, MetricL2))
	vectors := fake.collections["history"]["vectors"].(map[string]interface{})
	assert.Equal(t, "Euclid", vectors["distance"])
	assert.EqualValues(t, 2, vectors["size"])

	// 已存在的集合不会被重新创建
	fake.collections["history"]["marker"] = true
	require.NoError(t, s.EnsureCollection(ctx, "history", 2, MetricL2))
	assert.Equal(t, true, fake.collections["history"]["marker"])

	for i := 0; i < 300; i++ {
		require.NoError(t, s.Upsert(ctx, "history", &Record{
			ID:      fmt.Sprintf("id-%d", i),
			Vector:  []float32{float32(i), 0},
			Payload: Payload{DocumentID: "doc", Text: fmt.Sprintf("t%d", i), FileID: "file"},
		}))
	}

	all, err := s.FetchAll(ctx, "history", 0)
	require.NoError(t, err)
	require.Len(t, all, 300)
	assert.Equal(t, "t0", all[0].Payload.Text)
	assert.Equal(t, "t299", all[299].Payload.Text)
	assert.Equal(t, []float32{299, 0}, all[299].Vector)

	limited, err := s.FetchAll(ctx, "history", 10)
	require.NoError(t, err)
	assert.Len(t, limited, 10)

	n, err := s.Count(ctx, "history")
	require.NoError(t, err)
	assert.EqualValues(t, 300, n)

	for _, k := range fake.apiKeys {
		assert.Equal(t, "secret", k)
	}
}

func TestQdrantStoreRejectsUnknownMetric(t *testing.T) {
	s, err := NewQdrantStore(QdrantConfig{URL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	assert.Error(t, s.EnsureCollection(context.Background(), "c", 2, Metric("cosine")))
}

func TestNewQdrantStoreRequiresURL(t *testing.T) {
	_, err := NewQdrantStore(QdrantConfig{})
	assert.Error(t, err)
}
