package metrics

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordAndStats(t *testing.T) {
	m := NewRAGMetrics()
	boom := errors.New("boom")

	m.RecordQuery(false, nil)
	m.RecordQuery(true, nil)
	m.RecordQuery(false, boom)
	m.RecordRetrieval(100*time.Millisecond, 3, nil)
	m.RecordRetrieval(0, 0, boom)
	m.RecordEmbedding(4, nil)
	m.RecordEmbedding(1, boom)
	m.RecordGeneration(time.Second, nil)
	m.RecordGeneration(0, boom)
	m.RecordIndexing(12, nil)
	m.RecordIndexing(0, boom)

	s := m.Stats()
	q := s["queries"].(map[string]interface{})
	assert.EqualValues(t, 3, q["total"])
	assert.EqualValues(t, 1, q["errors"])
	assert.EqualValues(t, 1, q["no_answer"])

	r := s["retrieval"].(map[string]interface{})
	assert.EqualValues(t, 2, r["total"])
	assert.EqualValues(t, 3, r["last_scan_records"])
	assert.InDelta(t, 0.1, r["avg_duration_secs"], 1e-9)

	e := s["embedding"].(map[string]interface{})
	assert.EqualValues(t, 5, e["calls"])
	assert.EqualValues(t, 1, e["errors"])

	g := s["generation"].(map[string]interface{})
	assert.EqualValues(t, 2, g["calls"])
	assert.InDelta(t, 1.0, g["avg_duration_secs"], 1e-9)

	i := s["indexing"].(map[string]interface{})
	assert.EqualValues(t, 1, i["documents_indexed"])
	assert.EqualValues(t, 12, i["chunks_indexed"])
	assert.EqualValues(t, 1, i["errors"])
}

func TestExport(t *testing.T) {
	m := NewRAGMetrics()
	m.RecordQuery(false, nil)

	out := m.Export("ragpipe", "rag")
	assert.Contains(t, out, "# TYPE ragpipe_rag_queries_total counter\n")
	assert.Contains(t, out, "ragpipe_rag_queries_total 1\n")
	assert.Contains(t, out, "ragpipe_rag_uptime_seconds ")

	out = m.Export("ragpipe", "")
	assert.True(t, strings.Contains(out, "ragpipe_queries_total 1\n"))
}

func TestConcurrentRecording(t *testing.T) {
	m := NewRAGMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordQuery(false, nil)
			m.RecordRetrieval(time.Millisecond, 1, nil)
		}()
	}
	wg.Wait()

	s := m.Stats()
	assert.EqualValues(t, 50, s["queries"].(map[string]interface{})["total"])
	assert.EqualValues(t, 50, s["retrieval"].(map[string]interface{})["records_scanned"])
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
