// Package metrics 提供 RAG 服务的进程内业务指标。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// RAGMetrics RAG 服务业务指标。
type RAGMetrics struct {
	// 查询指标
	queriesTotal    atomic.Uint64
	queriesErrors   atomic.Uint64
	queriesNoAnswer atomic.Uint64

	// 检索指标
	retrievalTotal  atomic.Uint64
	retrievalErrors atomic.Uint64
	recordsScanned  atomic.Uint64
	lastScanRecords atomic.Int64

	// 嵌入调用
	embeddingCalls  atomic.Uint64
	embeddingErrors atomic.Uint64

	// 生成调用
	generationCalls  atomic.Uint64
	generationErrors atomic.Uint64

	// 索引指标
	documentsIndexed atomic.Uint64
	chunksIndexed    atomic.Uint64
	indexErrors      atomic.Uint64

	durationMu         sync.Mutex
	retrievalDuration  float64
	generationDuration float64
	startTime          time.Time
}

// NewRAGMetrics 创建指标实例。
func NewRAGMetrics() *RAGMetrics {
	return &RAGMetrics{startTime: time.Now()}
}

var (
	defaultMetrics     *RAGMetrics
	defaultMetricsOnce sync.Once
)

// Default 返回进程级指标实例。
func Default() *RAGMetrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewRAGMetrics()
	})
	return defaultMetrics
}

// RecordQuery 记录一次查询。noAnswer 表示生成阶段没有给出回答。
func (m *RAGMetrics) RecordQuery(noAnswer bool, err error) {
	m.queriesTotal.Add(1)
	if err != nil {
		m.queriesErrors.Add(1)
		return
	}
	if noAnswer {
		m.queriesNoAnswer.Add(1)
	}
}

// RecordRetrieval 记录一次检索及本次扫描的记录数。
func (m *RAGMetrics) RecordRetrieval(duration time.Duration, scanned int, err error) {
	m.retrievalTotal.Add(1)
	if err != nil {
		m.retrievalErrors.Add(1)
		return
	}
	m.recordsScanned.Add(uint64(scanned))
	m.lastScanRecords.Store(int64(scanned))

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordEmbedding 记录嵌入调用。
func (m *RAGMetrics) RecordEmbedding(calls int, err error) {
	m.embeddingCalls.Add(uint64(calls))
	if err != nil {
		m.embeddingErrors.Add(1)
	}
}

// RecordGeneration 记录一次生成调用。
func (m *RAGMetrics) RecordGeneration(duration time.Duration, err error) {
	m.generationCalls.Add(1)
	if err != nil {
		m.generationErrors.Add(1)
		return
	}

	m.durationMu.Lock()
	m.generationDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordIndexing 记录一次文档索引。
func (m *RAGMetrics) RecordIndexing(chunks int, err error) {
	if err != nil {
		m.indexErrors.Add(1)
		return
	}
	m.documentsIndexed.Add(1)
	m.chunksIndexed.Add(uint64(chunks))
}

type sample struct {
	name  string
	help  string
	kind  string
	value string
}

func (m *RAGMetrics) samples() []sample {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	generationDuration := m.generationDuration
	m.durationMu.Unlock()

	u := func(v uint64) string { return fmt.Sprintf("%d", v) }
	f := func(v float64) string { return fmt.Sprintf("%.6f", v) }

	return []sample{
		{"queries_total", "Total number of RAG queries.", "counter", u(m.queriesTotal.Load())},
		{"queries_errors_total", "Number of failed queries.", "counter", u(m.queriesErrors.Load())},
		{"queries_no_answer_total", "Number of queries answered with no answer.", "counter", u(m.queriesNoAnswer.Load())},
		{"retrieval_total", "Total number of retrievals.", "counter", u(m.retrievalTotal.Load())},
		{"retrieval_errors_total", "Number of retrieval errors.", "counter", u(m.retrievalErrors.Load())},
		{"retrieval_duration_seconds_total", "Total retrieval duration.", "counter", f(retrievalDuration)},
		{"records_scanned_total", "Total vector records scanned by searches.", "counter", u(m.recordsScanned.Load())},
		{"records_last_scan", "Records scanned by the latest search.", "gauge", fmt.Sprintf("%d", m.lastScanRecords.Load())},
		{"embedding_calls_total", "Total embedding calls.", "counter", u(m.embeddingCalls.Load())},
		{"embedding_errors_total", "Number of failed embedding stages.", "counter", u(m.embeddingErrors.Load())},
		{"generation_calls_total", "Total generation calls.", "counter", u(m.generationCalls.Load())},
		{"generation_errors_total", "Number of failed generation calls.", "counter", u(m.generationErrors.Load())},
		{"generation_duration_seconds_total", "Total generation duration.", "counter", f(generationDuration)},
		{"documents_indexed_total", "Total documents indexed.", "counter", u(m.documentsIndexed.Load())},
		{"chunks_indexed_total", "Total chunks indexed.", "counter", u(m.chunksIndexed.Load())},
		{"index_errors_total", "Number of indexing errors.", "counter", u(m.indexErrors.Load())},
		{"uptime_seconds", "Service uptime in seconds.", "gauge", fmt.Sprintf("%.2f", m.uptime().Seconds())},
	}
}

// Export 导出 Prometheus 文本格式指标。
func (m *RAGMetrics) Export(namespace, subsystem string) string {
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	var sb strings.Builder
	for _, s := range m.samples() {
		name := prefix + "_" + s.name
		fmt.Fprintf(&sb, "# HELP %s %s\n", name, s.help)
		fmt.Fprintf(&sb, "# TYPE %s %s\n", name, s.kind)
		fmt.Fprintf(&sb, "%s %s\n\n", name, s.value)
	}
	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *RAGMetrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	generationDuration := m.generationDuration
	m.durationMu.Unlock()

	retrievalTotal := m.retrievalTotal.Load()
	avgRetrieval := 0.0
	if ok := retrievalTotal - m.retrievalErrors.Load(); ok > 0 {
		avgRetrieval = retrievalDuration / float64(ok)
	}
	generationTotal := m.generationCalls.Load()
	avgGeneration := 0.0
	if ok := generationTotal - m.generationErrors.Load(); ok > 0 {
		avgGeneration = generationDuration / float64(ok)
	}

	return map[string]interface{}{
		"queries": map[string]interface{}{
			"total":     m.queriesTotal.Load(),
			"errors":    m.queriesErrors.Load(),
			"no_answer": m.queriesNoAnswer.Load(),
		},
		"retrieval": map[string]interface{}{
			"total":             retrievalTotal,
			"errors":            m.retrievalErrors.Load(),
			"avg_duration_secs": avgRetrieval,
			"records_scanned":   m.recordsScanned.Load(),
			"last_scan_records": m.lastScanRecords.Load(),
		},
		"embedding": map[string]interface{}{
			"calls":  m.embeddingCalls.Load(),
			"errors": m.embeddingErrors.Load(),
		},
		"generation": map[string]interface{}{
			"calls":             generationTotal,
			"errors":            m.generationErrors.Load(),
			"avg_duration_secs": avgGeneration,
		},
		"indexing": map[string]interface{}{
			"documents_indexed": m.documentsIndexed.Load(),
			"chunks_indexed":    m.chunksIndexed.Load(),
			"errors":            m.indexErrors.Load(),
		},
		"uptime_seconds": m.uptime().Seconds(),
	}
}

func (m *RAGMetrics) uptime() time.Duration {
	m.durationMu.Lock()
	defer m.durationMu.Unlock()
	return time.Since(m.startTime)
}
