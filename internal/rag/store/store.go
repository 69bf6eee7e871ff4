// Package store 定义向量存储契约及其 Milvus、Qdrant 和内存实现。
package store

import (
	"context"
)

// DefaultFetchLimit 是单次查询读取记录数的默认上限。
const DefaultFetchLimit = 10000

// Metric 是集合声明的距离度量。
type Metric string

// MetricL2 欧氏距离，与相似度索引的检索度量一致。
const MetricL2 Metric = "L2"

// Payload 是附加在向量上的元数据。
type Payload struct {
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
	FileID     string `json:"file_id"`
}

// Record 是一条向量记录。ID 在写入时生成，记录从不更新或删除。
type Record struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// VectorStore 定义向量存储接口。
type VectorStore interface {
	// EnsureCollection 在集合不存在时创建；已存在的集合不做校验。
	EnsureCollection(ctx context.Context, name string, dimension int, metric Metric) error

	// Upsert 按记录 ID 插入或替换一条记录。
	Upsert(ctx context.Context, collection string, record *Record) error

	// FetchAll 最多返回 limit 条记录，截断不视为错误。
	FetchAll(ctx context.Context, collection string, limit int) ([]*Record, error)

	// Name 返回实现名称。
	Name() string

	// Close 关闭连接。
	Close(ctx context.Context) error
}

// Flusher 是可选能力：一批写入结束后持久化集合。
type Flusher interface {
	Flush(ctx context.Context, collection string) error
}

// Counter 是可选能力：返回集合中的记录数，用于统计接口。
type Counter interface {
	Count(ctx context.Context, collection string) (int64, error)
}
