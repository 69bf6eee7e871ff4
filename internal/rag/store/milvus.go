package store

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/ragpipe/pkg/component/milvus"
)

// MilvusStore 实现基于 Milvus 的向量存储。
type MilvusStore struct {
	client *milvus.Client
}

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{client: client}
}

// Name 返回实现名称。
func (s *MilvusStore) Name() string {
	return "milvus"
}

// EnsureCollection 创建 Milvus 集合并建立 IVF_FLAT 索引。
func (s *MilvusStore) EnsureCollection(ctx context.Context, name string, dimension int, metric Metric) error {
	mt, err := milvusMetric(metric)
	if err != nil {
		return err
	}
	return s.client.EnsureCollection(ctx, name, dimension, mt)
}

// Upsert 写入一条记录。
func (s *MilvusStore) Upsert(ctx context.Context, collection string, record *Record) error {
	err := s.client.Upsert(ctx, collection, []milvus.Row{{
		ID:         record.ID,
		Embedding:  record.Vector,
		DocumentID: record.Payload.DocumentID,
		FileID:     record.Payload.FileID,
		Text:       record.Payload.Text,
	}})
	if err != nil {
		return fmt.Errorf("failed to upsert into milvus: %w", err)
	}
	return nil
}

// Flush 在一个文档的全部分块写入后调用一次。
func (s *MilvusStore) Flush(ctx context.Context, collection string) error {
	if err := s.client.Flush(ctx, collection); err != nil {
		return fmt.Errorf("failed to flush milvus: %w", err)
	}
	return nil
}

// FetchAll 读取集合中最多 limit 条记录。
func (s *MilvusStore) FetchAll(ctx context.Context, collection string, limit int) ([]*Record, error) {
	rows, err := s.client.QueryAll(ctx, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query milvus: %w", err)
	}

	records := make([]*Record, len(rows))
	for i, r := range rows {
		records[i] = &Record{
			ID:     r.ID,
			Vector: r.Embedding,
			Payload: Payload{
				DocumentID: r.DocumentID,
				Text:       r.Text,
				FileID:     r.FileID,
			},
		}
	}
	return records, nil
}

// Count 获取集合统计信息。
func (s *MilvusStore) Count(ctx context.Context, collection string) (int64, error) {
	return s.client.GetCollectionStats(ctx, collection)
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func milvusMetric(m Metric) (entity.MetricType, error) {
	switch m {
	case MetricL2, "":
		return entity.L2, nil
	default:
		return "", fmt.Errorf("unsupported metric %q", m)
	}
}

var (
	_ VectorStore = (*MilvusStore)(nil)
	_ Counter     = (*MilvusStore)(nil)
)
