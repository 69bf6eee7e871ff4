package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore 是进程内的向量存储，按写入顺序返回记录。
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dimension int
	metric    Metric
	order     []string
	records   map[string]*Record
}

// NewMemoryStore 创建内存存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

// Name 返回实现名称。
func (s *MemoryStore) Name() string {
	return "memory"
}

// EnsureCollection 创建集合，已存在时直接返回。
func (s *MemoryStore) EnsureCollection(_ context.Context, name string, dimension int, metric Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; ok {
		return nil
	}
	s.collections[name] = &memCollection{
		dimension: dimension,
		metric:    metric,
		records:   make(map[string]*Record),
	}
	return nil
}

// Upsert 写入记录副本。
func (s *MemoryStore) Upsert(_ context.Context, collection string, record *Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("memory store: record id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("memory store: collection %q not found", collection)
	}
	if _, exists := c.records[record.ID]; !exists {
		c.order = append(c.order, record.ID)
	}
	c.records[record.ID] = cloneRecord(record)
	return nil
}

// FetchAll 按写入顺序返回最多 limit 条记录。
func (s *MemoryStore) FetchAll(_ context.Context, collection string, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("memory store: collection %q not found", collection)
	}

	n := len(c.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Record, 0, n)
	for _, id := range c.order[:n] {
		out = append(out, cloneRecord(c.records[id]))
	}
	return out, nil
}

// Count 返回集合记录数。
func (s *MemoryStore) Count(_ context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return 0, nil
	}
	return int64(len(c.records)), nil
}

// Close 无需释放资源。
func (s *MemoryStore) Close(context.Context) error {
	return nil
}

func cloneRecord(r *Record) *Record {
	vec := make([]float32, len(r.Vector))
	copy(vec, r.Vector)
	return &Record{ID: r.ID, Vector: vec, Payload: r.Payload}
}

var (
	_ VectorStore = (*MemoryStore)(nil)
	_ Counter     = (*MemoryStore)(nil)
)
