// Package index 实现查询期构建的精确 L2 相似度索引。
package index

import (
	"errors"
	"sort"

	"github.com/kart-io/ragpipe/internal/rag/store"
)

var (
	// ErrEmptyIndex 索引中没有可检索的向量。
	ErrEmptyIndex = errors.New("index is empty")
	// ErrDimensionMismatch 查询向量维度与索引不一致。
	ErrDimensionMismatch = errors.New("query dimension mismatch")
	// ErrInvalidK k 必须为正数。
	ErrInvalidK = errors.New("k must be positive")
)

// Result 是一条检索结果。Rank 从 1 开始，Distance 为平方 L2 距离。
type Result struct {
	Rank     int
	Distance float32
	Record   *store.Record
}

// Flat 是暴力检索索引，每次查询时从存储记录重新构建。
type Flat struct {
	dim     int
	records []*store.Record
}

// Build 以第一条非空向量的维度为准构建索引，维度不一致的记录被跳过。
func Build(records []*store.Record) (*Flat, error) {
	f := &Flat{}
	for _, r := range records {
		if r == nil || len(r.Vector) == 0 {
			continue
		}
		if f.dim == 0 {
			f.dim = len(r.Vector)
		}
		if len(r.Vector) != f.dim {
			continue
		}
		f.records = append(f.records, r)
	}
	if len(f.records) == 0 {
		return nil, ErrEmptyIndex
	}
	return f, nil
}

// Len 返回索引中的向量数。
func (f *Flat) Len() int {
	return len(f.records)
}

// Dim 返回索引维度。
func (f *Flat) Dim() int {
	return f.dim
}

// Search 返回距离最近的 min(k, Len) 条结果，按距离升序；距离相同时保持插入顺序。
func (f *Flat) Search(query []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(query) != f.dim {
		return nil, ErrDimensionMismatch
	}

	results := make([]Result, len(f.records))
	for i, r := range f.records {
		results[i] = Result{Distance: squaredL2(query, r.Vector), Record: r}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if k < len(results) {
		results = results[:k]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
