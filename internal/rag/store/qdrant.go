package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kart-io/ragpipe/pkg/utils/httpclient"
)

// qdrantScrollPage 是单次 scroll 请求的最大条数。
const qdrantScrollPage = 256

// QdrantConfig 是 Qdrant REST 连接配置。
type QdrantConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// QdrantStore 通过 REST 接口访问 Qdrant。
type QdrantStore struct {
	baseURL string
	header  http.Header
	client  *httpclient.Client
}

// NewQdrantStore 创建 Qdrant 存储实例。
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("api-key", cfg.APIKey)
	}

	return &QdrantStore{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		header:  header,
		client:  httpclient.NewClient(cfg.Timeout, 0),
	}, nil
}

// Name 返回实现名称。
func (s *QdrantStore) Name() string {
	return "qdrant"
}

type qdrantPoint struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector,omitempty"`
	Payload Payload   `json:"payload"`
}

type qdrantScrollResponse struct {
	Result struct {
		Points         []qdrantPoint `json:"points"`
		NextPageOffset interface{}   `json:"next_page_offset"`
	} `json:"result"`
}

type qdrantCountResponse struct {
	Result struct {
		Count int64 `json:"count"`
	} `json:"result"`
}

// EnsureCollection 在集合不存在时创建。
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, dimension int, metric Metric) error {
	distance, err := qdrantDistance(metric)
	if err != nil {
		return err
	}

	err = s.client.PostJSON(ctx, http.MethodGet, s.collectionURL(name), s.header, nil, nil)
	if err == nil {
		return nil
	}
	var se *httpclient.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to get qdrant collection: %w", err)
	}

	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     dimension,
			"distance": distance,
		},
	}
	if err := s.client.PostJSON(ctx, http.MethodPut, s.collectionURL(name), s.header, body, nil); err != nil {
		return fmt.Errorf("failed to create qdrant collection: %w", err)
	}
	return nil
}

// Upsert 写入一条记录并等待持久化。
func (s *QdrantStore) Upsert(ctx context.Context, collection string, record *Record) error {
	body := map[string]interface{}{
		"points": []qdrantPoint{{
			ID:      record.ID,
			Vector:  record.Vector,
			Payload: record.Payload,
		}},
	}
	u := s.collectionURL(collection) + "/points?wait=true"
	if err := s.client.PostJSON(ctx, http.MethodPut, u, s.header, body, nil); err != nil {
		return fmt.Errorf("failed to upsert into qdrant: %w", err)
	}
	return nil
}

// FetchAll 分页 scroll 集合，最多返回 limit 条记录。
func (s *QdrantStore) FetchAll(ctx context.Context, collection string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultFetchLimit
	}

	var (
		records []*Record
		offset  interface{}
	)
	u := s.collectionURL(collection) + "/points/scroll"
	for len(records) < limit {
		page := limit - len(records)
		if page > qdrantScrollPage {
			page = qdrantScrollPage
		}
		body := map[string]interface{}{
			"limit":        page,
			"with_payload": true,
			"with_vector":  true,
		}
		if offset != nil {
			body["offset"] = offset
		}

		var resp qdrantScrollResponse
		if err := s.client.PostJSON(ctx, http.MethodPost, u, s.header, body, &resp); err != nil {
			return nil, fmt.Errorf("failed to scroll qdrant: %w", err)
		}
		for _, p := range resp.Result.Points {
			records = append(records, &Record{ID: p.ID, Vector: p.Vector, Payload: p.Payload})
		}
		if resp.Result.NextPageOffset == nil || len(resp.Result.Points) == 0 {
			break
		}
		offset = resp.Result.NextPageOffset
	}

	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Count 返回集合中的精确记录数。
func (s *QdrantStore) Count(ctx context.Context, collection string) (int64, error) {
	var resp qdrantCountResponse
	u := s.collectionURL(collection) + "/points/count"
	if err := s.client.PostJSON(ctx, http.MethodPost, u, s.header, map[string]bool{"exact": true}, &resp); err != nil {
		return 0, fmt.Errorf("failed to count qdrant points: %w", err)
	}
	return resp.Result.Count, nil
}

// Close 无长连接需要释放。
func (s *QdrantStore) Close(context.Context) error {
	return nil
}

func (s *QdrantStore) collectionURL(name string) string {
	return s.baseURL + "/collections/" + url.PathEscape(name)
}

func qdrantDistance(m Metric) (string, error) {
	switch m {
	case MetricL2, "":
		return "Euclid", nil
	default:
		return "", fmt.Errorf("unsupported metric %q", m)
	}
}

var (
	_ VectorStore = (*QdrantStore)(nil)
	_ Counter     = (*QdrantStore)(nil)
)
