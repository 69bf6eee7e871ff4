package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kart-io/ragpipe/pkg/utils/json"
)

const redisDocumentField = "document"

// RedisStore 每个文档一个 hash，另用一个 set 记录全部 file_id。
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRedisStore 创建 Redis 元数据存储。
func NewRedisStore(rdb redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

// Put 写入文档并登记 file_id。
func (s *RedisStore) Put(ctx context.Context, doc *Document) error {
	stamp(doc, s.now())
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key(doc.FileID),
			redisDocumentField, b,
			"status", string(doc.Status),
			"updated_at", doc.UpdatedAt.Unix(),
		)
		pipe.SAdd(ctx, s.indexKey(), doc.FileID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", doc.FileID, err)
	}
	return nil
}

// Get 读取文档。
func (s *RedisStore) Get(ctx context.Context, fileID string) (*Document, error) {
	b, err := s.rdb.HGet(ctx, s.key(fileID), redisDocumentField).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", fileID, err)
	}

	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", fileID, err)
	}
	return &doc, nil
}

// List 返回全部文档，按创建时间排序。
func (s *RedisStore) List(ctx context.Context) ([]*Document, error) {
	ids, err := s.rdb.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	cmds := make([]*redis.StringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGet(ctx, s.key(id), redisDocumentField)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	docs := make([]*Document, 0, len(ids))
	for _, cmd := range cmds {
		b, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var doc Document
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].FileID < docs[j].FileID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

// Close 连接由 redis 组件管理，这里不关闭。
func (s *RedisStore) Close() error {
	return nil
}

func (s *RedisStore) key(fileID string) string {
	return s.prefix + fileID
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "ids"
}

var _ Store = (*RedisStore)(nil)
