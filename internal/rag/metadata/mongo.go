package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore 每个文档一条记录，_id 即 file_id。
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoStore 创建 MongoDB 元数据存储，并确保 created_at 索引存在。
func NewMongoStore(ctx context.Context, db *mongo.Database, collection string) (*MongoStore, error) {
	coll := db.Collection(collection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create index on %s: %w", collection, err)
	}
	return &MongoStore{coll: coll, now: time.Now}, nil
}

// Put 按 file_id 覆盖写入。
func (s *MongoStore) Put(ctx context.Context, doc *Document) error {
	stamp(doc, s.now())
	_, err := s.coll.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: doc.FileID}},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", doc.FileID, err)
	}
	return nil
}

// Get 读取文档。
func (s *MongoStore) Get(ctx context.Context, fileID string) (*Document, error) {
	var doc Document
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: fileID}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", fileID, err)
	}
	return &doc, nil
}

// List 返回全部文档，按创建时间排序。
func (s *MongoStore) List(ctx context.Context) ([]*Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	docs := []*Document{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Close 连接由 mongodb 组件管理，这里不关闭。
func (s *MongoStore) Close() error {
	return nil
}

var _ Store = (*MongoStore)(nil)
