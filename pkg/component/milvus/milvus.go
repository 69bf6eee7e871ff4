// Package milvus wraps the Milvus SDK client for the chunk collection layout
// used by the retrieval pipeline.
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/kart-io/ragpipe/pkg/options/milvus"
)

// Field names of a chunk collection.
const (
	FieldID         = "id"
	FieldEmbedding  = "embedding"
	FieldDocumentID = "document_id"
	FieldFileID     = "file_id"
	FieldText       = "text"
)

const (
	idMaxLen   = 64
	textMaxLen = 65535
	ivfNList   = 128
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		client: c,
		opts:   opts,
	}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// RawClient returns the underlying Milvus client.
func (c *Client) RawClient() *milvusclient.Client {
	return c.client
}

// Row is one chunk entity of a collection.
type Row struct {
	ID         string
	Embedding  []float32
	DocumentID string
	FileID     string
	Text       string
}

// EnsureCollection creates the chunk collection when it does not exist,
// builds an IVF_FLAT index with the given metric and loads it.
// An existing collection is used as is; its dimension is not checked.
func (c *Client) EnsureCollection(ctx context.Context, name string, dim int, metric entity.MetricType) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return c.load(ctx, name)
	}

	schema := entity.NewSchema().
		WithName(name).
		WithDescription("document chunks").
		WithAutoID(false).
		WithField(entity.NewField().
			WithName(FieldID).
			WithDataType(entity.FieldTypeVarChar).
			WithIsPrimaryKey(true).
			WithMaxLength(idMaxLen)).
		WithField(entity.NewField().
			WithName(FieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dim))).
		WithField(entity.NewField().
			WithName(FieldDocumentID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(idMaxLen)).
		WithField(entity.NewField().
			WithName(FieldFileID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(idMaxLen)).
		WithField(entity.NewField().
			WithName(FieldText).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(textMaxLen))

	opt := milvusclient.NewCreateCollectionOption(name, schema).
		WithConsistencyLevel(entity.ClStrong)
	if err := c.client.CreateCollection(ctx, opt); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(metric, ivfNList)
	createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, FieldEmbedding, idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	return c.load(ctx, name)
}

func (c *Client) load(ctx context.Context, name string) error {
	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// Upsert writes rows into the collection. The collection is created with
// strong consistency, so the rows are visible to the next query without a flush.
func (c *Client) Upsert(ctx context.Context, collectionName string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	dim := len(rows[0].Embedding)
	ids := make([]string, len(rows))
	vectors := make([][]float32, len(rows))
	docIDs := make([]string, len(rows))
	fileIDs := make([]string, len(rows))
	texts := make([]string, len(rows))
	for i, r := range rows {
		if len(r.Embedding) != dim {
			return fmt.Errorf("row %d has dimension %d, want %d", i, len(r.Embedding), dim)
		}
		ids[i] = r.ID
		vectors[i] = r.Embedding
		docIDs[i] = r.DocumentID
		fileIDs[i] = r.FileID
		texts[i] = r.Text
	}

	opt := milvusclient.NewColumnBasedInsertOption(collectionName,
		column.NewColumnVarChar(FieldID, ids),
		column.NewColumnFloatVector(FieldEmbedding, dim, vectors),
		column.NewColumnVarChar(FieldDocumentID, docIDs),
		column.NewColumnVarChar(FieldFileID, fileIDs),
		column.NewColumnVarChar(FieldText, texts),
	)
	if _, err := c.client.Upsert(ctx, opt); err != nil {
		return fmt.Errorf("failed to upsert data: %w", err)
	}
	return nil
}

// Flush seals the growing segments of the collection and waits for it.
func (c *Client) Flush(ctx context.Context, collectionName string) error {
	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collectionName))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

// QueryAll reads up to limit rows of the collection including vectors.
func (c *Client) QueryAll(ctx context.Context, collectionName string, limit int) ([]Row, error) {
	if err := c.load(ctx, collectionName); err != nil {
		return nil, err
	}

	rs, err := c.client.Query(ctx, milvusclient.NewQueryOption(collectionName).
		WithFilter("").
		WithOutputFields(FieldID, FieldEmbedding, FieldDocumentID, FieldFileID, FieldText).
		WithLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	ids, err := varChars(rs, FieldID)
	if err != nil {
		return nil, err
	}
	docIDs, err := varChars(rs, FieldDocumentID)
	if err != nil {
		return nil, err
	}
	fileIDs, err := varChars(rs, FieldFileID)
	if err != nil {
		return nil, err
	}
	texts, err := varChars(rs, FieldText)
	if err != nil {
		return nil, err
	}
	vecCol, ok := rs.GetColumn(FieldEmbedding).(*column.ColumnFloatVector)
	if !ok {
		return nil, fmt.Errorf("query result misses float vector field %q", FieldEmbedding)
	}
	vectors := vecCol.Data()

	rows := make([]Row, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		rows = append(rows, Row{
			ID:         ids[i],
			Embedding:  vectors[i],
			DocumentID: docIDs[i],
			FileID:     fileIDs[i],
			Text:       texts[i],
		})
	}
	return rows, nil
}

func varChars(rs milvusclient.ResultSet, name string) ([]string, error) {
	col, ok := rs.GetColumn(name).(*column.ColumnVarChar)
	if !ok {
		return nil, fmt.Errorf("query result misses varchar field %q", name)
	}
	return col.Data(), nil
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, collectionName string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collectionName)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// GetCollectionStats returns the number of entities in a collection.
func (c *Client) GetCollectionStats(ctx context.Context, collectionName string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collectionName))
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}

	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}
