// Package metadata 持久化上传文档的元数据，按 file_id 查询。
package metadata

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"
)

// ErrNotFound 文档不存在。
var ErrNotFound = errors.New("document not found")

// MaxErrorLen 是 Error 字段保存的最大字符数，与列宽一致。
const MaxErrorLen = 1024

// Status 是文档的处理状态。
type Status string

const (
	StatusUploaded Status = "uploaded"
	StatusIndexed  Status = "indexed"
	StatusFailed   Status = "failed"
)

// Document 是一个上传文档的元数据。
// DocumentID 在每次解析时重新生成，上传后尚未解析时为空。
type Document struct {
	FileID     string    `json:"file_id" bson:"_id" gorm:"column:file_id;primaryKey;size:64"`
	DocumentID string    `json:"document_id" bson:"document_id" gorm:"column:document_id;size:64;index"`
	Filename   string    `json:"filename" bson:"filename" gorm:"column:filename;size:512"`
	Location   string    `json:"location" bson:"location" gorm:"column:location;size:1024"`
	ChunkCount int       `json:"chunk_count" bson:"chunk_count" gorm:"column:chunk_count"`
	Status     Status    `json:"status" bson:"status" gorm:"column:status;size:32"`
	Error      string    `json:"error,omitempty" bson:"error,omitempty" gorm:"column:error;size:1024"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at" gorm:"column:created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at" gorm:"column:updated_at"`
}

// TableName 指定表名。
func (Document) TableName() string {
	return "rag_documents"
}

// Store 定义文档元数据存储接口。
type Store interface {
	// Put 按 FileID 插入或覆盖文档。
	Put(ctx context.Context, doc *Document) error
	// Get 返回文档，不存在时返回 ErrNotFound。
	Get(ctx context.Context, fileID string) (*Document, error)
	// List 按创建时间返回全部文档。
	List(ctx context.Context) ([]*Document, error)
	// Close 释放连接。
	Close() error
}

func stamp(doc *Document, now time.Time) {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	doc.Error = truncate(doc.Error, MaxErrorLen)
}

// truncate 按字符截断，超长时以 "..." 结尾。
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
