package metadata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	metaopts "github.com/kart-io/ragpipe/pkg/options/metadata"
)

// GormStore 基于 gorm 的元数据存储，支持 sqlite、mysql 和 postgres。
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// OpenGorm 按驱动打开数据库并迁移表结构。
func OpenGorm(ctx context.Context, driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case metaopts.DriverSQLite:
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn)
	case metaopts.DriverMySQL:
		dialector = mysql.Open(dsn)
	case metaopts.DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported metadata driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if driver == metaopts.DriverSQLite {
		// 内存数据库每个连接相互独立，只保留一个连接
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", driver, err)
	}

	return NewGormStore(ctx, db)
}

// NewGormStore 使用已有连接创建存储并迁移表结构。
func NewGormStore(ctx context.Context, db *gorm.DB) (*GormStore, error) {
	if err := db.WithContext(ctx).AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate documents table: %w", err)
	}
	return &GormStore{db: db, now: time.Now}, nil
}

// Put 按主键插入或更新。
func (s *GormStore) Put(ctx context.Context, doc *Document) error {
	stamp(doc, s.now())
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(doc).Error
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", doc.FileID, err)
	}
	return nil
}

// Get 按 file_id 查询。
func (s *GormStore) Get(ctx context.Context, fileID string) (*Document, error) {
	var doc Document
	err := s.db.WithContext(ctx).Where("file_id = ?", fileID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", fileID, err)
	}
	return &doc, nil
}

// List 按创建时间升序返回全部文档。
func (s *GormStore) List(ctx context.Context) ([]*Document, error) {
	var docs []*Document
	if err := s.db.WithContext(ctx).Order("created_at ASC").Order("file_id ASC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Close 关闭底层连接。
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureSQLiteDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, ":memory:") || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create sqlite dir: %w", err)
	}
	return nil
}

var _ Store = (*GormStore)(nil)
