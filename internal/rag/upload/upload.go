// Package upload 提供上传文件的存储。文件位置由 Save 返回并显式传递给后续的解析流程。
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrInvalidLocation 位置不属于当前存储。
var ErrInvalidLocation = errors.New("invalid storage location")

// Location 是存储返回的不透明文件位置。
type Location string

// Storage 定义上传文件存储接口。
type Storage interface {
	// Save 以 fileID 保存文件内容并返回位置。
	Save(ctx context.Context, fileID, filename string, r io.Reader) (Location, error)
	// Open 打开已保存的文件。
	Open(ctx context.Context, loc Location) (File, error)
	// Remove 删除文件。
	Remove(ctx context.Context, loc Location) error
	// Close 释放存储。
	Close() error
}

// File 是已保存的文件，支持随机读取。
type File interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// LocalStorage 把文件保存在本地目录。
type LocalStorage struct {
	root    string
	owned   bool
	maxSize int64

	closeOnce sync.Once
}

// NewLocalStorage 创建本地存储。dir 为空时创建临时目录，并在 Close 时删除。
// maxSize <= 0 表示不限制文件大小。
func NewLocalStorage(dir string, maxSize int64) (*LocalStorage, error) {
	owned := false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "ragpipe-upload-")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp dir: %w", err)
		}
		dir = tmp
		owned = true
	} else if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &LocalStorage{root: abs, owned: owned, maxSize: maxSize}, nil
}

// Root 返回存储根目录。
func (s *LocalStorage) Root() string {
	return s.root
}

// Save 将文件保存为 {fileID}{ext}，扩展名取自原始文件名，缺省为 .pdf。
func (s *LocalStorage) Save(_ context.Context, fileID, filename string, r io.Reader) (Location, error) {
	if fileID == "" || strings.ContainsAny(fileID, `/\`) {
		return "", fmt.Errorf("invalid file id %q", fileID)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".pdf"
	}
	path := filepath.Join(s.root, fileID+ext)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxSize > 0 && n > s.maxSize {
		err = fmt.Errorf("file exceeds %d bytes", s.maxSize)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return Location(path), nil
}

// Open 打开文件用于读取。
func (s *LocalStorage) Open(_ context.Context, loc Location) (File, error) {
	path, err := s.resolve(loc)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &localFile{File: f, size: info.Size()}, nil
}

// Remove 删除文件，文件不存在时不报错。
func (s *LocalStorage) Remove(_ context.Context, loc Location) error {
	path, err := s.resolve(loc)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Close 删除自建的临时目录。
func (s *LocalStorage) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.owned {
			err = os.RemoveAll(s.root)
		}
	})
	return err
}

func (s *LocalStorage) resolve(loc Location) (string, error) {
	path := filepath.Clean(string(loc))
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", ErrInvalidLocation
	}
	return path, nil
}

type localFile struct {
	*os.File
	size int64
}

func (f *localFile) Size() int64 {
	return f.size
}

var _ Storage = (*LocalStorage)(nil)
