// Package prompt 管理生成回答使用的系统提示词和用户提示词模板。
// 提示词文件为 JSON，修改后自动重新加载。
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"

	"github.com/kart-io/ragpipe/pkg/utils/json"
)

// Prompts 是一组提示词。
type Prompts struct {
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
}

// Store 保存当前生效的提示词。
type Store struct {
	path     string
	defaults Prompts

	mu      sync.RWMutex
	current Prompts

	watcher   *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	onReload  func(Prompts)
}

// Option 配置 Store。
type Option func(*Store)

// WithReloadHook 设置重新加载成功后的回调。
func WithReloadHook(fn func(Prompts)) Option {
	return func(s *Store) {
		s.onReload = fn
	}
}

// New 创建提示词存储。path 为空时只使用 defaults。
// 文件中缺失的字段使用 defaults 中的值。
func New(path string, defaults Prompts, opts ...Option) (*Store, error) {
	s := &Store{
		path:     path,
		defaults: defaults,
		current:  defaults,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if path != "" {
		if err := s.Reload(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Get 返回当前提示词。
func (s *Store) Get() Prompts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload 重新读取提示词文件。
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read prompt file: %w", err)
	}
	var p Prompts
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("failed to parse prompt file %s: %w", s.path, err)
	}
	if p.SystemPrompt == "" {
		p.SystemPrompt = s.defaults.SystemPrompt
	}
	if p.UserPrompt == "" {
		p.UserPrompt = s.defaults.UserPrompt
	}

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()

	if s.onReload != nil {
		s.onReload(p)
	}
	return nil
}

// Watch 监听提示词文件所在目录，文件被写入、创建或重命名替换时重新加载。
// 解析失败时保留旧的提示词。
func (s *Store) Watch() error {
	if s.path == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create prompt watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch prompt dir: %w", err)
	}
	s.watcher = w

	target := filepath.Clean(s.path)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				if err := s.Reload(); err != nil {
					logger.Warnw("Prompt reload failed, keeping previous prompts", "path", s.path, "error", err)
					continue
				}
				logger.Infow("Prompt file reloaded", "path", s.path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warnw("Prompt watcher error", "error", err)
			}
		}
	}()

	logger.Infow("Watching prompt file", "path", s.path)
	return nil
}

// Close 停止监听。
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.watcher != nil {
			err = s.watcher.Close()
		}
		s.wg.Wait()
	})
	return err
}
