package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"

	poolopts "github.com/kart-io/ragpipe/pkg/options/pool"
)

// Pool 是有界的 goroutine 池。
type Pool struct {
	name     string
	pool     *ants.Pool
	stats    poolStatsCounter
	closed   atomic.Bool
	closedMu sync.Mutex
}

// poolStatsCounter 内部统计计数器
type poolStatsCounter struct {
	SubmittedTasks atomic.Int64
	CompletedTasks atomic.Int64
	RejectedTasks  atomic.Int64
	PanicRecovered atomic.Int64
}

// Stats contains statistics about the worker pool.
type Stats struct {
	SubmittedTasks int64 `json:"submitted_tasks"`
	CompletedTasks int64 `json:"completed_tasks"`
	RejectedTasks  int64 `json:"rejected_tasks"`
	PanicRecovered int64 `json:"panic_recovered"`
	Running        int   `json:"running"`
	Capacity       int   `json:"capacity"`
}

// NewPool creates a new worker pool with the given options.
func NewPool(name string, opts *poolopts.Options) (*Pool, error) {
	if opts == nil {
		opts = poolopts.NewOptions()
	}

	p := &Pool{name: name}

	pool, err := ants.NewPool(opts.Capacity,
		ants.WithExpiryDuration(opts.ExpiryDuration),
		ants.WithPreAlloc(opts.PreAlloc),
		ants.WithNonblocking(opts.Nonblocking),
		ants.WithMaxBlockingTasks(opts.MaxBlockingTasks),
		ants.WithPanicHandler(func(r interface{}) {
			p.stats.PanicRecovered.Add(1)
			logger.Errorw("Worker panic recovered",
				"pool", name,
				"panic", r,
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 ants 池失败: %w", err)
	}
	p.pool = pool

	logger.Infow("Worker pool created",
		"name", name,
		"capacity", opts.Capacity,
		"preAlloc", opts.PreAlloc,
	)

	return p, nil
}

// Name 返回池名称
func (p *Pool) Name() string {
	return p.name
}

// Cap 返回池容量
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Running 返回正在运行的 goroutine 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Submit 提交任务到池中执行
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	p.stats.SubmittedTasks.Add(1)
	err := p.pool.Submit(func() {
		defer p.stats.CompletedTasks.Add(1)
		task()
	})
	if err != nil {
		p.stats.SubmittedTasks.Add(-1)
		if errors.Is(err, ants.ErrPoolOverload) {
			p.stats.RejectedTasks.Add(1)
			return ErrPoolOverload
		}
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}

	return nil
}

// ForEach 在池中对 [0, n) 的每个下标执行 fn，并等待全部结束。
// 任一任务失败时取消其余任务的 ctx，返回下标最小的错误，
// 因此同一输入总是得到同一个错误。
func (p *Pool) ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, n)
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}

		wg.Add(1)
		idx := i
		err := p.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[idx] = fmt.Errorf("task %d panicked: %v", idx, r)
					cancel()
				}
			}()
			if err := fn(ctx, idx); err != nil {
				errs[idx] = err
				cancel()
			}
		})
		if err != nil {
			wg.Done()
			errs[i] = err
			cancel()
		}
	}

	wg.Wait()

	// 优先返回真正的任务错误，而不是被取消导致的 ctx 错误
	var ctxErr error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) && ctxErr == nil {
			ctxErr = err
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return ctxErr
}

// Release 关闭池并释放资源
func (p *Pool) Release() {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Load() {
		return
	}

	p.closed.Store(true)
	p.pool.Release()
	logger.Infow("Worker pool released", "name", p.name)
}

// Stats 返回池统计信息快照
func (p *Pool) Stats() Stats {
	return Stats{
		SubmittedTasks: p.stats.SubmittedTasks.Load(),
		CompletedTasks: p.stats.CompletedTasks.Load(),
		RejectedTasks:  p.stats.RejectedTasks.Load(),
		PanicRecovered: p.stats.PanicRecovered.Load(),
		Running:        p.pool.Running(),
		Capacity:       p.pool.Cap(),
	}
}
