// Package resilience 为 LLM 供应商提供熔断保护。
//
// 熔断器只做快速失败，不做重试：失败由调用阶段按原样上报。
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// ErrOpen 熔断器打开时返回。
var ErrOpen = errors.New("circuit breaker is open")

// State 熔断器状态。
type State int

const (
	// StateClosed 正常放行。
	StateClosed State = iota
	// StateOpen 拒绝所有调用，直到冷却结束。
	StateOpen
	// StateHalfOpen 放行一次探测调用。
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config 熔断器配置。
type Config struct {
	// Threshold 连续失败多少次后打开，0 表示禁用熔断。
	Threshold int
	// Cooldown 打开后多久进入半开状态。
	Cooldown time.Duration
}

// Breaker 按连续失败次数打开的熔断器。
type Breaker struct {
	name   string
	config Config
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker 创建熔断器。
func NewBreaker(name string, cfg Config) *Breaker {
	return &Breaker{
		name:   name,
		config: cfg,
		now:    time.Now,
	}
}

// Enabled 返回熔断是否生效。
func (b *Breaker) Enabled() bool {
	return b.config.Threshold > 0
}

// Do 通过熔断器执行 fn。调用方 ctx 已取消或超时时，fn 的错误不计入失败。
func (b *Breaker) Do(ctx context.Context, fn func() error) error {
	if !b.Enabled() {
		return fn()
	}
	if err := b.allow(); err != nil {
		return err
	}

	err := fn()
	if err != nil && ctx.Err() != nil {
		b.release()
		return err
	}
	b.record(err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.probing = true
		logger.Infow("Circuit breaker half-open", "breaker", b.name)
		return nil
	default:
		// 半开期间只允许一个探测调用
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	}
}

// release 结束一次未计数的调用，半开状态下由下一次调用重新探测。
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if err == nil {
		if b.state != StateClosed {
			logger.Infow("Circuit breaker closed", "breaker", b.name)
		}
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.config.Threshold {
		if b.state != StateOpen {
			logger.Warnw("Circuit breaker opened",
				"breaker", b.name,
				"failures", b.failures,
				"error", err.Error(),
			)
		}
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// State 返回当前状态。
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
