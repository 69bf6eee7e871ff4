// Package pool provides worker pool options.
package pool

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ragpipe/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options configures the embedding worker pool.
type Options struct {
	// Capacity is the maximum number of concurrent workers.
	Capacity int `json:"capacity" mapstructure:"capacity"`

	// ExpiryDuration is how long an idle worker is kept.
	ExpiryDuration time.Duration `json:"expiry-duration" mapstructure:"expiry-duration"`

	// PreAlloc pre-allocates the worker queue.
	PreAlloc bool `json:"pre-alloc" mapstructure:"pre-alloc"`

	// Nonblocking makes Submit fail instead of waiting when the pool is full.
	Nonblocking bool `json:"nonblocking" mapstructure:"nonblocking"`

	// MaxBlockingTasks bounds the number of blocked submitters (0 = unlimited).
	MaxBlockingTasks int `json:"max-blocking-tasks" mapstructure:"max-blocking-tasks"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		Capacity:       8,
		ExpiryDuration: 10 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.IntVar(&o.Capacity, p+"pool.capacity", o.Capacity, "Maximum concurrent embedding workers.")
	fs.DurationVar(&o.ExpiryDuration, p+"pool.expiry-duration", o.ExpiryDuration, "Idle worker expiry.")
	fs.BoolVar(&o.PreAlloc, p+"pool.pre-alloc", o.PreAlloc, "Pre-allocate the worker queue.")
	fs.BoolVar(&o.Nonblocking, p+"pool.nonblocking", o.Nonblocking, "Fail submissions when the pool is full.")
	fs.IntVar(&o.MaxBlockingTasks, p+"pool.max-blocking-tasks", o.MaxBlockingTasks, "Maximum blocked submitters (0 = unlimited).")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("pool.capacity must be positive"))
	}
	if o.MaxBlockingTasks < 0 {
		errs = append(errs, fmt.Errorf("pool.max-blocking-tasks must not be negative"))
	}
	return errs
}
