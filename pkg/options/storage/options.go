// Package storage provides upload storage options.
package storage

import (
	"github.com/spf13/pflag"

	"github.com/kart-io/ragpipe/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options configures where uploaded files are kept.
type Options struct {
	// Dir is the upload directory. Empty means a temporary directory
	// that is removed when the service stops.
	Dir string `json:"dir" mapstructure:"dir"`

	// MaxFileSize bounds a single upload in bytes.
	MaxFileSize int64 `json:"max-file-size" mapstructure:"max-file-size"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		MaxFileSize: 64 << 20,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Dir, p+"storage.dir", o.Dir, "Upload directory (empty for a temporary directory).")
	fs.Int64Var(&o.MaxFileSize, p+"storage.max-file-size", o.MaxFileSize, "Maximum upload size in bytes.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	return nil
}
