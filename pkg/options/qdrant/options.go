// Package qdrantopts provides options for the Qdrant REST client.
package qdrantopts

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/ragpipe/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains Qdrant client configuration.
type Options struct {
	// URL is the Qdrant REST endpoint, e.g. http://localhost:6333.
	URL string `json:"url" mapstructure:"url"`

	// APIKey is sent as the api-key header when set.
	APIKey string `json:"-" mapstructure:"api-key"`

	// Timeout for every REST call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		URL:     "http://localhost:6333",
		Timeout: 30 * time.Second,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.URL, p+"qdrant.url", o.URL, "Qdrant REST endpoint.")
	fs.StringVar(&o.APIKey, p+"qdrant.api-key", o.APIKey, "Qdrant API key.")
	fs.DurationVar(&o.Timeout, p+"qdrant.timeout", o.Timeout, "Qdrant request timeout.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.URL == "" {
		errs = append(errs, fmt.Errorf("qdrant url is required"))
	} else if u, err := url.Parse(o.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("qdrant url %q is invalid", o.URL))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("qdrant timeout must be positive"))
	}
	return errs
}
