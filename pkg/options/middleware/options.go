// Package middleware provides middleware configuration options.
package middleware

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/kart-io/ragpipe/pkg/options"
)

// Options 中间件配置。
type Options struct {
	CORS      *CORSOptions      `json:"cors" mapstructure:"cors"`
	RequestID *RequestIDOptions `json:"request-id" mapstructure:"request-id"`
	Logger    *LoggerOptions    `json:"logger" mapstructure:"logger"`
}

// CORSOptions defines CORS middleware options.
type CORSOptions struct {
	AllowOrigins     []string `json:"allow-origins" mapstructure:"allow-origins"`
	AllowMethods     []string `json:"allow-methods" mapstructure:"allow-methods"`
	AllowHeaders     []string `json:"allow-headers" mapstructure:"allow-headers"`
	AllowCredentials bool     `json:"allow-credentials" mapstructure:"allow-credentials"`
	MaxAge           int      `json:"max-age" mapstructure:"max-age"`
}

// RequestIDOptions defines request id middleware options.
type RequestIDOptions struct {
	Header string `json:"header" mapstructure:"header"`
}

// LoggerOptions defines access log middleware options.
type LoggerOptions struct {
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// NewOptions 创建默认中间件选项。
// 浏览器前端直接调用本服务，因此默认放开所有来源。
func NewOptions() *Options {
	return &Options{
		CORS: &CORSOptions{
			AllowOrigins:     []string{"*"},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"*"},
			AllowCredentials: true,
			MaxAge:           86400,
		},
		RequestID: &RequestIDOptions{Header: "X-Request-ID"},
		Logger:    &LoggerOptions{SkipPaths: []string{"/healthz"}},
	}
}

// AddFlags adds flags for middleware options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringSliceVar(&o.CORS.AllowOrigins, p+"middleware.cors.allow-origins", o.CORS.AllowOrigins, "CORS allowed origins.")
	fs.StringSliceVar(&o.CORS.AllowMethods, p+"middleware.cors.allow-methods", o.CORS.AllowMethods, "CORS allowed methods.")
	fs.StringSliceVar(&o.CORS.AllowHeaders, p+"middleware.cors.allow-headers", o.CORS.AllowHeaders, "CORS allowed headers.")
	fs.BoolVar(&o.CORS.AllowCredentials, p+"middleware.cors.allow-credentials", o.CORS.AllowCredentials, "CORS allow credentials.")
	fs.IntVar(&o.CORS.MaxAge, p+"middleware.cors.max-age", o.CORS.MaxAge, "CORS preflight max age.")
	fs.StringVar(&o.RequestID.Header, p+"middleware.request-id.header", o.RequestID.Header, "Request id header name.")
	fs.StringSliceVar(&o.Logger.SkipPaths, p+"middleware.logger.skip-paths", o.Logger.SkipPaths, "Paths excluded from access logs.")
}

// Validate validates the middleware options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.CORS != nil && len(o.CORS.AllowOrigins) == 0 {
		errs = append(errs, errors.New("CORS: AllowOrigins must be explicitly configured, empty list not allowed"))
	}
	if o.RequestID != nil && o.RequestID.Header == "" {
		errs = append(errs, errors.New("request-id header cannot be empty"))
	}
	return errs
}
