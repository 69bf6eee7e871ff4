// Package options contains flags and options for initializing the RAG server.
package options

import (
	"fmt"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	ragsvc "github.com/kart-io/ragpipe/internal/rag"
	llmopts "github.com/kart-io/ragpipe/pkg/options/llm"
	logopts "github.com/kart-io/ragpipe/pkg/options/logger"
	metadataopts "github.com/kart-io/ragpipe/pkg/options/metadata"
	middlewareopts "github.com/kart-io/ragpipe/pkg/options/middleware"
	milvusopts "github.com/kart-io/ragpipe/pkg/options/milvus"
	mongoopts "github.com/kart-io/ragpipe/pkg/options/mongodb"
	poolopts "github.com/kart-io/ragpipe/pkg/options/pool"
	qdrantopts "github.com/kart-io/ragpipe/pkg/options/qdrant"
	ragopts "github.com/kart-io/ragpipe/pkg/options/rag"
	redisopts "github.com/kart-io/ragpipe/pkg/options/redis"
	httpopts "github.com/kart-io/ragpipe/pkg/options/server/http"
	storageopts "github.com/kart-io/ragpipe/pkg/options/storage"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// MiddlewareOptions contains CORS, request id and access log configuration.
	MiddlewareOptions *middlewareopts.Options `json:"middleware" mapstructure:"middleware"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// MilvusOptions contains Milvus database configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// QdrantOptions contains Qdrant configuration.
	QdrantOptions *qdrantopts.Options `json:"qdrant" mapstructure:"qdrant"`

	// RedisOptions is used by the redis metadata backend.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	// MongoOptions is used by the mongo metadata backend.
	MongoOptions *mongoopts.Options `json:"mongodb" mapstructure:"mongodb"`

	// MetadataOptions selects where document metadata is kept.
	MetadataOptions *metadataopts.Options `json:"metadata" mapstructure:"metadata"`

	// StorageOptions contains upload storage configuration.
	StorageOptions *storageopts.Options `json:"storage" mapstructure:"storage"`

	// PoolOptions contains embedding worker pool configuration.
	PoolOptions *poolopts.Options `json:"pool" mapstructure:"pool"`

	// EmbeddingOptions contains embedding provider configuration.
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`

	// ChatOptions contains chat provider configuration.
	ChatOptions *llmopts.ProviderOptions `json:"chat" mapstructure:"chat"`

	// RAGOptions contains RAG-specific configuration.
	RAGOptions *ragopts.Options `json:"rag" mapstructure:"rag"`

	// QueryTimeout bounds a single user query.
	QueryTimeout time.Duration `json:"query-timeout" mapstructure:"query-timeout"`

	// ParseTimeout bounds parsing and indexing of a single file.
	ParseTimeout time.Duration `json:"parse-timeout" mapstructure:"parse-timeout"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:       httpopts.NewOptions(),
		MiddlewareOptions: middlewareopts.NewOptions(),
		LogOptions:        logopts.NewOptions(),
		MilvusOptions:     milvusopts.NewOptions(),
		QdrantOptions:     qdrantopts.NewOptions(),
		RedisOptions:      redisopts.NewOptions(),
		MongoOptions:      mongoopts.NewOptions(),
		MetadataOptions:   metadataopts.NewOptions(),
		StorageOptions:    storageopts.NewOptions(),
		PoolOptions:       poolopts.NewOptions(),
		EmbeddingOptions:  llmopts.NewEmbeddingOptions(),
		ChatOptions:       llmopts.NewChatOptions(),
		RAGOptions:        ragopts.NewOptions(),
		QueryTimeout:      60 * time.Second,
		ParseTimeout:      10 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.MiddlewareOptions.AddFlags(fss.FlagSet("middleware"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.QdrantOptions.AddFlags(fss.FlagSet("qdrant"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.MongoOptions.AddFlags(fss.FlagSet("mongodb"))
	o.MetadataOptions.AddFlags(fss.FlagSet("metadata"))
	o.StorageOptions.AddFlags(fss.FlagSet("storage"))
	o.PoolOptions.AddFlags(fss.FlagSet("pool"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"))
	o.ChatOptions.AddFlags(fss.FlagSet("chat"))
	o.RAGOptions.AddFlags(fss.FlagSet("rag"))

	// misc flags
	fs := fss.FlagSet("misc")
	fs.DurationVar(&o.QueryTimeout, "query-timeout", o.QueryTimeout, "Timeout of a single user query.")
	fs.DurationVar(&o.ParseTimeout, "parse-timeout", o.ParseTimeout, "Timeout of parsing and indexing one file.")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout.")

	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.HTTPOptions.Complete(); err != nil {
		return err
	}
	if err := o.LogOptions.Complete(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := o.RedisOptions.Complete(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := o.MongoOptions.Complete(); err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.RAGOptions.Complete(); err != nil {
		return fmt.Errorf("rag: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
// Backend options are only checked when their backend is selected.
func (o *ServerOptions) Validate() error {
	errs := []error{}

	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.MiddlewareOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.MetadataOptions.Validate()...)
	errs = append(errs, o.StorageOptions.Validate()...)
	errs = append(errs, o.PoolOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.RAGOptions.Validate()...)

	switch o.RAGOptions.Store {
	case ragopts.StoreMilvus:
		errs = append(errs, o.MilvusOptions.Validate()...)
	case ragopts.StoreQdrant:
		errs = append(errs, o.QdrantOptions.Validate()...)
	}
	switch o.MetadataOptions.Backend {
	case metadataopts.BackendRedis:
		errs = append(errs, o.RedisOptions.Validate()...)
	case metadataopts.BackendMongo:
		errs = append(errs, o.MongoOptions.Validate()...)
	}

	if o.QueryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("query-timeout must be positive"))
	}
	if o.ParseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("parse-timeout must be positive"))
	}
	if o.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown-timeout must be positive"))
	}

	return utilerrors.NewAggregate(errs)
}

// Config builds a ragsvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*ragsvc.Config, error) {
	return &ragsvc.Config{
		HTTPOptions:       o.HTTPOptions,
		MiddlewareOptions: o.MiddlewareOptions,
		LogOptions:        o.LogOptions,
		MilvusOptions:     o.MilvusOptions,
		QdrantOptions:     o.QdrantOptions,
		RedisOptions:      o.RedisOptions,
		MongoOptions:      o.MongoOptions,
		MetadataOptions:   o.MetadataOptions,
		StorageOptions:    o.StorageOptions,
		PoolOptions:       o.PoolOptions,
		EmbeddingOptions:  o.EmbeddingOptions,
		ChatOptions:       o.ChatOptions,
		RAGOptions:        o.RAGOptions,
		QueryTimeout:      o.QueryTimeout,
		ParseTimeout:      o.ParseTimeout,
		ShutdownTimeout:   o.ShutdownTimeout,
	}, nil
}
