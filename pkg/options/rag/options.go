// Package rag provides retrieval pipeline configuration options.
package rag

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/ragpipe/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Vector store backends.
const (
	StoreMilvus = "milvus"
	StoreQdrant = "qdrant"
	StoreMemory = "memory"
)

// MilvusQueryWindow is the largest offset+limit Milvus accepts for a query.
const MilvusQueryWindow = 16384

// Options contains retrieval pipeline configuration.
type Options struct {
	// ChunkSize is the soft upper bound of a chunk in bytes.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// TopK is the number of results to return from similarity search.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// FetchLimit caps how many records a query reads from the vector store.
	FetchLimit int `json:"fetch-limit" mapstructure:"fetch-limit"`

	// Collection is the name of the vector collection.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// Store selects the vector store backend (milvus|qdrant|memory).
	Store string `json:"store" mapstructure:"store"`

	// PromptFile is a JSON file holding system_prompt and user_prompt.
	PromptFile string `json:"prompt-file" mapstructure:"prompt-file"`

	// SystemPrompt is used when no prompt file is configured.
	SystemPrompt string `json:"system-prompt" mapstructure:"system-prompt"`

	// UserPrompt is the instruction placed before the query and references.
	UserPrompt string `json:"user-prompt" mapstructure:"user-prompt"`
}

// DefaultSystemPrompt is the default system prompt for answering queries.
const DefaultSystemPrompt = `You are a knowledgeable assistant. Answer the user's question using only the references provided.
If the references do not contain the answer, say that you could not find it in the uploaded documents.`

// DefaultUserPrompt is the default instruction placed before the query.
const DefaultUserPrompt = `Answer the question below in a clear, factual way. Quote the references where they support the answer.`

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:    1500,
		TopK:         5,
		FetchLimit:   10000,
		Collection:   "philippine_history",
		EmbeddingDim: 1536,
		Store:        StoreMilvus,
		SystemPrompt: DefaultSystemPrompt,
		UserPrompt:   DefaultUserPrompt,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.IntVar(&o.ChunkSize, p+"rag.chunk-size", o.ChunkSize, "Soft upper bound of a chunk in bytes.")
	fs.IntVar(&o.TopK, p+"rag.top-k", o.TopK, "Number of results from similarity search.")
	fs.IntVar(&o.FetchLimit, p+"rag.fetch-limit", o.FetchLimit, "Maximum records read from the vector store per query.")
	fs.StringVar(&o.Collection, p+"rag.collection", o.Collection, "Vector collection name.")
	fs.IntVar(&o.EmbeddingDim, p+"rag.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.StringVar(&o.Store, p+"rag.store", o.Store, "Vector store backend (milvus|qdrant|memory).")
	fs.StringVar(&o.PromptFile, p+"rag.prompt-file", o.PromptFile, "JSON prompt file with system_prompt and user_prompt.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("rag.chunk-size must be positive"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top-k must be positive"))
	}
	if o.FetchLimit <= 0 {
		errs = append(errs, fmt.Errorf("rag.fetch-limit must be positive"))
	}
	if o.Store == StoreMilvus && o.FetchLimit > MilvusQueryWindow {
		errs = append(errs, fmt.Errorf("rag.fetch-limit %d exceeds the milvus query window %d", o.FetchLimit, MilvusQueryWindow))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("rag.embedding-dim must be positive"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("rag.collection is required"))
	}
	switch o.Store {
	case StoreMilvus, StoreQdrant, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("rag.store %q is not supported", o.Store))
	}
	return errs
}

// Complete completes the RAG options with defaults.
func (o *Options) Complete() error {
	if o.SystemPrompt == "" {
		o.SystemPrompt = DefaultSystemPrompt
	}
	if o.UserPrompt == "" {
		o.UserPrompt = DefaultUserPrompt
	}
	return nil
}
