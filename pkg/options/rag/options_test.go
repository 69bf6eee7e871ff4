package rag

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	opts := NewOptions()
	require.NoError(t, opts.Complete())
	assert.Empty(t, opts.Validate())
}

func TestFetchLimitMilvusWindow(t *testing.T) {
	opts := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--rag.fetch-limit=20000"}))

	errs := opts.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "16384")

	opts.FetchLimit = MilvusQueryWindow
	assert.Empty(t, opts.Validate())
}

func TestFetchLimitUnboundedForOtherStores(t *testing.T) {
	for _, store := range []string{StoreQdrant, StoreMemory} {
		opts := NewOptions()
		opts.Store = store
		opts.FetchLimit = 50000
		assert.Empty(t, opts.Validate(), store)
	}
}

func TestValidateRejectsUnknownStore(t *testing.T) {
	opts := NewOptions()
	opts.Store = "faiss"
	opts.FetchLimit = 0

	assert.Len(t, opts.Validate(), 2)
}
