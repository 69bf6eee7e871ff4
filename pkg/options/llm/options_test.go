package llm

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderOptionsFlags(t *testing.T) {
	opts := NewEmbeddingOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--embedding.provider=ollama",
		"--embedding.base-url=http://localhost:11434",
		"--embedding.breaker-threshold=3",
	}))
	assert.Equal(t, "ollama", opts.Provider)
	assert.Equal(t, 3, opts.BreakerThreshold)
	assert.Empty(t, opts.Validate(), "ollama needs no api key")
}

func TestProviderOptionsValidate(t *testing.T) {
	opts := NewChatOptions()
	opts.APIKey = ""
	opts.BreakerThreshold = 2
	opts.BreakerCooldown = 0

	errs := opts.Validate()
	assert.Len(t, errs, 2)
}

func TestToConfigMap(t *testing.T) {
	opts := NewChatOptions()
	m := opts.ToConfigMap()
	assert.Equal(t, "gpt-4o-mini", m["chat_model"])
	assert.Equal(t, opts.BaseURL, m["base_url"])
	assert.Equal(t, 0, m["max_retries"])
}
