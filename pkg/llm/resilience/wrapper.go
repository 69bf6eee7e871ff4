package resilience

import (
	"context"

	"github.com/kart-io/ragpipe/pkg/llm"
)

// EmbeddingProvider 带熔断的 Embedding 供应商包装器。
type EmbeddingProvider struct {
	llm.EmbeddingProvider
	breaker *Breaker
}

// WrapEmbedding 为 provider 加上熔断保护，cfg.Threshold 为 0 时原样返回。
func WrapEmbedding(provider llm.EmbeddingProvider, cfg Config) llm.EmbeddingProvider {
	if cfg.Threshold <= 0 {
		return provider
	}
	return &EmbeddingProvider{
		EmbeddingProvider: provider,
		breaker:           NewBreaker(provider.Name()+"-embedding", cfg),
	}
}

// Embed 为多个文本生成向量嵌入。
func (p *EmbeddingProvider) Embed(ctx context.Context, texts []string) (out [][]float32, err error) {
	err = p.breaker.Do(ctx, func() error {
		out, err = p.EmbeddingProvider.Embed(ctx, texts)
		return err
	})
	return out, err
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *EmbeddingProvider) EmbedSingle(ctx context.Context, text string) (out []float32, err error) {
	err = p.breaker.Do(ctx, func() error {
		out, err = p.EmbeddingProvider.EmbedSingle(ctx, text)
		return err
	})
	return out, err
}

// Breaker 返回熔断器，用于观察状态。
func (p *EmbeddingProvider) Breaker() *Breaker {
	return p.breaker
}

// ChatProvider 带熔断的 Chat 供应商包装器。
type ChatProvider struct {
	llm.ChatProvider
	breaker *Breaker
}

// WrapChat 为 provider 加上熔断保护，cfg.Threshold 为 0 时原样返回。
func WrapChat(provider llm.ChatProvider, cfg Config) llm.ChatProvider {
	if cfg.Threshold <= 0 {
		return provider
	}
	return &ChatProvider{
		ChatProvider: provider,
		breaker:      NewBreaker(provider.Name()+"-chat", cfg),
	}
}

// Generate 根据提示生成文本。
func (p *ChatProvider) Generate(ctx context.Context, prompt string, systemPrompt string) (out string, err error) {
	err = p.breaker.Do(ctx, func() error {
		out, err = p.ChatProvider.Generate(ctx, prompt, systemPrompt)
		return err
	})
	return out, err
}

// Breaker 返回熔断器，用于观察状态。
func (p *ChatProvider) Breaker() *Breaker {
	return p.breaker
}
