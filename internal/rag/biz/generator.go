package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/ragpipe/internal/rag/metrics"
	"github.com/kart-io/ragpipe/internal/rag/prompt"
	ctxlog "github.com/kart-io/ragpipe/pkg/infra/logger"
	"github.com/kart-io/ragpipe/pkg/llm"
	"github.com/kart-io/ragpipe/pkg/utils/json"
)

// Response 是生成结果。OK 为 false 表示没有回答，与合法的空字符串区分。
type Response struct {
	Text string
	OK   bool
}

// NoAnswer 表示生成失败，没有回答。
var NoAnswer = Response{}

// Answered 返回一个有效回答。
func Answered(text string) Response {
	return Response{Text: text, OK: true}
}

// MarshalJSON 没有回答时输出 null，否则输出字符串。
func (r Response) MarshalJSON() ([]byte, error) {
	if !r.OK {
		return []byte("null"), nil
	}
	return json.Marshal(r.Text)
}

// UnmarshalJSON 是 MarshalJSON 的逆操作。
func (r *Response) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = NoAnswer
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r = Answered(s)
	return nil
}

// PromptSource 提供当前生效的提示词。
type PromptSource interface {
	Get() prompt.Prompts
}

// Generator 负责答案生成。
type Generator struct {
	chatProvider llm.ChatProvider
	prompts      PromptSource
	metrics      *metrics.RAGMetrics
}

// NewGenerator 创建生成器实例。
func NewGenerator(chatProvider llm.ChatProvider, prompts PromptSource, m *metrics.RAGMetrics) *Generator {
	if m == nil {
		m = metrics.Default()
	}
	return &Generator{
		chatProvider: chatProvider,
		prompts:      prompts,
		metrics:      m,
	}
}

// Generate 调用一次 LLM。失败时返回 NoAnswer 和 GenerationError。
func (g *Generator) Generate(ctx context.Context, query string, references []string) (Response, error) {
	p := g.prompts.Get()
	userPrompt := BuildUserPrompt(p.UserPrompt, query, references)

	start := time.Now()
	text, err := g.chatProvider.Generate(ctx, userPrompt, p.SystemPrompt)
	g.metrics.RecordGeneration(time.Since(start), err)
	if err != nil {
		ctxlog.FromContext(ctx).Errorw("LLM generation failed",
			"provider", g.chatProvider.Name(),
			"error", err.Error(),
		)
		return NoAnswer, newStageError(StageGenerate, KindGeneration, err)
	}

	ctxlog.FromContext(ctx).Infow("LLM answer generated",
		"provider", g.chatProvider.Name(),
		"length", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return Answered(text), nil
}

// BuildUserPrompt 拼接用户提示词：模板、查询和编号后的参考文本。
func BuildUserPrompt(template, query string, references []string) string {
	var sb strings.Builder
	sb.WriteString(template)
	sb.WriteString("\n\nUser Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nReferences : ")
	sb.WriteString(RenderReferences(references))
	return sb.String()
}

// RenderReferences 按检索顺序渲染为编号列表。
func RenderReferences(references []string) string {
	var sb strings.Builder
	for i, ref := range references {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[%d] %s", i+1, ref)
	}
	return sb.String()
}
