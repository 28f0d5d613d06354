package chat

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/fabfab/billchat/cache"
	"github.com/fabfab/billchat/llm"
)

const (
	synthesisTemperature = 0.7
	synthesisMaxTokens   = 500
)

type Outcome int

const (
	OutcomeAnswered Outcome = iota
	OutcomeQuotaExceeded
)

type SynthesisInput struct {
	Bill    string
	Query   string
	Content string
	Variant cache.Variant
}

type Synthesis struct {
	Outcome Outcome
	Answer  string
}

// Synthesizer produces the final answer with one model call. A content-length
// rejection is reported as OutcomeQuotaExceeded rather than an error so the
// caller can choose another path.
type Synthesizer struct {
	llm llm.Client
}

func NewSynthesizer(client llm.Client) *Synthesizer {
	return &Synthesizer{llm: client}
}

func (s *Synthesizer) Synthesize(ctx context.Context, in SynthesisInput) (Synthesis, error) {
	ctx, span := tracer.Start(ctx, "chat.synthesize")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.variant", string(in.Variant)),
		attribute.Int("chat.content_bytes", len(in.Content)),
	)

	var messages []llm.Message
	if in.Variant == cache.VariantChunked {
		messages = []llm.Message{
			llm.System(chunkedSystemPrompt(in.Bill)),
			llm.User(chunkedUserPrompt(in.Content, in.Query)),
		}
	} else {
		messages = []llm.Message{
			llm.System(directSystemPrompt(in.Bill)),
			llm.User(directUserPrompt(in.Content, in.Query)),
		}
	}

	answer, err := s.llm.Generate(ctx, messages,
		llm.WithTemperature(synthesisTemperature),
		llm.WithMaxTokens(synthesisMaxTokens),
	)
	if err != nil {
		if llm.IsQuotaExceeded(err) {
			span.SetAttributes(attribute.Bool("chat.quota_exceeded", true))
			return Synthesis{Outcome: OutcomeQuotaExceeded}, nil
		}
		span.RecordError(err)
		return Synthesis{}, fmt.Errorf("synthesize %s answer: %w", in.Variant, err)
	}

	return Synthesis{Outcome: OutcomeAnswered, Answer: strings.TrimSpace(answer)}, nil
}
