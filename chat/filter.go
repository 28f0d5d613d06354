package chat

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fabfab/billchat/llm"
	"github.com/fabfab/billchat/logging"
)

const (
	searchTermsTemperature = 0.3
	relevanceTemperature   = 0.1
	relevanceMaxTokens     = 5

	DefaultFilterConcurrency = 4
)

// RelevanceFilter asks the model which chunks are worth sending to the final
// synthesis. Verdicts are independent; a failed or unclear verdict excludes
// the chunk.
type RelevanceFilter struct {
	llm         llm.Client
	concurrency int
	logger      *zap.Logger
}

func NewRelevanceFilter(client llm.Client, concurrency int, logger *zap.Logger) *RelevanceFilter {
	if concurrency <= 0 {
		concurrency = DefaultFilterConcurrency
	}
	return &RelevanceFilter{
		llm:         client,
		concurrency: concurrency,
		logger:      logging.OrNop(logger),
	}
}

// ExtractSearchTerms condenses the question into the terms used for every
// per-chunk verdict.
func (f *RelevanceFilter) ExtractSearchTerms(ctx context.Context, query string) (string, error) {
	terms, err := f.llm.Generate(ctx,
		[]llm.Message{llm.System(searchTermsPrompt), llm.User(query)},
		llm.WithTemperature(searchTermsTemperature),
	)
	if err != nil {
		return "", fmt.Errorf("extract search terms: %w", err)
	}
	return strings.TrimSpace(terms), nil
}

// Filter returns the chunks judged relevant to searchTerms, in input order.
func (f *RelevanceFilter) Filter(ctx context.Context, chunks []string, searchTerms string) []string {
	ctx, span := tracer.Start(ctx, "chat.filter")
	defer span.End()

	verdicts := make([]bool, len(chunks))
	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			relevant, err := f.isRelevant(ctx, chunk, searchTerms)
			if err != nil {
				f.logger.Warn("relevance check failed, excluding chunk",
					zap.Int("chunk", i),
					zap.Error(err),
				)
				return nil
			}
			verdicts[i] = relevant
			return nil
		})
	}
	_ = g.Wait()

	relevant := make([]string, 0, len(chunks))
	for i, keep := range verdicts {
		if keep {
			relevant = append(relevant, chunks[i])
		}
	}

	span.SetAttributes(
		attribute.Int("chat.chunks", len(chunks)),
		attribute.Int("chat.relevant_chunks", len(relevant)),
	)
	f.logger.Debug("relevance filter complete",
		zap.Int("chunks", len(chunks)),
		zap.Int("relevant", len(relevant)),
	)

	return relevant
}

func (f *RelevanceFilter) isRelevant(ctx context.Context, chunk, searchTerms string) (bool, error) {
	reply, err := f.llm.Generate(ctx,
		[]llm.Message{llm.System(relevancePrompt(searchTerms)), llm.User(chunk)},
		llm.WithTemperature(relevanceTemperature),
		llm.WithMaxTokens(relevanceMaxTokens),
	)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(reply), "yes"), nil
}
