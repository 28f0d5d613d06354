package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fabfab/billchat/cache"
	"github.com/fabfab/billchat/llm"
	"github.com/fabfab/billchat/logging"
	"github.com/fabfab/billchat/textproc"
	"github.com/fabfab/billchat/tracing"
)

var tracer = otel.Tracer(tracing.ServiceName + "/chat")

type Options struct {
	MaxContentUnits   int
	ChunkUnits        int
	FilterConcurrency int
	// NormalizeQueries keys the cache on the normalized question text.
	NormalizeQueries bool
}

// Service answers questions about a bill, reading and writing the response
// cache around the model calls.
type Service struct {
	content ContentSource
	cache   cache.Gateway
	filter  *RelevanceFilter
	synth   *Synthesizer
	opts    Options
	logger  *zap.Logger
}

func NewService(content ContentSource, gateway cache.Gateway, client llm.Client, opts Options, logger *zap.Logger) *Service {
	logger = logging.OrNop(logger)
	if gateway == nil {
		gateway = cache.NoopGateway{}
	}
	if opts.MaxContentUnits <= 0 {
		opts.MaxContentUnits = textproc.DefaultMaxContentUnits
	}
	if opts.ChunkUnits <= 0 {
		opts.ChunkUnits = textproc.DefaultChunkUnits
	}

	return &Service{
		content: content,
		cache:   gateway,
		filter:  NewRelevanceFilter(client, opts.FilterConcurrency, logger),
		synth:   NewSynthesizer(client),
		opts:    opts,
		logger:  logger,
	}
}

// Ask runs the bill chat workflow. Errors wrap ErrValidation, ErrNotFound or
// ErrQuotaExceeded; anything else is an internal failure.
func (s *Service) Ask(ctx context.Context, req Request) (resp Response, err error) {
	ctx, span := tracer.Start(ctx, "chat.ask")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Bool("chat.from_cache", resp.FromCache),
				attribute.String("chat.path", string(resp.Path)),
			)
		}
		span.End()
	}()

	bill := strings.TrimSpace(req.Bill)
	query := strings.TrimSpace(req.Query)
	if bill == "" || query == "" {
		return Response{}, fmt.Errorf("%w: bill and query are required", ErrValidation)
	}
	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return Response{}, err
	}
	span.SetAttributes(attribute.String("chat.bill", bill), attribute.String("chat.mode", string(mode)))

	keyQuery := query
	if s.opts.NormalizeQueries {
		keyQuery = textproc.NormalizeQuery(query)
	}
	directKey := cache.Key{Bill: bill, Query: keyQuery, Variant: cache.VariantDirect}
	chunkedKey := cache.Key{Bill: bill, Query: keyQuery, Variant: cache.VariantChunked}

	checkKey := directKey
	if mode == ModeChunked {
		checkKey = chunkedKey
	}
	if answer, ok := s.lookup(ctx, checkKey); ok {
		return Response{Answer: answer, FromCache: true, Path: checkKey.Variant}, nil
	}

	content, err := s.content.Content(ctx, bill)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %q: %w", ErrNotFound, bill, err)
	}
	if strings.TrimSpace(content) == "" {
		return Response{}, fmt.Errorf("%w: %q has no content", ErrNotFound, bill)
	}

	if mode == ModeAuto {
		result, err := s.synth.Synthesize(ctx, SynthesisInput{
			Bill:    bill,
			Query:   query,
			Content: textproc.Truncate(content, s.opts.MaxContentUnits),
			Variant: cache.VariantDirect,
		})
		if err != nil {
			return Response{}, err
		}
		if result.Outcome == OutcomeAnswered {
			s.store(ctx, directKey, result.Answer)
			return Response{Answer: result.Answer, Path: cache.VariantDirect}, nil
		}
		s.logger.Info("direct synthesis exceeded quota, using relevant chunks",
			zap.String("bill", bill),
			zap.Int("units", textproc.EstimateUnits(content)),
		)
	}

	answer, err := s.answerFromChunks(ctx, bill, query, content)
	if err != nil {
		return Response{}, err
	}
	s.store(ctx, chunkedKey, answer)
	return Response{Answer: answer, Path: cache.VariantChunked}, nil
}

func (s *Service) answerFromChunks(ctx context.Context, bill, query, content string) (string, error) {
	terms, err := s.filter.ExtractSearchTerms(ctx, query)
	if err != nil {
		if llm.IsQuotaExceeded(err) {
			return "", fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
		}
		s.logger.Warn("search term extraction failed, using the question", zap.Error(err))
		terms = query
	}
	if terms == "" {
		terms = query
	}

	chunks := textproc.Segment(content, s.opts.ChunkUnits)
	relevant := s.filter.Filter(ctx, chunks, terms)
	if len(relevant) == 0 {
		s.logger.Info("no relevant chunks found", zap.String("bill", bill), zap.Int("chunks", len(chunks)))
	}

	combined := textproc.Truncate(strings.Join(relevant, chunkSeparator), s.opts.MaxContentUnits)
	result, err := s.synth.Synthesize(ctx, SynthesisInput{
		Bill:    bill,
		Query:   query,
		Content: combined,
		Variant: cache.VariantChunked,
	})
	if err != nil {
		return "", err
	}
	if result.Outcome == OutcomeQuotaExceeded {
		return "", fmt.Errorf("%w: chunked synthesis for %q", ErrQuotaExceeded, bill)
	}
	return result.Answer, nil
}

func (s *Service) lookup(ctx context.Context, key cache.Key) (string, bool) {
	entry, found, err := s.cache.Lookup(ctx, key)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("cache lookup failed", zap.String("bill", key.Bill), zap.Error(err))
		}
		return "", false
	}
	if !found {
		return "", false
	}
	return entry.Answer, true
}

func (s *Service) store(ctx context.Context, key cache.Key, answer string) {
	if err := s.cache.Store(ctx, key, answer); err != nil {
		s.logger.Warn("cache store failed",
			zap.String("bill", key.Bill),
			zap.String("variant", string(key.Variant)),
			zap.Error(err),
		)
	}
}
