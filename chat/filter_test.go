package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterFailsClosed(t *testing.T) {
	replies := map[string]struct {
		reply string
		err   error
	}{
		"chunk-a": {reply: "Yes"},
		"chunk-b": {reply: "Maybe"},
		"chunk-c": {reply: ""},
		"chunk-d": {err: errors.New("upstream 500")},
		"chunk-e": {reply: "yes, it does."},
		"chunk-f": {reply: "No"},
	}
	oracle := &scriptedOracle{relevance: func(_ string, chunk string) (string, error) {
		r := replies[chunk]
		return r.reply, r.err
	}}

	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			filter := NewRelevanceFilter(oracle, concurrency, nil)
			relevant := filter.Filter(context.Background(),
				[]string{"chunk-a", "chunk-b", "chunk-c", "chunk-d", "chunk-e", "chunk-f"},
				"housing levy",
			)
			assert.Equal(t, []string{"chunk-a", "chunk-e"}, relevant)
		})
	}
}

func TestFilterPreservesOrderUnderConcurrency(t *testing.T) {
	chunks := make([]string, 40)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk %02d", i)
	}
	oracle := &scriptedOracle{relevance: func(_ string, chunk string) (string, error) {
		if strings.HasSuffix(chunk, "0") || strings.HasSuffix(chunk, "5") {
			return "YES", nil
		}
		return "No", nil
	}}

	relevant := NewRelevanceFilter(oracle, 8, nil).Filter(context.Background(), chunks, "terms")

	require.Len(t, relevant, 8)
	for i := 1; i < len(relevant); i++ {
		assert.Less(t, relevant[i-1], relevant[i])
	}
	assert.Len(t, oracle.callsOf(kindRelevance), len(chunks))
}

func TestFilterCallParameters(t *testing.T) {
	oracle := &scriptedOracle{}
	NewRelevanceFilter(oracle, 0, nil).Filter(context.Background(), []string{"only chunk"}, "levy rates")

	calls := oracle.callsOf(kindRelevance)
	require.Len(t, calls, 1)
	assert.Equal(t, `Determine if this text chunk likely contains information relevant to: levy rates. Reply only with "Yes" or "No".`, calls[0].system)
	assert.Equal(t, "only chunk", calls[0].user)
	assert.InDelta(t, 0.1, calls[0].options.Temperature, 1e-6)
	assert.Equal(t, 5, calls[0].options.MaxTokens)
}

func TestFilterEmptyInput(t *testing.T) {
	oracle := &scriptedOracle{}
	relevant := NewRelevanceFilter(oracle, 2, nil).Filter(context.Background(), nil, "terms")
	assert.Empty(t, relevant)
	assert.Zero(t, oracle.total())
}

func TestExtractSearchTerms(t *testing.T) {
	oracle := &scriptedOracle{terms: func(query string) (string, error) {
		return "  housing levy, rate \n", nil
	}}

	terms, err := NewRelevanceFilter(oracle, 1, nil).ExtractSearchTerms(context.Background(), "What is the levy rate?")
	require.NoError(t, err)
	assert.Equal(t, "housing levy, rate", terms)

	calls := oracle.callsOf(kindTerms)
	require.Len(t, calls, 1)
	assert.Equal(t, "What is the levy rate?", calls[0].user)
	assert.InDelta(t, 0.3, calls[0].options.Temperature, 1e-6)
}

func TestSynthesizerReportsQuota(t *testing.T) {
	oracle := &scriptedOracle{synthesis: quotaOnDirect}
	synth := NewSynthesizer(oracle)

	result, err := synth.Synthesize(context.Background(), SynthesisInput{Bill: "Finance Bill", Query: "q", Content: "c", Variant: "direct"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeQuotaExceeded, result.Outcome)
	assert.Empty(t, result.Answer)

	result, err = synth.Synthesize(context.Background(), SynthesisInput{Bill: "Finance Bill", Query: "q", Content: "c", Variant: "chunked"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAnswered, result.Outcome)
	assert.Equal(t, "The housing levy is 1.5% and is remitted monthly.", result.Answer)
}
