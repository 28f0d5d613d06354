package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/fabfab/billchat/cache"
	"github.com/fabfab/billchat/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type callKind string

const (
	kindTerms     callKind = "terms"
	kindRelevance callKind = "relevance"
	kindSynthesis callKind = "synthesis"
)

type oracleCall struct {
	kind    callKind
	system  string
	user    string
	options llm.CallOptions
}

// scriptedOracle routes each call by its system prompt.
type scriptedOracle struct {
	mu    sync.Mutex
	calls []oracleCall

	terms     func(query string) (string, error)
	relevance func(terms, chunk string) (string, error)
	synthesis func(system, user string) (string, error)
}

func (o *scriptedOracle) Generate(_ context.Context, messages []llm.Message, opts ...llm.CallOption) (string, error) {
	var options llm.CallOptions
	for _, opt := range opts {
		opt(&options)
	}
	system, user := messages[0].Content, messages[1].Content

	call := oracleCall{system: system, user: user, options: options}
	switch {
	case system == searchTermsPrompt:
		call.kind = kindTerms
	case strings.HasPrefix(system, "Determine if this text chunk"):
		call.kind = kindRelevance
	default:
		call.kind = kindSynthesis
	}

	o.mu.Lock()
	o.calls = append(o.calls, call)
	o.mu.Unlock()

	switch call.kind {
	case kindTerms:
		if o.terms == nil {
			return "housing levy", nil
		}
		return o.terms(user)
	case kindRelevance:
		if o.relevance == nil {
			return "No", nil
		}
		terms := strings.TrimSuffix(strings.TrimPrefix(system, "Determine if this text chunk likely contains information relevant to: "), `. Reply only with "Yes" or "No".`)
		return o.relevance(terms, user)
	default:
		if o.synthesis == nil {
			return "An answer.", nil
		}
		return o.synthesis(system, user)
	}
}

func (o *scriptedOracle) callsOf(kind callKind) []oracleCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []oracleCall
	for _, call := range o.calls {
		if call.kind == kind {
			out = append(out, call)
		}
	}
	return out
}

func (o *scriptedOracle) total() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

type mapContent map[string]string

func (m mapContent) Content(_ context.Context, name string) (string, error) {
	content, ok := m[name]
	if !ok {
		return "", errors.New("unknown bill")
	}
	return content, nil
}

// recordingGateway wraps a gateway and counts calls; err makes every call fail.
type recordingGateway struct {
	inner   cache.Gateway
	err     error
	mu      sync.Mutex
	lookups int
	stores  []cache.Key
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{inner: cache.NewMemoryGateway()}
}

func (g *recordingGateway) Lookup(ctx context.Context, key cache.Key) (cache.Entry, bool, error) {
	g.mu.Lock()
	g.lookups++
	g.mu.Unlock()
	if g.err != nil {
		return cache.Entry{}, false, g.err
	}
	return g.inner.Lookup(ctx, key)
}

func (g *recordingGateway) Store(ctx context.Context, key cache.Key, answer string) error {
	g.mu.Lock()
	g.stores = append(g.stores, key)
	g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	return g.inner.Store(ctx, key, answer)
}

func (g *recordingGateway) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	return g.inner.Sweep(ctx, retention)
}

func (g *recordingGateway) Close() error { return nil }

func (g *recordingGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lookups + len(g.stores)
}
