package llm

import (
	"context"
	"fmt"

	"github.com/fabfab/billchat/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Client is the language-model oracle used for search-term extraction,
// relevance classification and answer synthesis.
type Client interface {
	Generate(ctx context.Context, messages []Message, opts ...CallOption) (string, error)
}

// CallOptions tune a single completion. Zero values leave the provider default.
type CallOptions struct {
	Temperature float32
	MaxTokens   int
}

type CallOption func(*CallOptions)

func WithTemperature(temperature float32) CallOption {
	return func(o *CallOptions) {
		o.Temperature = temperature
	}
}

func WithMaxTokens(maxTokens int) CallOption {
	return func(o *CallOptions) {
		o.MaxTokens = maxTokens
	}
}

func applyCallOptions(opts []CallOption) CallOptions {
	var options CallOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

type Options struct {
	Provider string
	Model    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// System and User build the two-message prompt every oracle call uses.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	var client Client
	switch opts.Provider {
	case config.ProviderOllama:
		client = NewOllamaClient(opts)
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		client = NewOpenAIClient(opts)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}

	if cfg.LLM.RequestsPerSecond > 0 {
		client = NewRateLimitedClient(client, cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)
	}

	return client, nil
}
