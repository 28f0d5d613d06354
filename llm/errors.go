package llm

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ErrQuotaExceeded reports that the oracle refused a request because the
// prompt was too long for the model or for the account's token quota.
var ErrQuotaExceeded = errors.New("llm content length or token quota exceeded")

const (
	codeContextLengthExceeded = "context_length_exceeded"
	codeRateLimitExceeded     = "rate_limit_exceeded"
	typeTokens                = "tokens"
)

// IsQuotaExceeded is the one place that decides whether an oracle error means
// "the content is too large". It recognises ErrQuotaExceeded and the OpenAI
// error shapes for context-length and token-rate refusals.
func IsQuotaExceeded(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := fmt.Sprint(apiErr.Code)
		switch {
		case code == codeContextLengthExceeded:
			return true
		case code == codeRateLimitExceeded && apiErr.Type == typeTokens:
			return true
		case apiErr.HTTPStatusCode == http.StatusRequestEntityTooLarge:
			return true
		}
		return false
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusRequestEntityTooLarge
	}

	return false
}
