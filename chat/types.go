package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fabfab/billchat/cache"
)

var (
	ErrValidation    = errors.New("invalid chat request")
	ErrNotFound      = errors.New("bill content not found")
	ErrQuotaExceeded = errors.New("bill too large to process")
)

// Mode selects where the workflow starts.
type Mode string

const (
	// ModeAuto answers from the truncated bill and falls back to filtered
	// chunks when the model rejects the content length.
	ModeAuto Mode = "auto"
	// ModeChunked goes straight to the filtered chunks.
	ModeChunked Mode = "chunked"
)

func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeChunked:
		return ModeChunked, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrValidation, value)
	}
}

type Request struct {
	Bill  string
	Query string
	Mode  Mode
}

type Response struct {
	Answer    string
	FromCache bool
	// Path is the variant that produced the answer, or that was hit in the cache.
	Path cache.Variant
}

// ContentSource returns the full text of a named bill.
type ContentSource interface {
	Content(ctx context.Context, name string) (string, error)
}
