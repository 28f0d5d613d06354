// Package cache stores synthesized answers keyed by bill, question and the
// path that produced them, and sweeps entries older than a retention window.
//
// Callers treat the cache as an optimisation: every Gateway method may fail
// and the caller is expected to carry on as if the cache were empty.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Variant separates answers produced from the full (truncated) bill text from
// answers produced from relevance-filtered chunks.
type Variant string

const (
	VariantDirect  Variant = "direct"
	VariantChunked Variant = "chunked"
)

const chunkedTag = "(chunked)"

// Tag is the marker prefixed to the stored question text.
func (v Variant) Tag() string {
	if v == VariantChunked {
		return chunkedTag
	}
	return ""
}

func (v Variant) Valid() bool {
	return v == VariantDirect || v == VariantChunked
}

type Key struct {
	Bill    string
	Query   string
	Variant Variant
}

// StoredQuery is the question text as persisted, including the variant tag.
func (k Key) StoredQuery() string {
	return k.Variant.Tag() + k.Query
}

func (k Key) validate() error {
	if k.Bill == "" || k.Query == "" {
		return fmt.Errorf("cache key requires bill and query")
	}
	if !k.Variant.Valid() {
		return fmt.Errorf("unknown cache variant %q", k.Variant)
	}
	return nil
}

type Entry struct {
	Key       Key
	Answer    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Gateway is the response cache. Store upserts: there is at most one entry
// per key. Sweep removes entries not written within retention and reports
// how many were removed; it is safe to run alongside Lookup and Store.
type Gateway interface {
	Lookup(ctx context.Context, key Key) (Entry, bool, error)
	Store(ctx context.Context, key Key, answer string) error
	Sweep(ctx context.Context, retention time.Duration) (int64, error)
	Close() error
}
