package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryGateway is an in-process cache for local runs and tests.
type MemoryGateway struct {
	mu      sync.RWMutex
	entries map[Key]Entry
	now     func() time.Time
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{entries: make(map[Key]Entry), now: time.Now}
}

func (g *MemoryGateway) Lookup(ctx context.Context, key Key) (Entry, bool, error) {
	if err := key.validate(); err != nil {
		return Entry{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	entry, ok := g.entries[key]
	return entry, ok, nil
}

func (g *MemoryGateway) Store(ctx context.Context, key Key, answer string) error {
	if err := key.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	now := g.now()
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.entries[key]
	if !ok {
		entry = Entry{Key: key, CreatedAt: now}
	}
	entry.Answer = answer
	entry.UpdatedAt = now
	g.entries[key] = entry
	return nil
}

func (g *MemoryGateway) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cutoff := g.now().Add(-retention)
	g.mu.Lock()
	defer g.mu.Unlock()
	var removed int64
	for key, entry := range g.entries {
		if entry.UpdatedAt.Before(cutoff) {
			delete(g.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (g *MemoryGateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

func (g *MemoryGateway) Close() error { return nil }

// NoopGateway never stores anything.
type NoopGateway struct{}

func (NoopGateway) Lookup(context.Context, Key) (Entry, bool, error) { return Entry{}, false, nil }

func (NoopGateway) Store(context.Context, Key, string) error { return nil }

func (NoopGateway) Sweep(context.Context, time.Duration) (int64, error) { return 0, nil }

func (NoopGateway) Close() error { return nil }

var (
	_ Gateway = (*MemoryGateway)(nil)
	_ Gateway = NoopGateway{}
)
