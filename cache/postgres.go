package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresGateway calls the stored functions created by
// database.EnsureCacheSchema.
type PostgresGateway struct {
	pool     *pgxpool.Pool
	ownsPool bool
}

// NewPostgresGateway wraps pool. When owned is true, Close closes the pool.
func NewPostgresGateway(pool *pgxpool.Pool, owned bool) *PostgresGateway {
	return &PostgresGateway{pool: pool, ownsPool: owned}
}

func (g *PostgresGateway) Lookup(ctx context.Context, key Key) (Entry, bool, error) {
	if err := key.validate(); err != nil {
		return Entry{}, false, err
	}

	entry := Entry{Key: key}
	err := g.pool.QueryRow(ctx,
		"SELECT response, created_at, updated_at FROM lookup_chat_response($1, $2, $3)",
		key.Bill, string(key.Variant), key.StoredQuery(),
	).Scan(&entry.Answer, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("lookup cached response: %w", err)
	}

	return entry, true, nil
}

func (g *PostgresGateway) Store(ctx context.Context, key Key, answer string) error {
	if err := key.validate(); err != nil {
		return err
	}

	if _, err := g.pool.Exec(ctx,
		"SELECT upsert_chat_response($1, $2, $3, $4, $5)",
		uuid.New(), key.Bill, string(key.Variant), key.StoredQuery(), answer,
	); err != nil {
		return fmt.Errorf("store cached response: %w", err)
	}
	return nil
}

func (g *PostgresGateway) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	var removed int64
	if err := g.pool.QueryRow(ctx, "SELECT clean_old_chat_responses($1)", retention).Scan(&removed); err != nil {
		return 0, fmt.Errorf("clean old cached responses: %w", err)
	}
	return removed, nil
}

func (g *PostgresGateway) Close() error {
	if g.ownsPool && g.pool != nil {
		g.pool.Close()
	}
	return nil
}

var _ Gateway = (*PostgresGateway)(nil)
