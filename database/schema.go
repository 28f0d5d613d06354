package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaLockID serialises schema migration across concurrently starting instances.
const schemaLockID = 7_215_004

// cacheSchema creates the response cache table and the stored functions the
// cache gateway calls. Every statement is idempotent.
var cacheSchema = []string{
	`CREATE TABLE IF NOT EXISTS chat_response_cache (
		id UUID PRIMARY KEY,
		bill_name TEXT NOT NULL,
		variant TEXT NOT NULL,
		query_text TEXT NOT NULL,
		response TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (bill_name, variant, query_text)
	)`,
	"CREATE INDEX IF NOT EXISTS idx_chat_response_cache_updated ON chat_response_cache(updated_at)",
	`CREATE OR REPLACE FUNCTION lookup_chat_response(p_bill TEXT, p_variant TEXT, p_query TEXT)
	RETURNS TABLE (response TEXT, created_at TIMESTAMPTZ, updated_at TIMESTAMPTZ)
	LANGUAGE sql STABLE AS $$
		SELECT c.response, c.created_at, c.updated_at
		FROM chat_response_cache c
		WHERE c.bill_name = p_bill AND c.variant = p_variant AND c.query_text = p_query
	$$`,
	`CREATE OR REPLACE FUNCTION upsert_chat_response(p_id UUID, p_bill TEXT, p_variant TEXT, p_query TEXT, p_response TEXT)
	RETURNS VOID
	LANGUAGE sql AS $$
		INSERT INTO chat_response_cache (id, bill_name, variant, query_text, response, created_at, updated_at)
		VALUES (p_id, p_bill, p_variant, p_query, p_response, NOW(), NOW())
		ON CONFLICT (bill_name, variant, query_text)
		DO UPDATE SET response = EXCLUDED.response, updated_at = NOW()
	$$`,
	`CREATE OR REPLACE FUNCTION clean_old_chat_responses(p_max_age INTERVAL)
	RETURNS BIGINT
	LANGUAGE plpgsql AS $$
	DECLARE
		removed BIGINT;
	BEGIN
		DELETE FROM chat_response_cache WHERE updated_at < NOW() - p_max_age;
		GET DIAGNOSTICS removed = ROW_COUNT;
		RETURN removed;
	END;
	$$`,
}

func EnsureCacheSchema(ctx context.Context, pool *pgxpool.Pool) (err error) {
	if pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	for _, stmt := range cacheSchema {
		if _, err = tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
