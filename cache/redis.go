package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "billchat:cache:"

const (
	fieldBill      = "bill"
	fieldVariant   = "variant"
	fieldQuery     = "query"
	fieldResponse  = "response"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// RedisGateway keeps one hash per key. Hashes also carry a TTL of the
// configured retention so abandoned entries expire without a sweep.
type RedisGateway struct {
	client    *redis.Client
	retention time.Duration
	now       func() time.Time
}

func NewRedisGateway(client *redis.Client, retention time.Duration) *RedisGateway {
	return &RedisGateway{client: client, retention: retention, now: time.Now}
}

func redisKey(key Key) string {
	sum := sha256.Sum256([]byte(key.Bill + "\x00" + string(key.Variant) + "\x00" + key.StoredQuery()))
	return redisKeyPrefix + hex.EncodeToString(sum[:])
}

func (g *RedisGateway) Lookup(ctx context.Context, key Key) (Entry, bool, error) {
	if err := key.validate(); err != nil {
		return Entry{}, false, err
	}

	fields, err := g.client.HGetAll(ctx, redisKey(key)).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("lookup cached response: %w", err)
	}
	answer, ok := fields[fieldResponse]
	if !ok {
		return Entry{}, false, nil
	}

	return Entry{
		Key:       key,
		Answer:    answer,
		CreatedAt: parseTimestamp(fields[fieldCreatedAt]),
		UpdatedAt: parseTimestamp(fields[fieldUpdatedAt]),
	}, true, nil
}

func (g *RedisGateway) Store(ctx context.Context, key Key, answer string) error {
	if err := key.validate(); err != nil {
		return err
	}

	id := redisKey(key)
	now := g.now().UTC().Format(time.RFC3339Nano)
	_, err := g.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, id, fieldCreatedAt, now)
		pipe.HSet(ctx, id,
			fieldBill, key.Bill,
			fieldVariant, string(key.Variant),
			fieldQuery, key.StoredQuery(),
			fieldResponse, answer,
			fieldUpdatedAt, now,
		)
		if g.retention > 0 {
			pipe.Expire(ctx, id, g.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store cached response: %w", err)
	}
	return nil
}

func (g *RedisGateway) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := g.now().Add(-retention)

	var removed int64
	iter := g.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id := iter.Val()
		updated, err := g.client.HGet(ctx, id, fieldUpdatedAt).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return removed, fmt.Errorf("read cached response %s: %w", id, err)
		}
		if !parseTimestamp(updated).Before(cutoff) {
			continue
		}
		n, err := g.client.Del(ctx, id).Result()
		if err != nil {
			return removed, fmt.Errorf("delete cached response %s: %w", id, err)
		}
		removed += n
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan cached responses: %w", err)
	}

	return removed, nil
}

func (g *RedisGateway) Close() error {
	return g.client.Close()
}

// parseTimestamp returns the zero time for malformed values, which the
// sweep treats as expired.
func parseTimestamp(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

var _ Gateway = (*RedisGateway)(nil)
