package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ensure RedisUpserter implements Upserter
var _ Upserter = (*RedisUpserter)(nil)

// updatesStreamMaxLen caps the change stream (approximate trimming).
const updatesStreamMaxLen = 100000

// RedisUpserter keeps the odds table as one Redis hash keyed by the conflict
// key and appends every written record to a change stream.
type RedisUpserter struct {
	client    *redis.Client
	hashKey   string
	streamKey string
}

// NewRedisUpserter connects to the Redis instance at redisURL.
func NewRedisUpserter(ctx context.Context, redisURL, table string) (*RedisUpserter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("redis_store_ready", "hash", table, "stream", table+".updates")
	return newRedisUpserter(client, table), nil
}

func newRedisUpserter(client *redis.Client, table string) *RedisUpserter {
	return &RedisUpserter{
		client:    client,
		hashKey:   table,
		streamKey: table + ".updates",
	}
}

// UpsertOdds writes the batch in a single pipeline.
func (u *RedisUpserter) UpsertOdds(ctx context.Context, records []OddsRecord) error {
	if len(records) == 0 {
		return nil
	}

	pipe := u.client.Pipeline()
	for _, r := range DedupeLatest(records) {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("error marshaling record %s: %w", r.Key(), err)
		}

		field := r.Key().String()
		pipe.HSet(ctx, u.hashKey, field, string(data))
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: u.streamKey,
			MaxLen: updatesStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{
				"key":  field,
				"data": string(data),
			},
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("error executing upsert pipeline: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (u *RedisUpserter) Close() error {
	return u.client.Close()
}
