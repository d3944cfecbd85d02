package store

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestRedisUpserterKeys(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	up := newRedisUpserter(client, "odds")
	defer up.Close()

	if up.hashKey != "odds" || up.streamKey != "odds.updates" {
		t.Errorf("unexpected keys %q, %q", up.hashKey, up.streamKey)
	}

	// Empty batches never touch the connection.
	if err := up.UpsertOdds(context.Background(), nil); err != nil {
		t.Errorf("expected nil for empty batch, got %v", err)
	}
}

func TestNewRedisUpserterRejectsBadURL(t *testing.T) {
	if _, err := NewRedisUpserter(context.Background(), "not-a-redis-url", "odds"); err == nil {
		t.Error("expected parse error")
	}
}
