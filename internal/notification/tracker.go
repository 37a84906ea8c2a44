package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"socialgraph/internal/events"
)

// Tracker remembers which events were fully processed so redeliveries can
// be acked without touching the database. It is an optimization in front of
// the idempotency-key constraint, never the only guard.
type Tracker interface {
	IsProcessed(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key string, e events.ActionEvent) (bool, error)
}

type processedRecord struct {
	ProcessedAt   time.Time `json:"processed_at"`
	ActionType    string    `json:"action_type"`
	ActionCreator string    `json:"action_creator"`
	TargetUser    string    `json:"target_user"`
}

// RedisTracker stores processed markers as keys with a TTL.
type RedisTracker struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisTracker(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisTracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisTracker{redis: client, ttl: ttl, logger: logger}
}

const trackerPrefix = "notify:processed:"

func (t *RedisTracker) key(idempotencyKey string) string {
	return trackerPrefix + idempotencyKey
}

func (t *RedisTracker) IsProcessed(ctx context.Context, key string) (bool, error) {
	n, err := t.redis.Exists(ctx, t.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("check processed marker: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed sets the marker with SET NX. It returns false when another
// worker already marked the same event.
func (t *RedisTracker) MarkProcessed(ctx context.Context, key string, e events.ActionEvent) (bool, error) {
	record, err := json.Marshal(processedRecord{
		ProcessedAt:   time.Now(),
		ActionType:    string(e.ActionType),
		ActionCreator: e.ActionCreator,
		TargetUser:    e.TargetUser,
	})
	if err != nil {
		return false, fmt.Errorf("marshal processed marker: %w", err)
	}

	ok, err := t.redis.SetNX(ctx, t.key(key), record, t.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set processed marker: %w", err)
	}
	if !ok {
		t.logger.Warn("Event already marked processed by another worker",
			"actionType", e.ActionType,
			"actionCreator", e.ActionCreator)
	}
	return ok, nil
}

// Count scans the live markers. Keys expire on their own; this is for
// operators only.
func (t *RedisTracker) Count(ctx context.Context) (int64, error) {
	var (
		cursor uint64
		count  int64
	)
	for {
		keys, next, err := t.redis.Scan(ctx, cursor, trackerPrefix+"*", 100).Result()
		if err != nil {
			return count, fmt.Errorf("scan processed markers: %w", err)
		}
		count += int64(len(keys))
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}

// Health pings redis for the /health endpoint.
func (t *RedisTracker) Health(ctx context.Context) map[string]string {
	if err := t.redis.Ping(ctx).Err(); err != nil {
		return map[string]string{"status": "down", "error": err.Error()}
	}
	return map[string]string{"status": "up"}
}
