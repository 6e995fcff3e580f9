package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vietddude/uplink/internal/core/domain"
)

// DefaultTTL bounds how long a dead letter stays readable. The sorted
// set index is cleaned lazily when an expired entry is read.
const DefaultTTL = 7 * 24 * time.Hour

// DeadLetterRepo stores exhausted uploads in Redis: one JSON value per
// letter plus a sorted set ordered by failure time.
type DeadLetterRepo struct {
	rdb       *redis.Client
	namespace string
	ttl       time.Duration
}

// NewDeadLetterRepo creates a Redis-backed dead-letter repository.
func NewDeadLetterRepo(client *Client, namespace string) *DeadLetterRepo {
	if namespace == "" {
		namespace = "uplink"
	}
	return &DeadLetterRepo{
		rdb:       client.rdb,
		namespace: namespace,
		ttl:       DefaultTTL,
	}
}

// Key helpers
func (r *DeadLetterRepo) queueKey() string {
	return fmt.Sprintf("dead_letters:%s", r.namespace)
}

func (r *DeadLetterRepo) letterKey(id string) string {
	return fmt.Sprintf("dead_letter:%s:%s", r.namespace, id)
}

// Push records one exhausted upload.
func (r *DeadLetterRepo) Push(ctx context.Context, dl domain.DeadLetter) error {
	if dl.ID == "" {
		dl.ID = uuid.NewString()
	}
	if dl.FailedAt.IsZero() {
		dl.FailedAt = time.Now()
	}

	data, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	if err := r.rdb.Set(ctx, r.letterKey(dl.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set dead letter: %w", err)
	}

	// Sorted by failure time so listings read newest first
	if err := r.rdb.ZAdd(ctx, r.queueKey(), redis.Z{
		Score:  float64(dl.FailedAt.Unix()),
		Member: dl.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to queue: %w", err)
	}

	return nil
}

// List retrieves dead letters, newest first.
func (r *DeadLetterRepo) List(ctx context.Context, limit int) ([]domain.DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}

	ids, err := r.rdb.ZRevRange(ctx, r.queueKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange failed: %w", err)
	}

	letters := make([]domain.DeadLetter, 0, len(ids))
	for _, id := range ids {
		data, err := r.rdb.Get(ctx, r.letterKey(id)).Bytes()
		if err == redis.Nil {
			// Value expired but ID still indexed, drop it
			r.rdb.ZRem(ctx, r.queueKey(), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get dead letter: %w", err)
		}

		var dl domain.DeadLetter
		if err := json.Unmarshal(data, &dl); err != nil {
			continue
		}
		letters = append(letters, dl)
	}

	return letters, nil
}

// MarkResolved removes a dead letter after it was requeued elsewhere.
func (r *DeadLetterRepo) MarkResolved(ctx context.Context, id string) error {
	if err := r.rdb.ZRem(ctx, r.queueKey(), id).Err(); err != nil {
		return fmt.Errorf("failed to remove from queue: %w", err)
	}
	if err := r.rdb.Del(ctx, r.letterKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete dead letter: %w", err)
	}
	return nil
}

// Count returns the number of unresolved dead letters.
func (r *DeadLetterRepo) Count(ctx context.Context) (int64, error) {
	count, err := r.rdb.ZCard(ctx, r.queueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return count, nil
}
