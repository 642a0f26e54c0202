package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/redis/go-redis/v9"
)

// RedisEventQueue is a reliable list queue: claimed events move atomically to
// a processing list and stay there until acknowledged. Each claim is stamped
// so Recover only requeues events whose claim outlived the visibility timeout.
type RedisEventQueue struct {
	client     *redis.Client
	key        string
	visibility time.Duration
	now        func() time.Time
}

var _ ports.EventQueue = (*RedisEventQueue)(nil)

// requeueScript moves one in-flight event back to pending unless it was acked meanwhile
var requeueScript = redis.NewScript(`
if redis.call('LREM', KEYS[1], 1, ARGV[1]) == 1 then
  redis.call('RPUSH', KEYS[2], ARGV[1])
  redis.call('HDEL', KEYS[3], ARGV[2])
  return 1
end
return 0
`)

// NewRedisEventQueue creates a queue under the given key prefix. A zero
// visibility timeout makes every in-flight event recoverable.
func NewRedisEventQueue(client *redis.Client, key string, visibility time.Duration) *RedisEventQueue {
	if key == "" {
		key = "shopify:webhooks"
	}
	if visibility < 0 {
		visibility = 0
	}
	return &RedisEventQueue{client: client, key: key, visibility: visibility, now: time.Now}
}

func (q *RedisEventQueue) pendingKey() string    { return q.key + ":pending" }
func (q *RedisEventQueue) processingKey() string { return q.key + ":processing" }
func (q *RedisEventQueue) claimsKey() string     { return q.key + ":claims" }

func (q *RedisEventQueue) Enqueue(ctx context.Context, event *domain.WebhookEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode webhook event: %w", err)
	}
	if err := q.client.LPush(ctx, q.pendingKey(), data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue webhook event: %w", err)
	}
	return nil
}

func (q *RedisEventQueue) Claim(ctx context.Context, wait time.Duration) (*ports.QueuedEvent, error) {
	var (
		raw string
		err error
	)
	if wait > 0 {
		raw, err = q.client.BLMove(ctx, q.pendingKey(), q.processingKey(), "RIGHT", "LEFT", wait).Result()
	} else {
		raw, err = q.client.LMove(ctx, q.pendingKey(), q.processingKey(), "RIGHT", "LEFT").Result()
	}
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim webhook event: %w", err)
	}

	var event domain.WebhookEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		_ = q.client.LRem(ctx, q.processingKey(), 1, raw).Err()
		return nil, fmt.Errorf("failed to decode queued webhook event: %w", err)
	}
	if err := q.client.HSet(ctx, q.claimsKey(), event.ID, q.now().UnixMilli()).Err(); err != nil {
		return nil, fmt.Errorf("failed to stamp webhook claim: %w", err)
	}
	return &ports.QueuedEvent{Event: &event, Receipt: raw}, nil
}

func (q *RedisEventQueue) Ack(ctx context.Context, item *ports.QueuedEvent) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey(), 1, item.Receipt)
		pipe.HDel(ctx, q.claimsKey(), item.Event.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to ack webhook event: %w", err)
	}
	return nil
}

// Recover requeues in-flight events whose claim is older than the visibility
// timeout. Claims still being worked on by live instances are left alone.
func (q *RedisEventQueue) Recover(ctx context.Context) (int, error) {
	inflight, err := q.client.LRange(ctx, q.processingKey(), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list in-flight webhook events: %w", err)
	}

	now := q.now()
	n := 0
	for _, raw := range inflight {
		var event domain.WebhookEvent
		if err := json.Unmarshal([]byte(raw), &event); err != nil || event.ID == "" {
			_ = q.client.LRem(ctx, q.processingKey(), 1, raw).Err()
			continue
		}

		if q.visibility > 0 {
			claimedAt, err := q.client.HGet(ctx, q.claimsKey(), event.ID).Int64()
			if errors.Is(err, redis.Nil) {
				// moved but not yet stamped; start its clock now
				_ = q.client.HSetNX(ctx, q.claimsKey(), event.ID, now.UnixMilli()).Err()
				continue
			}
			if err != nil {
				return n, fmt.Errorf("failed to read webhook claim: %w", err)
			}
			if now.Sub(time.UnixMilli(claimedAt)) < q.visibility {
				continue
			}
		}

		moved, err := requeueScript.Run(ctx, q.client, []string{q.processingKey(), q.pendingKey(), q.claimsKey()}, raw, event.ID).Int()
		if err != nil {
			return n, fmt.Errorf("failed to recover in-flight webhook event: %w", err)
		}
		n += moved
	}
	return n, nil
}

func (q *RedisEventQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.pendingKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return n, nil
}
