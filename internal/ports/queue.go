package ports

import (
	"context"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
)

// QueuedEvent is a claimed event plus the receipt needed to acknowledge it
type QueuedEvent struct {
	Event   *domain.WebhookEvent
	Receipt string
}

// EventQueue is a durable hand-off between the webhook receiver and its processor.
// A claimed event stays in flight until acknowledged.
type EventQueue interface {
	Enqueue(ctx context.Context, event *domain.WebhookEvent) error
	// Claim blocks up to wait for an event; it returns nil, nil when none arrived
	Claim(ctx context.Context, wait time.Duration) (*QueuedEvent, error)
	Ack(ctx context.Context, item *QueuedEvent) error
	// Recover moves events left in flight by a crashed worker back to the queue
	Recover(ctx context.Context) (int, error)
	Len(ctx context.Context) (int64, error)
}
