// Package queue provides durable hand-off of verified webhook events to the processor.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"
)

// MemoryEventQueue is a process-local queue. It only survives as long as the
// process does, so it suits development and tests.
type MemoryEventQueue struct {
	mu       sync.Mutex
	items    []*domain.WebhookEvent
	inflight map[string]*domain.WebhookEvent
	notify   chan struct{}
	counter  uint64
}

var _ ports.EventQueue = (*MemoryEventQueue)(nil)

func NewMemoryEventQueue() *MemoryEventQueue {
	return &MemoryEventQueue{
		items:    make([]*domain.WebhookEvent, 0, 64),
		inflight: make(map[string]*domain.WebhookEvent),
		notify:   make(chan struct{}, 1),
	}
}

func (q *MemoryEventQueue) Enqueue(_ context.Context, event *domain.WebhookEvent) error {
	q.mu.Lock()
	cp := *event
	q.items = append(q.items, &cp)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryEventQueue) Claim(ctx context.Context, wait time.Duration) (*ports.QueuedEvent, error) {
	deadline := time.Now().Add(wait)
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			event := q.items[0]
			q.items = q.items[1:]
			q.counter++
			receipt := fmt.Sprintf("mem:%d", q.counter)
			q.inflight[receipt] = event
			q.mu.Unlock()
			cp := *event
			return &ports.QueuedEvent{Event: &cp, Receipt: receipt}, nil
		}
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
			return nil, nil
		}
	}
}

func (q *MemoryEventQueue) Ack(_ context.Context, item *ports.QueuedEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inflight, item.Receipt)
	return nil
}

func (q *MemoryEventQueue) Recover(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for receipt, event := range q.inflight {
		q.items = append(q.items, event)
		delete(q.inflight, receipt)
		n++
	}
	return n, nil
}

func (q *MemoryEventQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}
