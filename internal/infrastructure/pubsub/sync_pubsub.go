package pubsub

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/rs/zerolog"
)

// Subscription is one subscriber's channel of notifications
type Subscription struct {
	ID            string
	Filter        *Filter
	Notifications chan *domain.Notification
	Done          chan struct{}
	ctx           context.Context
	cancel        context.CancelFunc
}

// Filter narrows a subscription. Empty fields match everything.
type Filter struct {
	Kinds    []domain.NotificationKind
	TenantID string
}

// SyncPubSub manages sync notification subscriptions
type SyncPubSub struct {
	mu       sync.RWMutex
	channels map[string]*Subscription
	logger   zerolog.Logger
	nextID   int64
	idMu     sync.Mutex
	buffer   int
}

var _ ports.Notifier = (*SyncPubSub)(nil)

// NewSyncPubSub creates a new pub/sub hub
func NewSyncPubSub(logger zerolog.Logger) *SyncPubSub {
	return &SyncPubSub{
		channels: make(map[string]*Subscription),
		logger:   logger,
		buffer:   32,
	}
}

// Subscribe creates a subscription that lives until ctx is cancelled
func (ps *SyncPubSub) Subscribe(ctx context.Context, filter *Filter) *Subscription {
	ps.idMu.Lock()
	ps.nextID++
	id := fmt.Sprintf("sub-%d", ps.nextID)
	ps.idMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		ID:            id,
		Filter:        filter,
		Notifications: make(chan *domain.Notification, ps.buffer),
		Done:          make(chan struct{}),
		ctx:           subCtx,
		cancel:        cancel,
	}

	ps.mu.Lock()
	ps.channels[id] = sub
	ps.mu.Unlock()

	ps.logger.Debug().Str("subscriptionId", id).Msg("Sync subscription created")

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(id)
	}()

	return sub
}

// Unsubscribe removes a subscription and closes its channels
func (ps *SyncPubSub) Unsubscribe(id string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	sub, ok := ps.channels[id]
	if !ok {
		return
	}
	close(sub.Notifications)
	close(sub.Done)
	sub.cancel()
	delete(ps.channels, id)

	ps.logger.Debug().Str("subscriptionId", id).Msg("Sync subscription removed")
}

// Publish delivers n to every matching subscriber, dropping it for subscribers whose buffer is full
func (ps *SyncPubSub) Publish(n *domain.Notification) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, sub := range ps.channels {
		if !matches(n, sub.Filter) {
			continue
		}
		select {
		case sub.Notifications <- n:
		case <-sub.ctx.Done():
		default:
			ps.logger.Warn().
				Str("subscriptionId", sub.ID).
				Str("kind", string(n.Kind)).
				Msg("Subscriber buffer full, dropping notification")
		}
	}
}

func matches(n *domain.Notification, f *Filter) bool {
	if f == nil {
		return true
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, n.Kind) {
		return false
	}
	if f.TenantID != "" && f.TenantID != n.TenantID {
		return false
	}
	return true
}

// Stats returns pub/sub statistics
func (ps *SyncPubSub) Stats() map[string]any {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return map[string]any{
		"active_subscriptions": len(ps.channels),
	}
}

// Close ends every subscription
func (ps *SyncPubSub) Close() {
	ps.mu.RLock()
	ids := make([]string, 0, len(ps.channels))
	for id := range ps.channels {
		ids = append(ids, id)
	}
	ps.mu.RUnlock()
	for _, id := range ids {
		ps.Unsubscribe(id)
	}
}
