// Package bus implements the in-memory fan-out hub that broadcasts
// normalized events to every connected dashboard subscriber.
package bus

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"relay/internal/relay"
	"relay/internal/relay/metrics"
	"relay/internal/validator"
)

// Hub is the relay.Bus implementation. The subscriber set is the only
// structure mutated by concurrent operations; Publish takes a snapshot
// under the read lock and fans out outside of it, so a disconnect during
// a broadcast never corrupts iteration.
type Hub struct {
	logger   *zap.Logger
	registry *metrics.Registry

	mu   sync.RWMutex
	subs map[string]relay.Subscriber
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger, registry *metrics.Registry) (*Hub, error) {
	h := Hub{
		logger:   logger.Named("bus"),
		registry: registry,
		subs:     make(map[string]relay.Subscriber),
	}

	if err := validator.Validate("bus", h.logger, h.registry); err != nil {
		return nil, fmt.Errorf("failed to validate bus deps: %w", err)
	}

	return &h, nil
}

// Subscribe registers a subscriber. It does not receive events published
// before registration completes.
func (h *Hub) Subscribe(sub relay.Subscriber) {
	h.mu.Lock()
	h.subs[sub.ID()] = sub
	n := len(h.subs)
	h.mu.Unlock()

	h.registry.SetSubscribersActive(n)
	h.logger.Info("subscriber connected", zap.String("id", sub.ID()), zap.Int("active", n))
}

// Unsubscribe removes a subscriber. Once Unsubscribe returns, no later
// publish delivers to it; a publish already fanning out may still have it
// in its snapshot.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	n := len(h.subs)
	h.mu.Unlock()

	if !ok {
		return
	}

	_ = sub.Close()
	h.registry.SetSubscribersActive(n)
	h.logger.Info("subscriber disconnected", zap.String("id", id), zap.Int("active", n))
}

// Publish fans the event out to every subscriber connected at the moment
// of the call. A failed send evicts the failing subscriber and never
// propagates to the publisher or delays the other subscribers.
func (h *Hub) Publish(event relay.Event) {
	h.mu.RLock()
	snapshot := make([]relay.Subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		snapshot = append(snapshot, sub)
	}
	h.mu.RUnlock()

	channel := event.Kind.Channel()
	h.registry.RecordBroadcast(channel)

	for _, sub := range snapshot {
		if err := sub.Send(event); err != nil {
			h.registry.RecordBroadcastDrop(channel)
			h.logger.Warn("evicting subscriber after failed send",
				zap.String("id", sub.ID()),
				zap.String("event", channel),
				zap.Error(err),
			)
			h.Unsubscribe(sub.ID())
		}
	}
}

// SubscriberCount returns the number of currently connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
