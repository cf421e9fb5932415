package service

import (
	"sync"
	"time"

	"echelon/internal/domain"

	"go.uber.org/zap"
)

// EventBus fans published events out to subscriber funcs. Delivery is
// synchronous and in publish order, so subscribers see every event; a
// subscriber must return quickly and never block.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []func(domain.Event)
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{logger: logger}
}

// Subscribe registers fn for every event published from now on
func (eb *EventBus) Subscribe(fn func(domain.Event)) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, fn)
}

// Publish stamps the event time if unset and hands the event to every
// subscriber
func (eb *EventBus) Publish(event domain.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()
	eb.logger.Debug("publishing event",
		zap.String("type", string(event.Type)), zap.Int("subscribers", len(eb.subscribers)))
	for _, fn := range eb.subscribers {
		fn(event)
	}
}
