// Package hub fans domain events out to Server-Sent Events subscribers.
//
// Every accepted event gets the next id before it is queued, so a drop at
// any later point (full hub queue, slow subscriber) leaves a gap in the ids
// a subscriber sees and it can fall back to a full refresh.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"echelon/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// KeepAliveInterval is how often an idle stream receives a comment line
const KeepAliveInterval = 30 * time.Second

const subscriberBuffer = 64

// knownTypes are the event types a subscriber may filter on
var knownTypes = map[domain.EventType]struct{}{
	domain.EventTeamCreated:            {},
	domain.EventRawDataCreated:         {},
	domain.EventCCIRCreated:            {},
	domain.EventBulletPointCreated:     {},
	domain.EventBulletPointsLinked:     {},
	domain.EventBulletPointInvalidated: {},
	domain.EventSummariesRegenerated:   {},
	domain.EventSeedReloaded:           {},
}

type subscriber struct {
	id     string
	types  map[domain.EventType]struct{} // nil means every type
	frames chan []byte
}

func (s *subscriber) wants(t domain.EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// queued is an event with the id it was accepted under
type queued struct {
	seq   uint64
	event domain.Event
}

// Hub owns the subscriber set. Only Run mutates it.
type Hub struct {
	subscribe   chan *subscriber
	unsubscribe chan *subscriber
	events      chan queued
	stopped     chan struct{}
	logger      *zap.Logger
	seq         atomic.Uint64

	mu    sync.RWMutex
	count int
}

// New creates a hub. Call Run before serving.
func New(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribe:   make(chan *subscriber),
		unsubscribe: make(chan *subscriber),
		events:      make(chan queued, 256),
		stopped:     make(chan struct{}),
		logger:      logger,
	}
}

// Run delivers events to subscribers until ctx is done, then closes every
// stream
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	subs := make(map[*subscriber]struct{})

	setCount := func() {
		h.mu.Lock()
		h.count = len(subs)
		h.mu.Unlock()
	}

	for {
		select {
		case <-ctx.Done():
			for s := range subs {
				close(s.frames)
			}
			subs = nil
			setCount()
			return

		case s := <-h.subscribe:
			subs[s] = struct{}{}
			setCount()
			h.logger.Debug("event subscriber connected", zap.String("subscriber", s.id), zap.Int("total", len(subs)))

		case s := <-h.unsubscribe:
			if _, ok := subs[s]; ok {
				delete(subs, s)
				close(s.frames)
			}
			setCount()
			h.logger.Debug("event subscriber left", zap.String("subscriber", s.id), zap.Int("total", len(subs)))

		case q := <-h.events:
			frame, err := Format(q.seq, q.event)
			if err != nil {
				h.logger.Error("failed to encode event", zap.String("type", string(q.event.Type)), zap.Error(err))
				continue
			}
			for s := range subs {
				if !s.wants(q.event.Type) {
					continue
				}
				select {
				case s.frames <- frame:
				default:
					h.logger.Warn("event subscriber too slow, dropping event",
						zap.String("subscriber", s.id), zap.Uint64("id", q.seq))
				}
			}
		}
	}
}

// Format renders one SSE frame: id, event name, JSON data
func Format(seq uint64, event domain.Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, data)), nil
}

// Broadcast assigns the event the next id and queues it for delivery. It
// never blocks; when the queue is full the event is dropped and its id is
// never sent.
func (h *Hub) Broadcast(event domain.Event) {
	q := queued{seq: h.seq.Add(1), event: event}
	select {
	case h.events <- q:
	default:
		h.logger.Warn("event queue full, dropping event",
			zap.String("type", string(event.Type)), zap.Uint64("id", q.seq))
	}
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// parseTypes reads the optional ?types=a,b filter
func parseTypes(raw string) (map[domain.EventType]struct{}, error) {
	if raw == "" {
		return nil, nil
	}
	types := make(map[domain.EventType]struct{})
	for _, part := range strings.Split(raw, ",") {
		t := domain.EventType(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		if _, ok := knownTypes[t]; !ok {
			return nil, domain.InvalidInput(fmt.Sprintf("unknown event type %q", t))
		}
		types[t] = struct{}{}
	}
	return types, nil
}

// ServeHTTP streams events to one subscriber until it disconnects or the
// hub stops
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	types, err := parseTypes(r.URL.Query().Get("types"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s := &subscriber{
		id:     uuid.NewString(),
		types:  types,
		frames: make(chan []byte, subscriberBuffer),
	}

	select {
	case h.subscribe <- s:
	case <-h.stopped:
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	case <-r.Context().Done():
		return
	}
	defer func() {
		select {
		case h.unsubscribe <- s:
		case <-h.stopped:
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprintf(w, ": connected %s\n\n", s.id)
	flusher.Flush()

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case frame, ok := <-s.frames:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
		flusher.Flush()
	}
}
