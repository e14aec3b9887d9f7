package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shambu-network/shambu/pkg/metrics"
	"github.com/shambu-network/shambu/pkg/retry"
)

// DefaultBufferSize is the per-subscription event buffer.
const DefaultBufferSize = 16

// Source streams backend changes into publish until ctx is cancelled or the
// feed breaks. A returned error triggers a reconnect.
type Source interface {
	Run(ctx context.Context, publish func(Event)) error
}

// Hub fans events out to subscriptions.
type Hub struct {
	logger     *zap.Logger
	bufferSize int

	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger.Named("realtime"),
		bufferSize: DefaultBufferSize,
		subs:       make(map[*Subscription]struct{}),
	}
}

// Subscribe registers interest in the given scopes.
func (h *Hub) Subscribe(scopes ...Scope) *Subscription {
	s := &Subscription{
		hub:    h,
		scopes: append([]Scope(nil), scopes...),
		ch:     make(chan Event, h.bufferSize),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers e to every matching subscription without blocking.
func (h *Hub) Publish(e Event) {
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}
	if e.Op != OpResync {
		metrics.RealtimeEventsTotal.WithLabelValues(e.Table, string(e.Op)).Inc()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.matches(e) {
			s.offer(e)
		}
	}
}

// Run drives src, reconnecting with exponential backoff until ctx is
// cancelled. The resync from the initial connection is dropped.
func (h *Hub) Run(ctx context.Context, src Source) error {
	backoff := retry.ReconnectConfig()
	attempt := 0
	first := true
	for {
		if ctx.Err() != nil {
			return nil
		}

		publish := func(e Event) {
			if e.Op == OpResync && first {
				return
			}
			h.Publish(e)
		}

		started := time.Now()
		err := src.Run(ctx, publish)
		first = false
		if ctx.Err() != nil {
			return nil
		}

		// A connection that stayed up longer than the longest backoff starts over.
		if time.Since(started) > backoff.MaxDelay {
			attempt = 0
		}
		attempt++
		metrics.RealtimeReconnectsTotal.Inc()

		wait := backoff.Backoff(attempt)
		h.logger.Warn("Change feed disconnected, reconnecting",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}
