package realtime

import (
	"context"
	"iter"
	"sync"

	"github.com/shambu-network/shambu/pkg/metrics"
)

// Subscription receives the events matching its scopes until closed.
type Subscription struct {
	hub    *Hub
	scopes []Scope
	ch     chan Event
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) matches(e Event) bool {
	for _, sc := range s.scopes {
		if sc.Matches(e) {
			return true
		}
	}
	return false
}

// offer queues e without blocking. A full buffer already holds an event that
// will trigger a refetch, so the new one is coalesced into it.
func (s *Subscription) offer(e Event) {
	select {
	case s.ch <- e:
	default:
		metrics.RealtimeDroppedTotal.Inc()
	}
}

// C returns the raw event channel.
func (s *Subscription) C() <-chan Event { return s.ch }

// Done is closed once the subscription is closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Events yields events until ctx is cancelled or the subscription is closed.
// Ranging again after an early break resumes with the next queued event.
func (s *Subscription) Events(ctx context.Context) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case e := <-s.ch:
				if !yield(e) {
					return
				}
			}
		}
	}
}

// Close detaches the subscription from the hub. No event is delivered after
// Close returns. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.done)
	})
}
