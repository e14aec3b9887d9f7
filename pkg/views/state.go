// Package views holds the sync controllers: locally cached, filterable
// collections that track the backend and refetch when it reports changes.
package views

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shambu-network/shambu/pkg/apperrors"
	"github.com/shambu-network/shambu/pkg/metrics"
	"github.com/shambu-network/shambu/pkg/realtime"
)

// State is the lifecycle state of a view.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var errAlreadyWatching = errors.New("view is already watching for changes")

// collection is the cache and fetch bookkeeping shared by every view.
//
// Fetch results are applied in completion order, so the last fetch to finish
// owns the cache. While any fetch is in flight the state stays Loading; the
// outcome of the last one to finish decides Ready or Error. A change event
// that arrives during a fetch sets pending, which causes exactly one extra
// fetch once the in-flight ones have drained.
type collection[T any] struct {
	name   string
	load   func(ctx context.Context) ([]T, error)
	logger *zap.Logger

	mu        sync.Mutex
	items     []T
	state     State
	err       error
	inflight  int
	pending   bool
	closed    bool
	sub       *realtime.Subscription
	onRefresh func()
}

func newCollection[T any](name string, load func(ctx context.Context) ([]T, error), logger *zap.Logger) *collection[T] {
	return &collection[T]{
		name:   name,
		load:   load,
		logger: logger.Named(name),
		items:  []T{},
	}
}

func (c *collection[T]) fetch(ctx context.Context) error {
	for {
		err := c.fetchOnce(ctx)
		if errors.Is(err, apperrors.ErrViewClosed) {
			return err
		}

		c.mu.Lock()
		again := c.pending && c.inflight == 0
		if again {
			c.pending = false
		}
		c.mu.Unlock()

		if !again {
			return err
		}
		c.logger.Debug("Refetching after change received during fetch")
	}
}

func (c *collection[T]) fetchOnce(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.ErrViewClosed
	}
	c.inflight++
	c.state = StateLoading
	c.mu.Unlock()

	started := time.Now()
	items, loadErr := c.load(ctx)

	c.mu.Lock()
	c.inflight--
	if c.closed {
		c.mu.Unlock()
		metrics.FetchesTotal.WithLabelValues(c.name, metrics.ResultDiscarded).Inc()
		c.logger.Debug("Discarding fetch result for closed view")
		return apperrors.ErrViewClosed
	}
	metrics.ObserveFetch(c.name, started, loadErr)

	if loadErr != nil {
		c.err = fmt.Errorf("%w: %w", apperrors.ErrFetchFailed, loadErr)
		if c.inflight == 0 {
			c.state = StateError
		}
		err, cached := c.err, len(c.items)
		c.mu.Unlock()
		c.logger.Warn("Fetch failed, keeping cached collection",
			zap.Int("cached", cached),
			zap.Error(loadErr))
		return err
	}

	c.items = items
	c.err = nil
	if c.inflight == 0 {
		c.state = StateReady
	}
	notify := c.onRefresh
	c.mu.Unlock()

	c.logger.Debug("Fetched collection",
		zap.Int("count", len(items)),
		zap.Duration("elapsed", time.Since(started)))
	if notify != nil {
		notify()
	}
	return nil
}

// onChange refetches, or marks a refetch pending when one is already running.
func (c *collection[T]) onChange(ctx context.Context, e realtime.Event) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.ErrViewClosed
	}
	if c.inflight > 0 {
		c.pending = true
		c.mu.Unlock()
		c.logger.Debug("Change received during fetch, refetch scheduled",
			zap.String("table", e.Table),
			zap.String("op", string(e.Op)))
		return nil
	}
	c.mu.Unlock()

	c.logger.Debug("Change received, refetching",
		zap.String("table", e.Table),
		zap.String("op", string(e.Op)),
		zap.String("row_id", e.RowID))
	return c.fetch(ctx)
}

// watch subscribes to scopes, fetches once and then refetches on every
// matching event until ctx ends or the view is closed.
func (c *collection[T]) watch(ctx context.Context, hub *realtime.Hub, scopes []realtime.Scope) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.ErrViewClosed
	}
	if c.sub != nil {
		c.mu.Unlock()
		return errAlreadyWatching
	}
	sub := hub.Subscribe(scopes...)
	c.sub = sub
	c.mu.Unlock()

	defer func() {
		sub.Close()
		c.mu.Lock()
		if c.sub == sub {
			c.sub = nil
		}
		c.mu.Unlock()
	}()

	if err := c.fetch(ctx); err != nil {
		if errors.Is(err, apperrors.ErrViewClosed) {
			return nil
		}
		c.logger.Warn("Initial fetch failed", zap.Error(err))
	}

	for e := range sub.Events(ctx) {
		if err := c.onChange(ctx, e); err != nil {
			if errors.Is(err, apperrors.ErrViewClosed) {
				return nil
			}
			c.logger.Warn("Refetch after change failed", zap.Error(err))
		}
	}
	return nil
}

// mutate applies fn to the cache. It is a no-op on a closed view.
func (c *collection[T]) mutate(fn func(items []T) []T) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.items = fn(c.items)
	notify := c.onRefresh
	c.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// snapshot returns the cached items. The slice is a copy; callers may keep it.
func (c *collection[T]) snapshot() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(make([]T, 0, len(c.items)), c.items...)
}

func (c *collection[T]) status() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.err
}

func (c *collection[T]) setOnRefresh(fn func()) {
	c.mu.Lock()
	c.onRefresh = fn
	c.mu.Unlock()
}

// close marks the view closed and releases its subscription before returning.
func (c *collection[T]) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sub := c.sub
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// observeWrite records the outcome of a mutation and wraps failures.
func observeWrite(operation string, err error) error {
	metrics.ObserveWrite(operation, err)
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", apperrors.ErrWriteFailed, operation, err)
}
