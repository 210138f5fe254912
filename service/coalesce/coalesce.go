package coalesce

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// sweepAfter is how long a pending flight may linger before the sweeper
// forcibly clears it.
const sweepAfter = 30 * time.Second

// Group guarantees at most one concurrent execution per fingerprint within
// the process. Later callers await the in-flight result and receive their own
// copy. Pending flights survive caller cancellation so other waiters still
// benefit, and a periodic sweep clears stragglers.
type Group[T any] struct {
	sf       singleflight.Group
	mu       sync.Mutex
	pending  map[string]time.Time
	onShared func(key string)

	sweepOnce sync.Once
	stop      chan struct{}
}

func NewGroup[T any](onShared func(key string)) *Group[T] {
	return &Group[T]{
		pending:  map[string]time.Time{},
		onShared: onShared,
		stop:     make(chan struct{}),
	}
}

// Do executes fn for the key, or joins an in-flight execution of it. The
// execution itself is detached from the caller's context: a caller that
// cancels stops waiting but does not tear down the flight.
func (g *Group[T]) Do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (T, bool, error) {
	g.sweepOnce.Do(func() { go g.sweep() })

	g.mu.Lock()
	_, inFlight := g.pending[key]
	if !inFlight {
		g.pending[key] = time.Now()
	}
	g.mu.Unlock()

	if inFlight && g.onShared != nil {
		g.onShared(key)
	}

	ch := g.sf.DoChan(key, func() (any, error) {
		defer func() {
			g.mu.Lock()
			delete(g.pending, key)
			g.mu.Unlock()
		}()
		return fn(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Shared, res.Err
		}
		return res.Val.(T), res.Shared, nil
	case <-ctx.Done():
		var zero T
		return zero, inFlight, ctx.Err()
	}
}

// PendingCount reports the number of in-flight keys.
func (g *Group[T]) PendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func (g *Group[T]) sweep() {
	ticker := time.NewTicker(sweepAfter)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-sweepAfter)
			g.mu.Lock()
			for key, started := range g.pending {
				if started.Before(cutoff) {
					g.sf.Forget(key)
					delete(g.pending, key)
				}
			}
			g.mu.Unlock()
		}
	}
}

// Close stops the sweeper. For tests only.
func (g *Group[T]) Close() {
	close(g.stop)
}
