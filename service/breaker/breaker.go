package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Do while the breaker rejects calls.
var ErrOpen = errors.New("breaker: circuit open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker is a three-state circuit breaker. Closed trips open after
// Threshold consecutive failures; open admits a half-open trial after
// OpenTimeout; any half-open success closes, any failure re-opens.
// Transitions are instantaneous and never block callers.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	threshold   int
	openTimeout time.Duration
	now         func() time.Time
}

func New(threshold int, openTimeout time.Duration) *Breaker {
	return &Breaker{
		threshold:   threshold,
		openTimeout: openTimeout,
		now:         time.Now,
	}
}

// State returns the current state, applying the open→half-open timer.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.openTimeout {
		b.state = StateHalfOpen
	}
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked() != StateOpen
}

func (b *Breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = StateClosed
}

func (b *Breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stateLocked() == StateHalfOpen {
		b.state = StateOpen
		b.openedAt = b.now()
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// Do runs fn under the breaker. While open it fails fast with ErrOpen.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.allow() {
		return ErrOpen
	}
	err := fn(ctx)
	if err != nil {
		b.failure()
		return err
	}
	b.success()
	return nil
}

// Reset restores the closed state. For tests only.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
}
