package resilience

// breaker.go — one resilience wrapper (timeout + circuit breaker) shared by
// every external collaborator, instead of ad hoc retry logic per call site.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker is open: calls short-circuit to the
// caller's fallback without touching the collaborator.
var ErrOpen = errors.New("resilience: circuit open")

// Breaker trips after a run of consecutive failures and stays open for a
// cool-down window.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu        sync.Mutex
	failures  int
	openUntil time.Time
}

// NewBreaker creates a breaker. threshold <= 0 defaults to 3,
// cooldown <= 0 to 2 minutes.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 2 * time.Minute
	}
	return &Breaker{threshold: threshold, cooldown: cooldown}
}

// Do runs fn with a bounded timeout, tracking consecutive failures.
// While open it returns ErrOpen immediately.
func (b *Breaker) Do(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if !b.allow() {
		return ErrOpen
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		b.failure()
		return err
	}
	b.success()
	return nil
}

// allow reports whether a call may go through right now.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures < b.threshold {
		return true
	}
	if time.Now().After(b.openUntil) {
		// half-open: let one call probe the collaborator
		b.failures = b.threshold - 1
		return true
	}
	return false
}

func (b *Breaker) success() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}

func (b *Breaker) failure() {
	b.mu.Lock()
	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = time.Now().Add(b.cooldown)
	}
	b.mu.Unlock()
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold && time.Now().Before(b.openUntil)
}
