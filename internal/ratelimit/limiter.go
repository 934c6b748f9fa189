// Package ratelimit implements a per-client sliding-window request limiter.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Result is the outcome of a single store hit.
type Result struct {
	Allowed bool
	// Count is the number of requests in the window, including this one when allowed.
	Count int
	// Oldest is the earliest timestamp still in the window. Set only when rejected.
	Oldest time.Time
}

// Store keeps per-client request timestamps. Hit must prune, count and record
// as one atomic step for a given key.
type Store interface {
	Hit(ctx context.Context, key string, now time.Time, limit int, window time.Duration) (Result, error)
}

// ExceededError is returned when a client has used its quota for the window.
type ExceededError struct {
	ClientID   string
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %d requests per %s", e.ClientID, e.Limit, e.Window)
}

// Limiter allows at most limit requests per client within a trailing window.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func New(store Store, limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Limit() int { return l.limit }

func (l *Limiter) Window() time.Duration { return l.window }

// Check records a request for clientID, or returns *ExceededError without
// recording it when the quota is used up. Store failures are returned as is.
func (l *Limiter) Check(ctx context.Context, clientID string) error {
	now := l.now()

	res, err := l.store.Hit(ctx, clientID, now, l.limit, l.window)
	if err != nil {
		return fmt.Errorf("rate limit store: %w", err)
	}
	if res.Allowed {
		return nil
	}

	return &ExceededError{
		ClientID:   clientID,
		Limit:      l.limit,
		Window:     l.window,
		RetryAfter: retryAfter(res.Oldest, l.window, now),
	}
}

// retryAfter is the whole number of seconds until the oldest request leaves
// the window, never less than one second.
func retryAfter(oldest time.Time, window time.Duration, now time.Time) time.Duration {
	if oldest.IsZero() {
		return window
	}
	wait := oldest.Add(window).Sub(now)
	secs := (wait + time.Second - 1) / time.Second
	if secs < 1 {
		secs = 1
	}
	return secs * time.Second
}
