// Package ratelimit implements a fixed-window request counter. Windows do not
// slide, so a burst straddling a boundary can admit up to twice the limit in a
// short span.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultWindow = 60 * time.Second
	DefaultMax    = 10
)

type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// CounterStore counts hits per key inside the current window. Hit opens a new
// window when none is active and returns the count including this hit.
type CounterStore interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

type Limiter struct {
	store  CounterStore
	window time.Duration
	max    int
}

func New(store CounterStore, window time.Duration, max int) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMax
	}
	return &Limiter{store: store, window: window, max: max}
}

func (l *Limiter) Max() int { return l.max }

func (l *Limiter) Check(ctx context.Context, key string) (Result, error) {
	count, resetIn, err := l.store.Hit(ctx, key, l.window)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	remaining := l.max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(l.max),
		Remaining: remaining,
		ResetIn:   resetIn,
	}, nil
}
