package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const defaultMaxKeys = 100000

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a fixed-window limiter held in process memory. Windows are
// kept in an LRU so a flood of distinct clients cannot grow it without bound.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows *lru.Cache
	points  int
	period  time.Duration
	now     func() time.Time
}

func NewMemoryLimiter(points int, period time.Duration) (*MemoryLimiter, error) {
	return newMemoryLimiter(points, period, defaultMaxKeys, time.Now)
}

func newMemoryLimiter(points int, period time.Duration, maxKeys int, now func() time.Time) (*MemoryLimiter, error) {
	if points <= 0 || period <= 0 {
		return nil, fmt.Errorf("rate limit needs positive points and window, got %d per %s", points, period)
	}
	cache, err := lru.New(maxKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to create limiter cache: %w", err)
	}
	return &MemoryLimiter{windows: cache, points: points, period: period, now: now}, nil
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w := &window{resetAt: now.Add(l.period)}
	if v, ok := l.windows.Get(key); ok {
		if cur := v.(*window); now.Before(cur.resetAt) {
			w = cur
		}
	}

	d := Decision{Limit: l.points, ResetAt: w.resetAt}
	if w.count >= l.points {
		return d, nil
	}
	w.count++
	l.windows.Add(key, w)

	d.Allowed = true
	d.Remaining = l.points - w.count
	return d, nil
}
