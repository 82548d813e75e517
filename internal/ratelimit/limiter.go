package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long until the window refills; zero when Allowed.
	RetryAfter time.Duration
}

// Limiter admits at most a fixed number of requests per key per window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// ExceededError is returned by callers that turn a denied Decision into an error.
type ExceededError struct {
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetrySeconds())
}

// RetrySeconds rounds RetryAfter up to whole seconds, never below 1.
func (e *ExceededError) RetrySeconds() int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

type fixedWindow struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a process-local fixed-window limiter. The whole quota
// refills at once when a key's window ends.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*fixedWindow
	now     func() time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*fixedWindow),
		now:     time.Now,
	}
}

// WithClock replaces the time source.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &fixedWindow{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}

	if w.count >= l.limit {
		return Decision{RetryAfter: w.resetAt.Sub(now)}, nil
	}
	w.count++
	return Decision{Allowed: true, Remaining: l.limit - w.count}, nil
}

// Sweep drops windows that have ended. It returns the number removed.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}
