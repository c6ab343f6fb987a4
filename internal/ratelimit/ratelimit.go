package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a fixed-window request counter keyed by caller identity
// (typically the client IP). Each identity gets at most `ceiling` requests
// per window; the counter resets when a new window starts. Windows are
// created lazily per identity and never evicted, bounded by distinct-identity
// cardinality.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	ceiling int
	length  time.Duration

	now func() time.Time // injectable for tests
}

type window struct {
	start time.Time
	count int
}

// New creates a fixed-window Limiter allowing ceiling requests per length.
func New(ceiling int, length time.Duration) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		ceiling: ceiling,
		length:  length,
		now:     time.Now,
	}
}

// Allow records one request for identity and reports whether it is within the
// ceiling for the current window. Once the ceiling is reached rejection is
// monotonic until the window rolls over. Concurrent callers for the same
// identity never lose increments.
func (l *Limiter) Allow(identity string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identity]
	if !ok || now.Sub(w.start) >= l.length {
		l.windows[identity] = &window{start: now, count: 1}
		return true
	}

	w.count++
	return w.count <= l.ceiling
}

// Ceiling returns the per-window request ceiling.
func (l *Limiter) Ceiling() int {
	return l.ceiling
}

// Window returns the window length.
func (l *Limiter) Window() time.Duration {
	return l.length
}
