package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// Quota reports the window accounting as seen at the current time: the cap,
// calls still admitted before the cap is hit, and when the window closes.
// A closed or unopened window reports the full cap and a zero reset time.
func (l *Limiter) Quota() (limit, remaining int, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.window
	if w.Start.IsZero() || now.Sub(w.Start) >= Window {
		return WindowCap, WindowCap, time.Time{}
	}
	remaining = WindowCap - w.Count
	if remaining < 0 {
		remaining = 0
	}
	return WindowCap, remaining, w.Start.Add(Window)
}

// Middleware returns an HTTP middleware that publishes the limiter's quota on
// every response. Enforcement happens in the agent; this only informs
// gateway callers.
//
//	X-RateLimit-Mode      none, burst or pace
//	X-RateLimit-Limit     calls admitted per window
//	X-RateLimit-Remaining calls left in the current window
//	X-RateLimit-Reset     Unix time the current window closes (omitted when idle)
func Middleware(limiter *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit, remaining, resetAt := limiter.Quota()
			h := w.Header()
			h.Set("X-RateLimit-Mode", limiter.Mode().String())
			h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !resetAt.IsZero() {
				h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
			}
			next.ServeHTTP(w, r)
		})
	}
}
