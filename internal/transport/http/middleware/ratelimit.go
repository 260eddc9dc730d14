package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"leaveflow/internal/platform/ratelimit"
	"leaveflow/internal/transport/http/api"
	"leaveflow/internal/transport/http/shared"
)

// limiter enforces one budget against a shared counter. Keys are namespaced
// by scope so the general and decision budgets never share a bucket.
type limiter struct {
	counter ratelimit.Counter
	scope   string
	limit   int
	window  time.Duration
}

// RateLimit caps every request per caller. Callers are keyed by tenant and
// user when authenticated, by client IP otherwise.
func RateLimit(counter ratelimit.Counter, limit int, window time.Duration) func(http.Handler) http.Handler {
	l := limiter{counter: counter, scope: "all", limit: limit, window: window}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DecisionRateLimit gives approve, reject and manual sweep calls a separate
// budget of half the base limit. Other routes pass through.
func DecisionRateLimit(counter ratelimit.Counter, baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	l := limiter{counter: counter, scope: "decide", limit: max(baseLimit/2, 1), window: window}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isDecisionRoute(r) && !l.allow(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.TenantID + ":" + user.UserID
	}
	return "ip:" + shared.ClientIP(r)
}

// allow counts the request and writes the 429 itself when over budget. A
// counter failure lets the request through.
func (l limiter) allow(w http.ResponseWriter, r *http.Request) bool {
	if l.limit <= 0 || l.counter == nil {
		return true
	}
	key := l.scope + ":" + callerKey(r)
	count, reset, err := l.counter.Hit(r.Context(), key, l.window)
	if err != nil {
		slog.Warn("rate counter unavailable", "key", key, "err", err)
		return true
	}

	resetIn := ceilSeconds(time.Until(reset))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(l.limit-count, 0)))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetIn))
	if count <= l.limit {
		return true
	}

	w.Header().Set("Retry-After", strconv.Itoa(max(resetIn, 1)))
	slog.Warn("rate limit exceeded", "key", key, "path", r.URL.Path, "method", r.Method, "limit", l.limit)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func isDecisionRoute(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	path := strings.TrimPrefix(strings.TrimSpace(r.URL.Path), "/api/v1")
	if path == "/escalation/sweep" {
		return true
	}
	return strings.HasPrefix(path, "/approvals/") &&
		(strings.HasSuffix(path, "/approve") || strings.HasSuffix(path, "/reject"))
}
