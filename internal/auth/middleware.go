package auth

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// rateLimiter tracks failed API key attempts per IP.
type rateLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	now      func() time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		attempts: make(map[string][]time.Time),
		now:      time.Now,
	}
}

const (
	rateLimitWindow  = 1 * time.Minute
	rateLimitMaxFail = 10
)

// prune drops attempts outside the window and returns the remaining ones.
// Caller holds mu.
func (rl *rateLimiter) prune(ip string) []time.Time {
	cutoff := rl.now().Add(-rateLimitWindow)
	valid := rl.attempts[ip][:0]
	for _, t := range rl.attempts[ip] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		delete(rl.attempts, ip)
		return nil
	}
	rl.attempts[ip] = valid
	return valid
}

// limited reports whether ip has used up its failed attempts.
func (rl *rateLimiter) limited(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.prune(ip)) >= rateLimitMaxFail
}

// recordFailure records a failed attempt.
func (rl *rateLimiter) recordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.attempts[ip] = append(rl.prune(ip), rl.now())
}

// RequireAPIKey is middleware that validates Bearer token auth for /api/ routes
// and puts the key's owner in the request context.
// Non-API routes (health, metrics, public photo reads) pass through untouched.
// Returns 401 for missing/invalid keys, 429 for rate-limited IPs.
func RequireAPIKey(apiKeys *APIKeyStore, next http.Handler) http.Handler {
	limiter := newRateLimiter()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only intercept /api/ paths
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}

		key := strings.TrimPrefix(authHeader, "Bearer ")

		// Check rate limit before validating
		if limiter.limited(ip) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}

		user, err := apiKeys.Validate(key)
		if err != nil {
			slog.Error("validating api key", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if user == nil {
			limiter.recordFailure(ip)
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
