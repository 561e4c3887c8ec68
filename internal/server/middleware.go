// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// MIDDLEWARE CHAIN
// =============================================================================

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain composes middlewares so the first listed runs outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// =============================================================================
// RECOVERY
// =============================================================================

// RecoveryMiddleware converts handler panics into 500 responses instead of
// killing the connection.
func RecoveryMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Printf("PANIC_RECOVERED | method=%s path=%s panic=%v",
						r.Method, r.URL.Path, rec)
					writeDetail(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// SECURITY HEADERS
// =============================================================================

// SecurityHeadersMiddleware sets conservative response headers.
func SecurityHeadersMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// CORS
// =============================================================================

// CORSMiddleware allows browser clients from any origin and answers
// preflight requests.
func CORSMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// REQUEST LOGGING
// =============================================================================

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs one line per request with a generated request ID.
func LoggingMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := uuid.NewString()[:8]
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.Printf("HTTP_REQUEST | id=%s method=%s path=%s status=%d ip=%s duration=%dms",
				reqID, r.Method, r.URL.Path, rec.status, clientIP(r),
				time.Since(start).Milliseconds())
		})
	}
}

// clientIP extracts the remote IP, stripping the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// =============================================================================
// RATE LIMITING
// =============================================================================

// rateLimiter is a per-IP sliding-window counter.
type rateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	limit     int
	requests  map[string][]time.Time
	lastSweep time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		window:   window,
		limit:    limit,
		requests: make(map[string][]time.Time),
	}
}

// allow records a request for ip and reports whether it is within limits.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	if now.Sub(rl.lastSweep) > rl.window {
		rl.sweep(cutoff)
		rl.lastSweep = now
	}

	kept := rl.requests[ip][:0]
	for _, t := range rl.requests[ip] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= rl.limit {
		rl.requests[ip] = kept
		return false
	}
	rl.requests[ip] = append(kept, now)
	return true
}

// sweep drops IPs whose requests all fall outside the window, so idle
// clients do not accumulate map entries forever. Caller holds rl.mu.
func (rl *rateLimiter) sweep(cutoff time.Time) {
	for ip, times := range rl.requests {
		kept := times[:0]
		for _, t := range times {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(rl.requests, ip)
			continue
		}
		rl.requests[ip] = kept
	}
}

// RateLimitMiddleware rejects clients exceeding limit requests per window
// with 429.
func RateLimitMiddleware(limit int, window time.Duration) Middleware {
	rl := newRateLimiter(limit, window)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.allow(ip) {
				log.Printf("RATE_LIMITED | ip=%s path=%s", ip, r.URL.Path)
				writeDetail(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
