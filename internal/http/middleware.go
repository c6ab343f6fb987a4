package http

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/noelpaton-og/globe-weather-api/internal/auth"
	"github.com/noelpaton-og/globe-weather-api/internal/observability"
	"github.com/noelpaton-og/globe-weather-api/internal/ratelimit"
)

// CORSMiddleware sets the permissive CORS headers on every response and
// short-circuits OPTIONS preflight requests before any routing, auth, or
// rate limiting runs. Wrap it around the router, not inside it, so preflights
// for unrouted paths still answer 200.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, x-api-key")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Add("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CorrelationIDMiddleware assigns every request a correlation ID (propagated
// from X-Correlation-ID when the caller sent one) and stores a request-scoped
// logger in the context.
func CorrelationIDMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			corrID := r.Header.Get("X-Correlation-ID")
			if corrID == "" {
				corrID = uuid.New().String()
			}

			ctx := context.WithValue(r.Context(), "correlation_id", corrID)
			w.Header().Set("X-Correlation-ID", corrID)

			reqLogger := logger.With(zap.String("correlation_id", corrID))
			ctx = context.WithValue(ctx, "logger", reqLogger)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MetricsMiddleware records request totals, latency, and in-flight count.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTPRequestsInFlight.Inc()
		globalInFlightTracker.Increment()
		defer func() {
			observability.HTTPRequestsInFlight.Dec()
			globalInFlightTracker.Decrement()
		}()

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		route := getRoute(r)
		observability.HTTPRequestsTotal.WithLabelValues(r.Method, route, statusCodeString(recorder.statusCode)).Inc()
		observability.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
	})
}

// APIKeyMiddleware enforces the x-api-key shared secret on every non-exempt
// path. Denials are terminal 401s with a structured body.
func APIKeyMiddleware(gate *auth.Gate) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gate.Exempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if !gate.Allow(r.Header.Get("x-api-key")) {
				if logger := loggerFrom(r); logger != nil {
					logger.Warn("unauthorized request", zap.String("path", r.URL.Path))
				}
				observability.AuthDeniedTotal.Inc()
				writeError(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware enforces the per-identity fixed window, and optionally a
// process-wide token bucket in front of it (nil disables the global guard).
// Health and metrics paths are never limited.
func RateLimitMiddleware(limiter *ratelimit.Limiter, global *rate.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" || strings.Contains(r.URL.Path, "/ping") {
				next.ServeHTTP(w, r)
				return
			}
			if global != nil && !global.Allow() {
				observability.RateLimitDeniedTotal.Inc()
				writeRateLimitError(w, r)
				return
			}
			if !limiter.Allow(clientIP(r)) {
				if logger := loggerFrom(r); logger != nil {
					logger.Debug("rate limit denied", zap.String("identity", clientIP(r)))
				}
				observability.RateLimitDeniedTotal.Inc()
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Ceiling()))
				w.Header().Set("X-RateLimit-Window", limiter.Window().String())
				writeRateLimitError(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimitError(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusTooManyRequests, errorBody{
		Error: "Too many requests from this IP, please try again later.",
	})
}

// clientIP resolves the caller identity: first X-Forwarded-For hop when
// present (the gateway may sit behind a proxy), else the remote address host.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func getRoute(r *http.Request) string {
	path := r.URL.Path
	switch {
	case path == "/weather", path == "/forecast", path == "/airquality",
		path == "/astronomy", path == "/timezone",
		path == "/health", path == "/metrics":
		return path
	case strings.Contains(path, "/ping"):
		return "/ping"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func statusCodeString(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
