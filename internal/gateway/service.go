// Package gateway holds the cache-aside lookup core shared by every resource
// endpoint: cache lookup, upstream fetch on miss, normalization, cache store.
package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noelpaton-og/globe-weather-api/internal/cache"
	"github.com/noelpaton-og/globe-weather-api/internal/client"
	"github.com/noelpaton-og/globe-weather-api/internal/normalize"
	"github.com/noelpaton-og/globe-weather-api/internal/observability"
)

// Fetcher performs the outbound provider call. Implemented by client.Client.
type Fetcher interface {
	Fetch(ctx context.Context, kind client.Kind, q client.Query) ([]byte, error)
}

// Service orchestrates normalized weather lookups. Lookup is reentrant; the
// cache and the fetcher own their concurrency. Two concurrent misses for the
// same key may both call upstream; the later Set simply overwrites.
type Service struct {
	fetcher Fetcher
	cache   cache.Cache
	ttl     time.Duration
}

// NewService creates a Service caching normalized responses for ttl.
func NewService(fetcher Fetcher, c cache.Cache, ttl time.Duration) *Service {
	return &Service{
		fetcher: fetcher,
		cache:   c,
		ttl:     ttl,
	}
}

// CacheKey composes the cache key from the resource kind, the normalized
// (lower-cased, trimmed) city, and any kind-specific parameter.
func CacheKey(kind client.Kind, q client.Query) string {
	key := string(kind) + ":" + strings.ToLower(strings.TrimSpace(q.City))
	switch kind {
	case client.KindForecast:
		key += ":" + strconv.Itoa(q.Days)
	case client.KindAstronomy:
		key += ":" + q.Date
	}
	return key
}

// Lookup returns the normalized response body for the given kind and query,
// serving from cache when possible. cached reports whether the body came from
// the cache. Cache failures degrade to an upstream fetch; they never fail the
// request. Errors from a failed fetch or normalization are never cached.
func (s *Service) Lookup(ctx context.Context, kind client.Kind, q client.Query) (body []byte, cached bool, err error) {
	key := CacheKey(kind, q)
	start := time.Now()
	logger := loggerFromContext(ctx)

	value, ok, getErr := s.cache.Get(ctx, key)
	if getErr != nil {
		if logger != nil {
			logger.Warn("cache get failed", zap.String("key", key), zap.Error(getErr))
		}
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues(string(kind)).Inc()
		if logger != nil {
			logger.Debug("cache hit", zap.String("key", key), zap.Duration("duration", time.Since(start)))
		}
		return value, true, nil
	}
	observability.CacheMissesTotal.WithLabelValues(string(kind)).Inc()
	if logger != nil {
		logger.Debug("cache miss, fetching upstream", zap.String("key", key))
	}

	raw, err := s.fetcher.Fetch(ctx, kind, q)
	if err != nil {
		return nil, false, fmt.Errorf("fetch %s for %q: %w", kind, q.City, err)
	}

	body, err = normalize.Normalize(kind, raw)
	if err != nil {
		return nil, false, fmt.Errorf("normalize %s for %q: %w", kind, q.City, err)
	}

	if setErr := s.cache.Set(ctx, key, body, s.ttl); setErr != nil && logger != nil {
		logger.Warn("cache set failed", zap.String("key", key), zap.Error(setErr))
	}
	if logger != nil {
		logger.Debug("served from upstream", zap.String("key", key), zap.Duration("duration", time.Since(start)))
	}
	return body, false, nil
}

// loggerFromContext extracts the request-scoped zap.Logger if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return nil
}
