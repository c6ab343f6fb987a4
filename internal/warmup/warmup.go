// Package warmup pre-fetches current conditions for a configured list of
// cities so the first caller after startup hits a warm cache.
package warmup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/noelpaton-og/globe-weather-api/internal/client"
	"github.com/noelpaton-og/globe-weather-api/internal/observability"
)

// Fetcher is implemented by the gateway service. Declared here to avoid a
// dependency cycle with the gateway package.
type Fetcher interface {
	Lookup(ctx context.Context, kind client.Kind, q client.Query) ([]byte, bool, error)
}

// Warmer warms the cache by prefetching current weather for a list of cities,
// once at startup and optionally on a schedule.
type Warmer struct {
	fetcher   Fetcher
	cities    []string
	logger    *zap.Logger
	scheduler *gocron.Scheduler
}

// New creates a Warmer for the given cities.
func New(fetcher Fetcher, cities []string, logger *zap.Logger) *Warmer {
	return &Warmer{fetcher: fetcher, cities: cities, logger: logger}
}

// Warm fetches current weather for each city concurrently, populating the
// cache through the normal lookup path. Returns an aggregated error if any
// city failed.
func (w *Warmer) Warm(ctx context.Context) error {
	start := time.Now()
	observability.CacheWarmTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("cities", len(w.cities)))
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(w.cities))
	for _, city := range w.cities {
		wg.Add(1)
		go func(city string) {
			defer wg.Done()
			if _, _, err := w.fetcher.Lookup(ctx, client.KindCurrent, client.Query{City: city}); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", city, err)
			}
		}(city)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if w.logger != nil {
		w.logger.Info("cache warming complete",
			zap.Int("cities", len(w.cities)),
			zap.Int("errors", len(errs)),
			zap.Duration("duration", time.Since(start)))
	}
	if len(errs) > 0 {
		observability.CacheWarmErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %v", errs)
	}
	return nil
}

// Start schedules periodic warming at the given interval. Call Stop during
// shutdown. A zero interval is an error; callers should simply not start the
// warmer when periodic warming is disabled.
func (w *Warmer) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("warm interval must be positive, got %s", interval)
	}
	w.scheduler = gocron.NewScheduler(time.UTC)
	_, err := w.scheduler.Every(interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := w.Warm(ctx); err != nil && w.logger != nil {
			w.logger.Warn("periodic cache warm failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cache warming: %w", err)
	}
	w.scheduler.StartAsync()
	return nil
}

// Stop halts periodic warming. Safe to call when Start was never called.
func (w *Warmer) Stop() {
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
}
