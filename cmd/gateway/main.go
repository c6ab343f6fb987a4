package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/noelpaton-og/globe-weather-api/internal/auth"
	"github.com/noelpaton-og/globe-weather-api/internal/cache"
	"github.com/noelpaton-og/globe-weather-api/internal/client"
	"github.com/noelpaton-og/globe-weather-api/internal/config"
	"github.com/noelpaton-og/globe-weather-api/internal/gateway"
	httphandler "github.com/noelpaton-og/globe-weather-api/internal/http"
	"github.com/noelpaton-og/globe-weather-api/internal/lifecycle"
	"github.com/noelpaton-og/globe-weather-api/internal/observability"
	"github.com/noelpaton-og/globe-weather-api/internal/ratelimit"
	"github.com/noelpaton-og/globe-weather-api/internal/warmup"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	// Missing credentials degrade instead of crashing: an unset gateway
	// secret fails every authenticated request closed with 401, an unset
	// provider key surfaces as mirrored upstream 401/403 responses.
	if cfg.GatewaySecret == "" {
		logger.Warn("PRIVATE_API_KEY unset; all non-health requests will be rejected")
	}
	if cfg.ProviderAPIKey == "" {
		logger.Warn("WEATHER_API_KEY unset; upstream calls will fail")
	}

	weatherClient := client.New(cfg.ProviderAPIKey, cfg.UpstreamBaseURL, cfg.UpstreamTimeout)
	if cfg.BreakerEnabled {
		cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "weatherapi",
			MaxRequests: 5,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Info("circuit breaker transition",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		weatherClient.SetBreaker(cb)
		logger.Info("circuit breaker enabled")
	}

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	svc := gateway.NewService(weatherClient, cacheSvc, cfg.CacheTTL)
	gate := auth.NewGate(cfg.GatewaySecret)
	limiter := ratelimit.New(cfg.RateLimitCeiling, cfg.RateLimitWindow)

	var global *rate.Limiter
	if cfg.GlobalRateRPS > 0 {
		global = rate.NewLimiter(rate.Limit(cfg.GlobalRateRPS), cfg.GlobalRateBurst)
		logger.Info("global rate guard enabled", zap.Int("rps", cfg.GlobalRateRPS), zap.Int("burst", cfg.GlobalRateBurst))
	}

	handler := httphandler.NewHandler(svc, logger, cfg.ForecastDays)
	router := httphandler.NewRouter(handler, gate, limiter, global, logger)

	var warmer *warmup.Warmer
	if len(cfg.WarmCities) > 0 {
		warmer = warmup.New(svc, cfg.WarmCities, logger)
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := warmer.Warm(warmCtx); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
		if cfg.WarmInterval > 0 {
			if err := warmer.Start(cfg.WarmInterval); err != nil {
				logger.Error("periodic cache warming not started", zap.Error(err))
			}
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	if warmer != nil {
		warmer.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
