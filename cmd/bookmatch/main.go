package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/novumlogic/bookmatch/internal/ai"
	"github.com/novumlogic/bookmatch/internal/auth"
	"github.com/novumlogic/bookmatch/internal/config"
	"github.com/novumlogic/bookmatch/internal/metrics"
	"github.com/novumlogic/bookmatch/internal/ratelimit"
	"github.com/novumlogic/bookmatch/internal/recommend"
	"github.com/novumlogic/bookmatch/internal/server"
	"github.com/novumlogic/bookmatch/internal/store"
	"github.com/novumlogic/bookmatch/internal/supabase"
	"github.com/novumlogic/bookmatch/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting bookmatch", "env", cfg.Env, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsHandler, recMetrics := setupMetrics(cfg.MetricsEnabled)

	limiter, closeLimiter := buildLimiter(ctx, cfg, logger)
	defer closeLimiter()

	keyFunc, err := ratelimit.KeyFuncFor(cfg.RateLimitKey)
	if err != nil {
		logger.Error("rate limit key", "error", err)
		os.Exit(1)
	}

	completer, err := ai.NewClient(cfg.OpenAIAPIKey,
		ai.WithEndpoint(cfg.OpenAIURL),
		ai.WithModel(cfg.OpenAIModel),
		ai.WithTimeout(cfg.OpenAITimeout),
		ai.WithLogger(logger.With("component", "ai")),
		ai.WithObserver(recMetrics),
	)
	if err != nil {
		logger.Error("completion client", "error", err)
		os.Exit(1)
	}

	gate := auth.NewGate(buildIdentity(cfg), logger.With("component", "auth"))

	deps := recommend.Deps{
		Auth:      gate,
		Limiter:   limiter,
		Window:    ai.NewWindowBuilder(ai.SystemInstruction),
		Completer: completer,
		Observer:  recMetrics,
		Logger:    logger.With("component", "recommend"),
	}
	var usageHandler *recommend.UsageHandler
	if cfg.UsageDBPath != "" {
		db, err := store.NewBoltStore(cfg.UsageDBPath)
		if err != nil {
			logger.Error("usage store", "error", err, "path", cfg.UsageDBPath)
			os.Exit(1)
		}
		defer db.Close()
		deps.Usage = db
		usageHandler = recommend.NewUsageHandler(gate, db, logger.With("component", "usage"))
	}

	handler := recommend.NewHandler(recommend.NewPipeline(deps), logger,
		recommend.WithKeyFunc(keyFunc),
		recommend.WithFailureStatus(cfg.UpstreamFailureStatus),
		recommend.WithObserver(recMetrics),
	)

	r := server.New(&server.Config{
		Logger:         logger,
		Env:            cfg.Env,
		Recommend:      handler,
		Usage:          usageHandler,
		MetricsHandler: metricsHandler,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.OpenAITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("stopped")
}

// setupMetrics returns a nil handler and nil collectors when disabled; the
// collectors are nil-safe.
func setupMetrics(enabled bool) (http.Handler, *metrics.RecommendMetrics) {
	if !enabled {
		return nil, nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewRecommendMetrics(reg)
}

func buildIdentity(cfg *config.Config) *supabase.Client {
	client := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseTimeout)
	if !cfg.SupabaseJWTPrecheck {
		client.WithoutPrecheck()
	}
	return client
}

// buildLimiter uses Redis when REDIS_ADDR is set so the quota is shared across
// replicas, otherwise an in-process limiter swept in the background.
func buildLimiter(ctx context.Context, cfg *config.Config, logger *logging.Logger) (ratelimit.Limiter, func()) {
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			// The limiter fails open per request, so an unreachable Redis is not fatal.
			logger.Warn("redis not available", "error", err)
		}
		logger.Info("rate limiter", "backend", "redis", "limit", cfg.RateLimitRequests, "window", cfg.RateLimitWindow.String())
		return ratelimit.NewRedisLimiter(client, cfg.RateLimitRequests, cfg.RateLimitWindow).WithLogger(logger), func() { client.Close() }
	}

	limiter := ratelimit.NewMemoryLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	logger.Info("rate limiter", "backend", "memory", "limit", cfg.RateLimitRequests, "window", cfg.RateLimitWindow.String())

	// Periodic cleanup of expired windows for per-IP keys
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := limiter.Sweep(); n > 0 {
					logger.Debug("rate limiter swept", "keys", n)
				}
			}
		}
	}()
	return limiter, func() {}
}
