package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"storefront-search/internal/config"
	"storefront-search/internal/events"
	"storefront-search/internal/logging"
	"storefront-search/internal/services"
	"storefront-search/pkg/cache"
	"storefront-search/pkg/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	client := transport.NewClient(transport.WithLogger(logger.Named("transport")))

	observers := services.MultiObserver{services.NewLogObserver(logger)}
	if cfg.Kafka.Broker != "" {
		publisher := events.NewPublisher(cfg.Kafka.Broker, cfg.Kafka.Topic, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("failed to close kafka writer", zap.Error(err))
			}
		}()
		observers = append(observers, publisher)
		logger.Info("publishing search events", zap.String("broker", cfg.Kafka.Broker), zap.String("topic", cfg.Kafka.Topic))
	}

	resolver := services.NewResolver(client, services.ResolverConfig{
		Endpoint: services.Endpoint{
			Host:    cfg.Search.Host,
			Port:    cfg.Search.Port,
			Path:    cfg.Search.Path,
			Timeout: cfg.Search.Timeout,
			Headers: cfg.AuthHeaders(),
		},
		Retry: services.RetryPolicy{
			Attempts: cfg.Search.RetryAttempts,
			Delay:    cfg.Search.RetryDelay,
		},
		IsProduction: cfg.IsProduction(),
	},
		services.WithObserver(observers),
		services.WithResolverLogger(logger.Named("resolver")),
	)

	redisCache := cache.NewRedisCache(context.Background(), cfg.Redis.URL, cfg.Redis.DB, cfg.Redis.TTL, logger)
	defer func() { _ = redisCache.Close() }()

	detailOpts := []services.DetailOption{
		services.WithDetailLogger(logger.Named("details")),
		services.WithRateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit.PerSecond), cfg.RateLimit.Burst)),
	}
	if redisCache.IsAvailable() {
		detailOpts = append(detailOpts, services.WithCache(redisCache))
	}
	details := services.NewDetailFetcher(client, cfg.Products.URL, transport.Options{
		Timeout: cfg.Products.Timeout,
		Headers: cfg.AuthHeaders(),
	}, detailOpts...)

	srv := &server{
		resolver: resolver,
		details:  details,
		cache:    redisCache,
		limiter:  newIPRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
		logger:   logger.Named("http"),
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		// both strategies with retries plus a detail fetch
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", httpServer.Addr),
			zap.String("environment", cfg.Environment),
			zap.String("search_upstream", transport.BuildURL(cfg.Search.Host, cfg.Search.Port, cfg.Search.Path)))
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return
	}
	logger.Info("server stopped gracefully")
}
