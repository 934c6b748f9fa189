package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"chat-relay-backend/internal/config"
	"chat-relay-backend/internal/database"
	"chat-relay-backend/internal/handlers"
	"chat-relay-backend/internal/logging"
	"chat-relay-backend/internal/metrics"
	"chat-relay-backend/internal/ratelimit"
	"chat-relay-backend/internal/router"
	"chat-relay-backend/internal/services"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("✗ Configuration error: %v", err)
	}

	// ──── Step 2: Initialize Logger ────
	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("✗ Logger initialization failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting chat relay", zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 3: Metrics ────
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	// ──── Step 4: Initialize Gemini Client ────
	completer, err := services.NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return fmt.Errorf("gemini client: %w", err)
	}
	defer completer.Close()
	logger.Info("Gemini client initialized", zap.String("model", completer.Model()))

	// ──── Step 5: Rate Limit Store ────
	var store ratelimit.Store
	switch cfg.RateLimitStore {
	case config.StoreRedis:
		client, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection: %w", err)
		}
		defer client.Close()
		store = ratelimit.NewRedisStore(client)
	default:
		mem, err := ratelimit.NewMemoryStore(cfg.RateLimitMaxClients)
		if err != nil {
			return fmt.Errorf("memory rate limit store: %w", err)
		}
		store = mem
	}
	limiter := ratelimit.New(store, cfg.RateLimitMaxRequests, cfg.RateLimitWindow)
	logger.Info("Rate limiter ready",
		zap.String("store", cfg.RateLimitStore),
		zap.Int("limit", limiter.Limit()),
		zap.Duration("window", limiter.Window()),
	)

	// ──── Step 6: Services & Handlers ────
	relay := services.NewRelayService(completer, services.RelayConfig{
		Temperature:          cfg.GeminiTemperature,
		Timeout:              cfg.UpstreamTimeout,
		ExposeUpstreamErrors: cfg.ExposeUpstreamErrors,
	}, logger, m)
	chatHandler := handlers.NewChatHandler(relay, limiter, logger, m)

	// ──── Step 7: Start HTTP Server ────
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router.New(logger, chatHandler, m, router.Options{
			AllowedOrigins:    cfg.AllowedOrigins,
			TrustProxyHeaders: cfg.TrustProxyHeaders,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Chat relay ready", zap.String("addr", "http://localhost:"+cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
