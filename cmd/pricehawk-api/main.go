package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pricehawk-th/pricehawk/internal/api"
	"github.com/pricehawk-th/pricehawk/internal/browser"
	"github.com/pricehawk-th/pricehawk/internal/config"
	"github.com/pricehawk-th/pricehawk/internal/database"
	"github.com/pricehawk-th/pricehawk/internal/events"
	"github.com/pricehawk-th/pricehawk/internal/matching"
	"github.com/pricehawk-th/pricehawk/internal/scrape"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database connection
	db, err := database.New(ctx, cfg.Database.ConnString())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Browser setup
	b, err := browser.New(&browser.Options{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.NavTimeout,
		UserAgents:     cfg.Browser.UserAgents,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
	})
	if err != nil {
		logger.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	// Initialize event publisher with database (for transactional outbox)
	publisher := events.NewPublisher(db, logger)

	// Initialize Redis client for Relay
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("invalid redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	// Test Redis connection
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	// Initialize and start Relay for outbox processing
	relay := database.NewRelay(db, redisClient, logger, database.RelayConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
	})
	go func() {
		if err := relay.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("relay stopped with error", "error", err)
		}
	}()

	// Repositories
	products := database.NewProductRepository(db)
	matches := database.NewMatchRepository(db)
	history := database.NewHistoryRepository(db)
	runs := database.NewRunRepository(db)

	// Scrape service with persistence and auto-matching on discovery
	scrapeService := scrape.NewService(b, logger)
	scrapeService.Timeout = cfg.Scraper.ScrapeTimeout

	autoMatcher := matching.NewAutoMatcher(products, matches, logger)
	autoMatcher.SetMinConfidence(cfg.Matching.MinConfidence)

	store := scrape.NewDBStore(db, publisher, logger)
	store.SetDiscoveryHook(autoMatcher)
	scrapeService.AttachStore(store)

	// Suggestion matcher for the review endpoints
	suggester := matching.NewMatcher()
	suggester.MinConfidence = cfg.Matching.MinConfidence

	// Initialize API handlers and router
	handlers := api.NewHandlers(products, matches, history, runs, scrapeService, suggester, relay, logger)
	router := api.NewRouter(handlers, api.RouterConfig{
		CORSOrigins:     cfg.Server.CORSOrigins,
		ScrapeRateLimit: cfg.Server.ScrapeRateLimit,
		RequestTimeout:  cfg.Server.WriteTimeout,
	})

	// Start server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
