package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pricehawk-th/pricehawk/internal/browser"
	"github.com/pricehawk-th/pricehawk/internal/config"
	"github.com/pricehawk-th/pricehawk/internal/database"
	"github.com/pricehawk-th/pricehawk/internal/events"
	"github.com/pricehawk-th/pricehawk/internal/models"
	"github.com/pricehawk-th/pricehawk/internal/pipeline"
	"github.com/pricehawk-th/pricehawk/internal/scrape"
)

const defaultSchedule = "0 0 */12 * * *"

func main() {
	// Command line flags
	var (
		once      = flag.Bool("once", false, "Run a single update pass and exit")
		retailers = flag.String("retailers", "", "Comma-separated retailer codes to update (default all)")
		overrides = flag.String("overrides", "configs/retailers.yaml", "Per-retailer pacing overrides file")
		schedule  = flag.String("schedule", defaultSchedule, "Cron schedule with seconds field")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

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
		logger.Error("failed to create browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	// Scrape service with persistence: every re-check writes the product
	// row, a history entry and the outbox event in one transaction.
	publisher := events.NewPublisher(db, logger)
	svc := scrape.NewService(b, logger)
	svc.Timeout = cfg.Scraper.ScrapeTimeout
	svc.AttachStore(scrape.NewDBStore(db, publisher, logger))

	updater := pipeline.NewUpdater(svc,
		database.NewProductRepository(db),
		database.NewRunRepository(db),
		logger)
	updater.MaxWorkers = cfg.Pipeline.Workers
	updater.MinDelay = cfg.Pipeline.MinDelay
	updater.MaxDelay = cfg.Pipeline.MaxDelay
	updater.CatalogLimit = cfg.Pipeline.BatchLimit

	if *retailers != "" {
		for _, code := range strings.Split(*retailers, ",") {
			if code = strings.TrimSpace(code); code != "" {
				updater.Retailers = append(updater.Retailers, code)
			}
		}
	}

	pacing, err := pipeline.LoadOverrides(*overrides)
	if err != nil {
		logger.Error("failed to load retailer overrides", "error", err)
		os.Exit(1)
	}
	if pacing != nil {
		updater.Overrides = pacing
		logger.Info("retailer overrides loaded", "file", *overrides, "retailers", len(pacing))
	}

	if *once {
		if !runUpdate(ctx, updater, logger) {
			os.Exit(1)
		}
		return
	}

	// Daemon mode: run immediately, then on the cron schedule.
	var running atomic.Bool
	job := func() {
		if !running.CompareAndSwap(false, true) {
			logger.Warn("previous update run still in progress, skipping")
			return
		}
		defer running.Store(false)
		runUpdate(ctx, updater, logger)
	}

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(*schedule, job); err != nil {
		logger.Error("invalid cron schedule", "schedule", *schedule, "error", err)
		os.Exit(1)
	}

	go job()
	c.Start()
	logger.Info("price updater scheduled", "schedule", *schedule)

	<-ctx.Done()

	// Let an in-flight run wind down before exiting.
	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Info("price updater stopped")
}

func runUpdate(ctx context.Context, updater *pipeline.Updater, logger *slog.Logger) bool {
	summary, err := updater.Run(ctx)
	if err != nil {
		logger.Error("update run failed", "error", err)
		return false
	}

	logger.Info("update run finished",
		"run_id", summary.RunID,
		"status", summary.Status,
		"total", summary.Total,
		"checked", summary.Checked,
		"changed", summary.Changed,
		"failed", summary.Failed,
		"duration", summary.Duration.Round(time.Second).String())
	return summary.Status == models.RunStatusCompleted
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
