package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pricehawk-th/pricehawk/internal/config"
	"github.com/pricehawk-th/pricehawk/internal/database"
	"github.com/pricehawk-th/pricehawk/internal/seed"
)

func main() {
	// Command line flags
	var (
		dir    = flag.String("dir", "", "Directory with product dumps and match files (default from config)")
		dryRun = flag.Bool("dry-run", false, "Parse and report without writing to the database")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
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

	importDir := *dir
	if importDir == "" {
		importDir = cfg.Scraper.OutputDir
	}

	importer := seed.NewImporter(db, logger)
	importer.DryRun = *dryRun

	summary, err := importer.Run(ctx, importDir)
	if err != nil {
		logger.Error("import failed", "error", err)
		os.Exit(1)
	}

	pImported, pSkipped, pFailed := summary.ProductTotals()
	mImported, mSkipped, mFailed := summary.MatchTotals()

	logger.Info("import finished",
		"dir", importDir,
		"dry_run", *dryRun,
		"product_files", len(summary.Products),
		"products_imported", pImported,
		"products_skipped", pSkipped,
		"products_failed", pFailed,
		"match_files", len(summary.Matches),
		"matches_imported", mImported,
		"matches_skipped", mSkipped,
		"matches_failed", mFailed)

	if pFailed > 0 || mFailed > 0 {
		os.Exit(1)
	}
}
