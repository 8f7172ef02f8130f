package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pricehawk-th/pricehawk/internal/browser"
	"github.com/pricehawk-th/pricehawk/internal/config"
	"github.com/pricehawk-th/pricehawk/internal/database"
	"github.com/pricehawk-th/pricehawk/internal/events"
	"github.com/pricehawk-th/pricehawk/internal/scrape"
	"github.com/pricehawk-th/pricehawk/internal/storage"
)

func main() {
	// Command line flags
	var (
		urlsFile = flag.String("urls", "", "File with product URLs, one per line")
		outDir   = flag.String("out", "", "Output directory for per-retailer JSON dumps (default from config)")
		persist  = flag.Bool("db", false, "Also persist results to the database")
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

	urls, err := collectURLs(*urlsFile, flag.Args())
	if err != nil {
		logger.Error("failed to read urls", "error", err)
		os.Exit(1)
	}
	if len(urls) == 0 {
		logger.Error("no urls given; pass -urls <file> or URLs as arguments")
		os.Exit(1)
	}

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

	svc := scrape.NewService(b, logger)
	svc.Timeout = cfg.Scraper.ScrapeTimeout

	// Optional database persistence. The store writes outbox events too;
	// the API server's relay drains them whenever it runs next.
	if *persist {
		db, err := database.New(ctx, cfg.Database.ConnString())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		publisher := events.NewPublisher(db, logger)
		svc.AttachStore(scrape.NewDBStore(db, publisher, logger))
		logger.Info("database persistence enabled")
	}

	dir := *outDir
	if dir == "" {
		dir = cfg.Scraper.OutputDir
	}
	dumps, err := storage.NewResultStore(dir)
	if err != nil {
		logger.Error("failed to open output directory", "error", err)
		os.Exit(1)
	}

	logger.Info("scraping product pages", "urls", len(urls), "output_dir", dir)

	results := svc.ScrapeBatch(ctx, urls)

	scraped, failed := 0, 0
	for _, res := range results {
		if !res.OK {
			failed++
			continue
		}
		scraped++
		if err := dumps.Add(res.Product); err != nil {
			logger.Warn("failed to record result", "url", res.URL, "error", err)
		}
	}

	if err := dumps.Flush(); err != nil {
		logger.Error("failed to write dump files", "error", err)
		os.Exit(1)
	}

	for code, n := range dumps.Counts() {
		logger.Info("dump written", "file", dumps.FilePath(code), "products", n)
	}
	logger.Info("scrape finished", "scraped", scraped, "failed", failed)

	if scraped == 0 {
		os.Exit(1)
	}
}

// collectURLs merges the -urls file with positional arguments. Blank
// lines and # comments in the file are skipped.
func collectURLs(path string, args []string) ([]string, error) {
	urls := make([]string, 0, len(args))

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			urls = append(urls, line)
		}
	}

	urls = append(urls, args...)
	return urls, nil
}
