package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pricehawk-th/pricehawk/internal/extract"
	"github.com/pricehawk-th/pricehawk/internal/models"
)

// Fetcher renders a product page and returns its HTML. *browser.Browser
// implements it.
type Fetcher interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// Store persists one scrape result. Attached optionally; without it the
// service only extracts.
type Store interface {
	Persist(ctx context.Context, scraped *models.ScrapedProduct) (*models.Product, error)
}

// Result is the outcome for one URL in a batch.
type Result struct {
	URL     string                 `json:"url"`
	OK      bool                   `json:"ok"`
	Product *models.ScrapedProduct `json:"product,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

const (
	// DefaultTimeout bounds a single product page end to end, rendering
	// included.
	DefaultTimeout = 60 * time.Second
	// DefaultDelay is the pause between URLs in a batch.
	DefaultDelay = 2 * time.Second
)

// Service scrapes product pages: fetch rendered HTML, run the retailer's
// extractor, optionally persist.
type Service struct {
	fetcher Fetcher
	store   Store
	logger  *slog.Logger

	Timeout time.Duration
	Delay   time.Duration
}

func NewService(fetcher Fetcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default().With("component", "scrape_service")
	}
	return &Service{
		fetcher: fetcher,
		logger:  logger,
		Timeout: DefaultTimeout,
		Delay:   DefaultDelay,
	}
}

// AttachStore turns on persistence for every successful scrape.
func (s *Service) AttachStore(store Store) {
	s.store = store
}

// ScrapeProduct fetches and extracts one product page within Timeout.
// When a store is attached the result is persisted too; a persist
// failure returns both the extracted product and the error.
func (s *Service) ScrapeProduct(ctx context.Context, pageURL string) (*models.ScrapedProduct, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	extractor, err := extract.ForURL(pageURL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("scraping product page", "url", pageURL)

	html, err := s.fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}

	product, err := extractor.Extract(html, pageURL)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if _, err := s.store.Persist(ctx, product); err != nil {
			return product, fmt.Errorf("failed to persist product: %w", err)
		}
	}

	s.logger.Info("scraped product",
		"url", pageURL,
		"sku", product.SKU,
		"name", product.Name,
		"has_price", product.CurrentPrice != nil)

	return product, nil
}

// ScrapeBatch walks the URLs sequentially with a polite delay between
// them. Failures are per-URL; a cancelled context marks the remaining
// URLs failed without fetching them.
func (s *Service) ScrapeBatch(ctx context.Context, urls []string) []Result {
	results := make([]Result, 0, len(urls))

	for i, pageURL := range urls {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{URL: pageURL, Error: err.Error()})
			continue
		}

		if i > 0 && s.Delay > 0 {
			select {
			case <-ctx.Done():
				results = append(results, Result{URL: pageURL, Error: ctx.Err().Error()})
				continue
			case <-time.After(s.Delay):
			}
		}

		product, err := s.ScrapeProduct(ctx, pageURL)
		if err != nil {
			s.logger.Error("scrape failed", "url", pageURL, "error", err)
			results = append(results, Result{URL: pageURL, Product: product, Error: err.Error()})
			continue
		}

		results = append(results, Result{URL: pageURL, OK: true, Product: product})
	}

	return results
}
