package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pricehawk-th/pricehawk/internal/database"
	"github.com/pricehawk-th/pricehawk/internal/events"
	"github.com/pricehawk-th/pricehawk/internal/matching"
	"github.com/pricehawk-th/pricehawk/internal/models"
)

// Narrow views of the database repositories and the publisher so the
// store is testable with mocks.
type txRunner interface {
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
}

type retailerStore interface {
	GetOrCreate(ctx context.Context, retailer models.Retailer) (*models.Retailer, error)
}

type productStore interface {
	GetBySKU(ctx context.Context, retailerID, sku string) (*models.Product, error)
	UpsertWithTx(ctx context.Context, tx pgx.Tx, p *models.Product) (*models.Product, error)
}

type historyStore interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, productID int64, price float64) error
}

type eventPublisher interface {
	PublishProductDiscoveredTx(ctx context.Context, tx pgx.Tx, payload *events.ProductDiscoveredPayload) error
	PublishPriceChangedTx(ctx context.Context, tx pgx.Tx, payload *events.PriceChangedPayload) error
}

type discoveryHook interface {
	OnDiscovered(ctx context.Context, discovered *models.Product) (int, error)
}

// DBStore persists scrape results: retailer get-or-create, product
// upsert, price history row and the matching outbox event commit in one
// transaction. An optional discovery hook runs after commit for products
// seen the first time.
type DBStore struct {
	db        txRunner
	retailers retailerStore
	products  productStore
	history   historyStore
	publisher eventPublisher
	hook      discoveryHook
	logger    *slog.Logger
}

func NewDBStore(db *database.DB, publisher *events.Publisher, logger *slog.Logger) *DBStore {
	if logger == nil {
		logger = slog.Default().With("component", "scrape_store")
	}
	return &DBStore{
		db:        db,
		retailers: database.NewRetailerRepository(db),
		products:  database.NewProductRepository(db),
		history:   database.NewHistoryRepository(db),
		publisher: publisher,
		logger:    logger,
	}
}

// SetDiscoveryHook wires the auto-matcher in. Hook failures are logged,
// never returned.
func (s *DBStore) SetDiscoveryHook(hook discoveryHook) {
	s.hook = hook
}

func (s *DBStore) Persist(ctx context.Context, scraped *models.ScrapedProduct) (*models.Product, error) {
	if scraped == nil || !scraped.HasCore() {
		return nil, fmt.Errorf("nothing to persist: page had no product data")
	}

	retailer, err := s.resolveRetailer(ctx, scraped)
	if err != nil {
		return nil, err
	}

	sku := scraped.SKU
	if sku == "" {
		sku = skuFromLink(scraped.URL)
	}
	if sku == "" {
		return nil, fmt.Errorf("product has no sku: %s", scraped.URL)
	}

	existing, err := s.products.GetBySKU(ctx, retailer.ID, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to look up product %s/%s: %w", retailer.ID, sku, err)
	}

	product := &models.Product{
		RetailerID:    retailer.ID,
		SKU:           sku,
		Name:          scraped.Name,
		Link:          matching.NormalizeURL(scraped.URL),
		Brand:         scraped.Brand,
		Category:      scraped.Category,
		Image:         scraped.FirstImage(),
		Description:   scraped.Description,
		CurrentPrice:  scraped.CurrentPrice,
		OriginalPrice: scraped.OriginalPrice,
	}

	var saved *models.Product
	txErr := s.db.Transaction(ctx, func(tx pgx.Tx) error {
		out, err := s.products.UpsertWithTx(ctx, tx, product)
		if err != nil {
			return err
		}
		saved = out

		if scraped.CurrentPrice != nil {
			if err := s.history.InsertWithTx(ctx, tx, saved.ID, *scraped.CurrentPrice); err != nil {
				return err
			}
		}

		if s.publisher == nil {
			return nil
		}
		if existing == nil {
			return s.publisher.PublishProductDiscoveredTx(ctx, tx, discoveredPayload(saved, scraped))
		}
		if priceChanged(existing.CurrentPrice, scraped.CurrentPrice) {
			return s.publisher.PublishPriceChangedTx(ctx, tx, priceChangedPayload(saved, existing.CurrentPrice))
		}
		return nil
	})
	if txErr != nil {
		return nil, fmt.Errorf("failed to persist product %s/%s: %w", retailer.ID, sku, txErr)
	}

	if existing == nil && s.hook != nil {
		if _, err := s.hook.OnDiscovered(ctx, saved); err != nil {
			s.logger.Warn("discovery hook failed", "product_id", saved.ID, "error", err)
		}
	}

	return saved, nil
}

func (s *DBStore) resolveRetailer(ctx context.Context, scraped *models.ScrapedProduct) (*models.Retailer, error) {
	known, ok := retailerForURL(scraped.URL)
	if !ok {
		known, ok = models.RetailerByName(scraped.Retailer)
	}
	if !ok {
		return nil, fmt.Errorf("unknown retailer for url %s", scraped.URL)
	}

	retailer, err := s.retailers.GetOrCreate(ctx, known)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create retailer %s: %w", known.ID, err)
	}
	return retailer, nil
}

func retailerForURL(pageURL string) (models.Retailer, bool) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return models.Retailer{}, false
	}
	return models.RetailerByDomain(parsed.Hostname())
}

// skuFromLink falls back to the last path segment when the page itself
// carried no SKU.
func skuFromLink(pageURL string) string {
	trimmed := strings.SplitN(pageURL, "?", 2)[0]
	trimmed = strings.SplitN(trimmed, "#", 2)[0]
	trimmed = strings.TrimRight(trimmed, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return trimmed
}

func priceChanged(old, current *float64) bool {
	if current == nil {
		return false
	}
	return old == nil || *old != *current
}

func discoveredPayload(p *models.Product, scraped *models.ScrapedProduct) *events.ProductDiscoveredPayload {
	payload := &events.ProductDiscoveredPayload{
		ProductID:  p.ID,
		RetailerID: p.RetailerID,
		SKU:        p.SKU,
		Name:       p.Name,
		Brand:      p.Brand,
		Category:   p.Category,
		Link:       p.Link,
		Images:     scraped.Images,
	}
	if p.CurrentPrice != nil {
		currency := scraped.Currency
		if currency == "" {
			currency = "THB"
		}
		payload.Price = &events.Price{Amount: *p.CurrentPrice, Currency: currency}
	}
	return payload
}

func priceChangedPayload(p *models.Product, oldPrice *float64) *events.PriceChangedPayload {
	payload := &events.PriceChangedPayload{
		ProductID:    p.ID,
		RetailerID:   p.RetailerID,
		SKU:          p.SKU,
		Name:         p.Name,
		Link:         p.Link,
		OldPrice:     oldPrice,
		LowestPrice:  p.LowestPrice,
		HighestPrice: p.HighestPrice,
	}
	if p.CurrentPrice != nil {
		payload.NewPrice = *p.CurrentPrice
	}
	return payload
}
