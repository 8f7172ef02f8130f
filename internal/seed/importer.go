// Package seed imports scraper dump files and match files into the
// database. cmd/seeder drives it over a directory of JSON files.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pricehawk-th/pricehawk/internal/database"
	"github.com/pricehawk-th/pricehawk/internal/matching"
	"github.com/pricehawk-th/pricehawk/internal/models"
)

type retailerStore interface {
	GetOrCreate(ctx context.Context, retailer models.Retailer) (*models.Retailer, error)
}

type productStore interface {
	Upsert(ctx context.Context, p *models.Product) (*models.Product, error)
	GetBySKU(ctx context.Context, retailerID, sku string) (*models.Product, error)
}

type historyStore interface {
	Insert(ctx context.Context, productID int64, price float64) error
}

type matchStore interface {
	Upsert(ctx context.Context, m *models.ProductMatch) (int64, error)
	Verify(ctx context.Context, matchID int64, isSame bool) error
}

// MatchRecord is one row of a twd_<competitor>_matches.json file. The
// competitor retailer comes from the filename, not the record.
type MatchRecord struct {
	BaseSKU       string  `json:"base_sku"`
	CompetitorSKU string  `json:"competitor_sku"`
	Confidence    float64 `json:"confidence,omitempty"`
	Verified      bool    `json:"verified,omitempty"`
}

// FileSummary reports what one dump or match file contributed.
type FileSummary struct {
	File     string `json:"file"`
	Retailer string `json:"retailer,omitempty"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

// Summary aggregates a whole import run.
type Summary struct {
	Products []FileSummary `json:"products"`
	Matches  []FileSummary `json:"matches"`
}

func (s *Summary) ProductTotals() (imported, skipped, failed int) {
	return totals(s.Products)
}

func (s *Summary) MatchTotals() (imported, skipped, failed int) {
	return totals(s.Matches)
}

func totals(files []FileSummary) (imported, skipped, failed int) {
	for _, f := range files {
		imported += f.Imported
		skipped += f.Skipped
		failed += f.Failed
	}
	return imported, skipped, failed
}

// Importer loads product dumps and match files into the database.
// With DryRun set it resolves and counts but writes nothing.
type Importer struct {
	retailers retailerStore
	products  productStore
	history   historyStore
	matches   matchStore
	logger    *slog.Logger

	DryRun bool
}

func NewImporter(db *database.DB, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default().With("component", "seeder")
	}
	return &Importer{
		retailers: database.NewRetailerRepository(db),
		products:  database.NewProductRepository(db),
		history:   database.NewHistoryRepository(db),
		matches:   database.NewMatchRepository(db),
		logger:    logger,
	}
}

// Run imports every *_products.json dump in dir, then every
// twd_*_matches.json file. Products go first so the match SKU lookups
// can resolve.
func (im *Importer) Run(ctx context.Context, dir string) (*Summary, error) {
	productFiles, err := filepath.Glob(filepath.Join(dir, "*_products.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list product dumps in %s: %w", dir, err)
	}
	matchFiles, err := filepath.Glob(filepath.Join(dir, "twd_*_matches.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list match files in %s: %w", dir, err)
	}

	if len(productFiles) == 0 && len(matchFiles) == 0 {
		return nil, fmt.Errorf("no product dumps or match files found in %s", dir)
	}

	summary := &Summary{}
	for _, file := range productFiles {
		fs, err := im.ImportProducts(ctx, file)
		if err != nil {
			return summary, err
		}
		summary.Products = append(summary.Products, *fs)
	}
	for _, file := range matchFiles {
		fs, err := im.ImportMatches(ctx, file)
		if err != nil {
			return summary, err
		}
		summary.Matches = append(summary.Matches, *fs)
	}

	return summary, nil
}

// ImportProducts upserts one retailer dump. The retailer comes from the
// records themselves; files whose retailer is unknown are skipped whole.
func (im *Importer) ImportProducts(ctx context.Context, path string) (*FileSummary, error) {
	summary := &FileSummary{File: filepath.Base(path)}

	data, err := os.ReadFile(path)
	if err != nil {
		return summary, fmt.Errorf("failed to read products file %s: %w", path, err)
	}

	var records []*models.ScrapedProduct
	if err := json.Unmarshal(data, &records); err != nil {
		return summary, fmt.Errorf("failed to parse products file %s: %w", path, err)
	}

	if len(records) == 0 {
		im.logger.Info("no products in dump", "file", summary.File)
		return summary, nil
	}

	retailer, ok := retailerForRecords(records)
	if !ok {
		im.logger.Warn("skipping dump with unknown retailer", "file", summary.File, "retailer", records[0].Retailer)
		summary.Skipped = len(records)
		return summary, nil
	}
	summary.Retailer = retailer.ID

	if !im.DryRun {
		if _, err := im.retailers.GetOrCreate(ctx, retailer); err != nil {
			return summary, fmt.Errorf("failed to ensure retailer %s: %w", retailer.ID, err)
		}
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if record == nil {
			summary.Skipped++
			continue
		}

		sku := strings.TrimSpace(record.SKU)
		if sku == "" {
			summary.Skipped++
			continue
		}

		if im.DryRun {
			summary.Imported++
			continue
		}

		product := &models.Product{
			RetailerID:    retailer.ID,
			SKU:           sku,
			Name:          record.Name,
			Brand:         record.Brand,
			Category:      record.Category,
			Link:          matching.NormalizeURL(record.URL),
			Image:         record.FirstImage(),
			Description:   record.Description,
			CurrentPrice:  record.CurrentPrice,
			OriginalPrice: record.OriginalPrice,
		}

		saved, err := im.products.Upsert(ctx, product)
		if err != nil {
			im.logger.Warn("failed to import product", "file", summary.File, "sku", sku, "error", err)
			summary.Failed++
			continue
		}

		if record.CurrentPrice != nil {
			if err := im.history.Insert(ctx, saved.ID, *record.CurrentPrice); err != nil {
				im.logger.Warn("failed to record price history", "file", summary.File, "sku", sku, "error", err)
			}
		}
		summary.Imported++
	}

	im.logger.Info("imported product dump",
		"file", summary.File,
		"retailer", retailer.ID,
		"imported", summary.Imported,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"dry_run", im.DryRun)

	return summary, nil
}

// ImportMatches loads one twd_<competitor>_matches.json file. Records
// whose base or competitor product is not in the database yet are
// counted as skipped, so product dumps must be imported first.
func (im *Importer) ImportMatches(ctx context.Context, path string) (*FileSummary, error) {
	summary := &FileSummary{File: filepath.Base(path)}

	competitor, ok := competitorFromFilename(summary.File)
	if !ok {
		im.logger.Warn("skipping match file with unknown competitor", "file", summary.File)
		return summary, nil
	}
	summary.Retailer = competitor.ID

	data, err := os.ReadFile(path)
	if err != nil {
		return summary, fmt.Errorf("failed to read match file %s: %w", path, err)
	}

	var records []MatchRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return summary, fmt.Errorf("failed to parse match file %s: %w", path, err)
	}

	missingBase := 0
	missingCandidate := 0

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		baseSKU := strings.TrimSpace(record.BaseSKU)
		compSKU := strings.TrimSpace(record.CompetitorSKU)
		if baseSKU == "" || compSKU == "" {
			summary.Skipped++
			continue
		}

		base, err := im.products.GetBySKU(ctx, models.BaseRetailerID, baseSKU)
		if err != nil {
			return summary, fmt.Errorf("failed to look up base product %s: %w", baseSKU, err)
		}
		if base == nil {
			im.logger.Debug("base product not found", "file", summary.File, "sku", baseSKU)
			missingBase++
			summary.Skipped++
			continue
		}

		candidate, err := im.products.GetBySKU(ctx, competitor.ID, compSKU)
		if err != nil {
			return summary, fmt.Errorf("failed to look up competitor product %s: %w", compSKU, err)
		}
		if candidate == nil {
			im.logger.Debug("competitor product not found", "file", summary.File, "retailer", competitor.ID, "sku", compSKU)
			missingCandidate++
			summary.Skipped++
			continue
		}

		if im.DryRun {
			summary.Imported++
			continue
		}

		isSame := true
		confidence := record.Confidence
		if confidence <= 0 {
			confidence = 1.0
		}

		matchID, err := im.matches.Upsert(ctx, &models.ProductMatch{
			BaseProductID:      base.ID,
			CandidateProductID: candidate.ID,
			RetailerID:         competitor.ID,
			IsSame:             &isSame,
			ConfidenceScore:    &confidence,
			Reason:             summary.File,
			MatchType:          models.MatchTypeImport,
		})
		if err != nil {
			im.logger.Warn("failed to import match", "file", summary.File, "base_sku", baseSKU, "competitor_sku", compSKU, "error", err)
			summary.Failed++
			continue
		}

		if record.Verified {
			if err := im.matches.Verify(ctx, matchID, true); err != nil {
				im.logger.Warn("failed to mark imported match verified", "file", summary.File, "match_id", matchID, "error", err)
			}
		}
		summary.Imported++
	}

	im.logger.Info("imported match file",
		"file", summary.File,
		"retailer", competitor.ID,
		"imported", summary.Imported,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"missing_base", missingBase,
		"missing_competitor", missingCandidate,
		"dry_run", im.DryRun)

	return summary, nil
}

// retailerForRecords resolves the retailer a dump belongs to from the
// first record that names one, by display name first, by URL domain as
// a fallback.
func retailerForRecords(records []*models.ScrapedProduct) (models.Retailer, bool) {
	for _, record := range records {
		if record == nil {
			continue
		}
		if retailer, ok := models.RetailerByName(record.Retailer); ok {
			return retailer, true
		}
		if parsed, err := url.Parse(record.URL); err == nil {
			if retailer, ok := models.RetailerByDomain(parsed.Hostname()); ok {
				return retailer, true
			}
		}
	}
	return models.Retailer{}, false
}

// competitorFromFilename parses twd_<competitor>_matches.json. The
// middle token may be a retailer name ("homepro") or a short code
// ("hp").
func competitorFromFilename(name string) (models.Retailer, bool) {
	base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	if !strings.HasPrefix(base, "twd_") || !strings.HasSuffix(base, "_matches") {
		return models.Retailer{}, false
	}

	token := strings.TrimSuffix(strings.TrimPrefix(base, "twd_"), "_matches")
	if retailer, ok := models.RetailerByName(token); ok && retailer.ID != models.BaseRetailerID {
		return retailer, true
	}
	if retailer, ok := models.RetailerByID(token); ok && retailer.ID != models.BaseRetailerID {
		return retailer, true
	}
	return models.Retailer{}, false
}
