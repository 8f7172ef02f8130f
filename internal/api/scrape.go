package api

import (
	"context"
	"encoding/json"
	"math"
	"net/http"

	"github.com/pricehawk-th/pricehawk/internal/matching"
	"github.com/pricehawk-th/pricehawk/internal/models"
	"github.com/pricehawk-th/pricehawk/internal/scrape"
)

type ScrapeRequest struct {
	URLs []string `json:"urls"`
}

type ScrapeResponse struct {
	Success      bool            `json:"success"`
	Results      []scrape.Result `json:"results"`
	TotalScraped int             `json:"total_scraped"`
	TotalErrors  int             `json:"total_errors"`
}

// ScrapeURLs handles on-demand scraping of a batch of product pages.
// Results are persisted through the attached store, so scraped products
// show up in listings immediately.
func (h *Handlers) ScrapeURLs(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.URLs) == 0 {
		h.respondError(w, http.StatusBadRequest, "urls is required")
		return
	}

	results := h.scraper.ScrapeBatch(r.Context(), req.URLs)

	scraped, failed := 0, 0
	for _, res := range results {
		if res.OK {
			scraped++
		} else {
			failed++
		}
	}

	h.respondJSON(w, http.StatusOK, ScrapeResponse{
		Success:      failed == 0,
		Results:      results,
		TotalScraped: scraped,
		TotalErrors:  failed,
	})
}

type ManualComparisonRequest struct {
	BaseURL        string   `json:"base_url"`
	CompetitorURLs []string `json:"competitor_urls"`
}

// ComparisonRow is one product in a manual comparison: the base product
// or one competitor, with its standing against the lowest price found.
type ComparisonRow struct {
	ProductID         int64    `json:"product_id,omitempty"`
	Name              string   `json:"name,omitempty"`
	SKU               string   `json:"sku,omitempty"`
	Price             *float64 `json:"price"`
	OriginalPrice     *float64 `json:"original_price,omitempty"`
	Retailer          string   `json:"retailer"`
	RetailerID        string   `json:"retailer_id"`
	URL               string   `json:"url"`
	Image             string   `json:"image,omitempty"`
	Brand             string   `json:"brand,omitempty"`
	Category          string   `json:"category,omitempty"`
	AlreadyVerified   bool     `json:"already_verified,omitempty"`
	IsLowest          bool     `json:"is_lowest"`
	DifferencePercent *float64 `json:"difference_percent"`
	Error             string   `json:"error,omitempty"`
}

type ManualComparisonResponse struct {
	Success     bool            `json:"success"`
	BaseSKU     string          `json:"base_sku"`
	Results     []ComparisonRow `json:"results"`
	LowestPrice *float64        `json:"lowest_price"`
}

// ManualComparison handles an ad-hoc comparison: scrape a base product
// page and a set of competitor pages, record the pairs as manual match
// candidates, and rank everything by price. Competitors that already
// have a verified match are answered from the database without
// scraping.
func (h *Handlers) ManualComparison(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ManualComparisonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BaseURL == "" {
		h.respondError(w, http.StatusBadRequest, "base_url is required")
		return
	}
	if len(req.CompetitorURLs) == 0 {
		h.respondError(w, http.StatusBadRequest, "competitor_urls is required")
		return
	}
	baseRetailer, ok := retailerForPageURL(req.BaseURL)
	if !ok || baseRetailer.ID != models.BaseRetailerID {
		h.respondError(w, http.StatusBadRequest, "base_url must be a Thai Watsadu product page")
		return
	}

	scrapedBase, err := h.scraper.ScrapeProduct(ctx, req.BaseURL)
	if err != nil {
		h.logger.Error("failed to scrape base product", "error", err, "url", req.BaseURL)
		h.respondError(w, http.StatusBadGateway, "failed to scrape base product")
		return
	}

	basePersisted, err := h.lookupPersisted(ctx, models.BaseRetailerID, scrapedBase)
	if err != nil {
		h.logger.Error("failed to look up base product", "error", err, "url", req.BaseURL)
		h.respondError(w, http.StatusInternalServerError, "failed to look up base product")
		return
	}

	results := make([]ComparisonRow, 0, len(req.CompetitorURLs)+1)
	results = append(results, rowFromScraped(scrapedBase, baseRetailer, basePersisted))

	for _, competitorURL := range req.CompetitorURLs {
		results = append(results, h.compareCompetitor(ctx, competitorURL, basePersisted))
	}

	lowest := lowestPrice(results)
	for i := range results {
		rankRow(&results[i], lowest)
	}

	h.respondJSON(w, http.StatusOK, ManualComparisonResponse{
		Success:     true,
		BaseSKU:     scrapedBase.SKU,
		Results:     results,
		LowestPrice: lowest,
	})
}

// compareCompetitor resolves one competitor URL into a comparison row.
// A verified match short-circuits the scrape; a fresh scrape is
// recorded as a manual match candidate for later review.
func (h *Handlers) compareCompetitor(ctx context.Context, competitorURL string, base *models.Product) ComparisonRow {
	retailer, ok := retailerForPageURL(competitorURL)
	if !ok || retailer.ID == models.BaseRetailerID {
		return ComparisonRow{
			URL:   competitorURL,
			Error: "unknown competitor retailer",
		}
	}

	if base != nil {
		row, err := h.matches.VerifiedForBaseAndRetailer(ctx, base.ID, retailer.ID)
		if err != nil {
			h.logger.Error("failed to check verified match", "error", err, "retailer", retailer.ID)
		} else if row != nil {
			return ComparisonRow{
				ProductID:       row.Candidate.ID,
				Name:            row.Candidate.Name,
				SKU:             row.Candidate.SKU,
				Price:           row.Candidate.CurrentPrice,
				OriginalPrice:   row.Candidate.OriginalPrice,
				Retailer:        retailer.Name,
				RetailerID:      retailer.ID,
				URL:             row.Candidate.Link,
				Image:           row.Candidate.Image,
				Brand:           row.Candidate.Brand,
				Category:        row.Candidate.Category,
				AlreadyVerified: true,
			}
		}
	}

	scraped, err := h.scraper.ScrapeProduct(ctx, competitorURL)
	if err != nil {
		h.logger.Error("failed to scrape competitor", "error", err, "url", competitorURL)
		return ComparisonRow{
			Retailer:   retailer.Name,
			RetailerID: retailer.ID,
			URL:        competitorURL,
			Error:      "failed to scrape product page",
		}
	}

	persisted, err := h.lookupPersisted(ctx, retailer.ID, scraped)
	if err != nil {
		h.logger.Error("failed to look up competitor product", "error", err, "url", competitorURL)
	}

	if base != nil && persisted != nil {
		match := &models.ProductMatch{
			BaseProductID:      base.ID,
			CandidateProductID: persisted.ID,
			RetailerID:         retailer.ID,
			MatchType:          models.MatchTypeManual,
		}
		if _, err := h.matches.Upsert(ctx, match); err != nil {
			h.logger.Error("failed to record manual match", "error", err,
				"base_product_id", base.ID, "candidate_product_id", persisted.ID)
		}
	}

	return rowFromScraped(scraped, retailer, persisted)
}

// lookupPersisted finds the stored product for a scrape result, by SKU
// when the page exposed one and by normalized link otherwise.
func (h *Handlers) lookupPersisted(ctx context.Context, retailerID string, scraped *models.ScrapedProduct) (*models.Product, error) {
	if scraped.SKU != "" {
		if p, err := h.products.GetBySKU(ctx, retailerID, scraped.SKU); err != nil || p != nil {
			return p, err
		}
	}
	return h.products.GetByLink(ctx, retailerID, matching.NormalizeURL(scraped.URL))
}

func rowFromScraped(scraped *models.ScrapedProduct, retailer models.Retailer, persisted *models.Product) ComparisonRow {
	row := ComparisonRow{
		Name:          scraped.Name,
		SKU:           scraped.SKU,
		Price:         scraped.CurrentPrice,
		OriginalPrice: scraped.OriginalPrice,
		Retailer:      retailer.Name,
		RetailerID:    retailer.ID,
		URL:           scraped.URL,
		Image:         scraped.FirstImage(),
		Brand:         scraped.Brand,
		Category:      scraped.Category,
	}
	if persisted != nil {
		row.ProductID = persisted.ID
	}
	return row
}

func lowestPrice(rows []ComparisonRow) *float64 {
	var lowest *float64
	for _, row := range rows {
		if row.Price == nil {
			continue
		}
		if lowest == nil || *row.Price < *lowest {
			lowest = models.Float64Ptr(*row.Price)
		}
	}
	return lowest
}

func rankRow(row *ComparisonRow, lowest *float64) {
	if row.Price == nil || lowest == nil {
		return
	}
	row.IsLowest = *row.Price == *lowest
	diff := 0.0
	if *lowest > 0 {
		diff = round1((*row.Price - *lowest) / *lowest * 100)
	}
	row.DifferencePercent = models.Float64Ptr(diff)
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
