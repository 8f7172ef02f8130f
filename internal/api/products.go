package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pricehawk-th/pricehawk/internal/database"
	"github.com/pricehawk-th/pricehawk/internal/matching"
	"github.com/pricehawk-th/pricehawk/internal/models"
)

// RetailerPrice is the verified competitor price shown in a listing row.
type RetailerPrice struct {
	Price *float64 `json:"price"`
	Link  string   `json:"link,omitempty"`
}

// ProductListItem is one base-retailer product with its verified
// competitor prices. Status compares the base price against them:
// cheapest, same, higher, or null when nothing is matched yet.
type ProductListItem struct {
	ProductID      int64                    `json:"product_id"`
	SKU            string                   `json:"sku"`
	Name           string                   `json:"name"`
	Brand          string                   `json:"brand,omitempty"`
	Category       string                   `json:"category,omitempty"`
	BasePrice      *float64                 `json:"base_price"`
	BaseLink       string                   `json:"base_link,omitempty"`
	RetailerPrices map[string]RetailerPrice `json:"retailer_prices"`
	Status         *string                  `json:"status"`
}

type ProductListResponse struct {
	Products   []ProductListItem `json:"products"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	Retailers  []models.Retailer `json:"retailers"`
	Categories []string          `json:"categories"`
	Brands     []string          `json:"brands"`
}

// ListProducts handles the comparison table: base-retailer products
// with one verified price per competitor.
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, limit := pageParams(r, defaultPageSize)

	filter := database.ProductFilter{
		RetailerID: models.BaseRetailerID,
		Search:     r.URL.Query().Get("search"),
		Category:   r.URL.Query().Get("category"),
		Brand:      r.URL.Query().Get("brand"),
		Page:       page,
		Limit:      limit,
	}

	products, total, err := h.products.List(ctx, filter)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	categories, err := h.products.Categories(ctx, models.BaseRetailerID)
	if err != nil {
		h.logger.Error("failed to list categories", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	brands, err := h.products.Brands(ctx, models.BaseRetailerID)
	if err != nil {
		h.logger.Error("failed to list brands", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list brands")
		return
	}

	items := make([]ProductListItem, 0, len(products))
	for i := range products {
		p := &products[i]

		verified, err := h.matches.VerifiedForBase(ctx, p.ID)
		if err != nil {
			h.logger.Error("failed to load verified matches", "error", err, "product_id", p.ID)
			h.respondError(w, http.StatusInternalServerError, "failed to load matches")
			return
		}

		item := ProductListItem{
			ProductID:      p.ID,
			SKU:            p.SKU,
			Name:           p.Name,
			Brand:          p.Brand,
			Category:       p.Category,
			BasePrice:      p.CurrentPrice,
			BaseLink:       p.Link,
			RetailerPrices: make(map[string]RetailerPrice, len(verified)),
		}
		for _, row := range verified {
			item.RetailerPrices[row.CandidateRetailerName] = RetailerPrice{
				Price: row.Candidate.CurrentPrice,
				Link:  row.Candidate.Link,
			}
		}
		item.Status = priceStatus(p.CurrentPrice, verified)

		items = append(items, item)
	}

	h.respondJSON(w, http.StatusOK, ProductListResponse{
		Products:   items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		Retailers:  models.KnownRetailers,
		Categories: categories,
		Brands:     brands,
	})
}

// priceStatus classifies the base price against the verified competitor
// prices. Nil without a base price or without any competitor price to
// compare against.
func priceStatus(basePrice *float64, verified []database.MatchRow) *string {
	if basePrice == nil {
		return nil
	}

	prices := []float64{*basePrice}
	for _, row := range verified {
		if cp := row.Candidate.CurrentPrice; cp != nil {
			prices = append(prices, *cp)
		}
	}
	if len(prices) == 1 {
		return nil
	}

	min := prices[0]
	allEqual := true
	for _, p := range prices[1:] {
		if p < min {
			min = p
		}
		if p != prices[0] {
			allEqual = false
		}
	}

	switch {
	case *basePrice > min:
		return stringPtr("higher")
	case allEqual:
		return stringPtr("same")
	default:
		return stringPtr("cheapest")
	}
}

// ProductDetail is a product joined with its retailer display name.
type ProductDetail struct {
	models.Product
	RetailerName string `json:"retailer_name"`
}

// MatchItem is one match shown on the product detail page.
type MatchItem struct {
	MatchID         int64         `json:"match_id"`
	IsSame          *bool         `json:"is_same"`
	ConfidenceScore *float64      `json:"confidence_score"`
	Reason          string        `json:"reason,omitempty"`
	MatchType       string        `json:"match_type"`
	VerifiedByUser  bool          `json:"verified_by_user"`
	Product         ProductDetail `json:"product"`
}

type ProductDetailResponse struct {
	Product      ProductDetail              `json:"product"`
	Matches      []MatchItem                `json:"matches"`
	TotalMatches int                        `json:"total_matches"`
	History      []models.PriceHistoryEntry `json:"history"`
}

// GetProduct handles the product detail view: the product, its matches
// filtered to one per retailer once verified, and its price history.
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.products.GetByID(ctx, productID)
	if err != nil {
		h.logger.Error("failed to load product", "error", err, "product_id", productID)
		h.respondError(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	if product == nil {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}

	rows, err := h.matches.ListForBase(ctx, productID)
	if err != nil {
		h.logger.Error("failed to load matches", "error", err, "product_id", productID)
		h.respondError(w, http.StatusInternalServerError, "failed to load matches")
		return
	}

	history, err := h.history.ListByProduct(ctx, productID, historyLimit)
	if err != nil {
		h.logger.Error("failed to load price history", "error", err, "product_id", productID)
		h.respondError(w, http.StatusInternalServerError, "failed to load price history")
		return
	}
	if history == nil {
		history = []models.PriceHistoryEntry{}
	}

	matches := filterDetailMatches(rows)

	h.respondJSON(w, http.StatusOK, ProductDetailResponse{
		Product:      ProductDetail{Product: *product, RetailerName: retailerName(product.RetailerID)},
		Matches:      matches,
		TotalMatches: len(matches),
		History:      history,
	})
}

// filterDetailMatches applies the one-per-retailer rule: once a retailer
// has a verified-correct match only that match is shown, otherwise every
// candidate stays visible for review.
func filterDetailMatches(rows []database.MatchRow) []MatchItem {
	verifiedFor := make(map[string]bool)
	for _, row := range rows {
		if row.Match.VerifiedCorrect() {
			verifiedFor[row.Candidate.RetailerID] = true
		}
	}

	picked := make(map[string]bool)
	out := make([]MatchItem, 0, len(rows))
	for _, row := range rows {
		retailerID := row.Candidate.RetailerID
		if verifiedFor[retailerID] {
			if !row.Match.VerifiedCorrect() || picked[retailerID] {
				continue
			}
			picked[retailerID] = true
		}
		out = append(out, matchItemFromRow(row))
	}
	return out
}

func matchItemFromRow(row database.MatchRow) MatchItem {
	return MatchItem{
		MatchID:         row.Match.ID,
		IsSame:          row.Match.IsSame,
		ConfidenceScore: row.Match.ConfidenceScore,
		Reason:          row.Match.Reason,
		MatchType:       row.Match.MatchType,
		VerifiedByUser:  row.Match.VerifiedByUser,
		Product: ProductDetail{
			Product:      row.Candidate,
			RetailerName: row.CandidateRetailerName,
		},
	}
}

type SuggestionsResponse struct {
	BaseProductID int64                 `json:"base_product_id"`
	RetailerID    string                `json:"retailer_id"`
	Suggestions   []matching.Suggestion `json:"suggestions"`
	Total         int                   `json:"total"`
}

// GetSuggestions handles on-demand match suggestions against one
// competitor retailer. Nothing is persisted; the reviewer decides.
func (h *Handlers) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	retailerParam := r.URL.Query().Get("retailer")
	if retailerParam == "" {
		h.respondError(w, http.StatusBadRequest, "retailer query parameter is required")
		return
	}
	retailer, ok := models.RetailerByID(retailerParam)
	if !ok {
		retailer, ok = models.RetailerByName(retailerParam)
	}
	if !ok {
		h.respondError(w, http.StatusBadRequest, "unknown retailer")
		return
	}
	if retailer.ID == models.BaseRetailerID {
		h.respondError(w, http.StatusBadRequest, "cannot suggest matches against the base retailer")
		return
	}

	base, err := h.products.GetByID(ctx, productID)
	if err != nil {
		h.logger.Error("failed to load product", "error", err, "product_id", productID)
		h.respondError(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	if base == nil {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}

	candidates, err := h.products.CandidatesByRetailer(ctx, retailer.ID, suggestionCandidateLimit)
	if err != nil {
		h.logger.Error("failed to load candidates", "error", err, "retailer", retailer.ID)
		h.respondError(w, http.StatusInternalServerError, "failed to load candidates")
		return
	}

	refs := make([]*models.Product, len(candidates))
	for i := range candidates {
		refs[i] = &candidates[i]
	}

	suggestions := h.matcher.Suggest(ctx, base, refs)
	if suggestions == nil {
		suggestions = []matching.Suggestion{}
	}

	h.respondJSON(w, http.StatusOK, SuggestionsResponse{
		BaseProductID: base.ID,
		RetailerID:    retailer.ID,
		Suggestions:   suggestions,
		Total:         len(suggestions),
	})
}

// SKUMatch is one verified competitor product for a base SKU.
type SKUMatch struct {
	RetailerID   string   `json:"retailer_id"`
	RetailerName string   `json:"retailer_name"`
	ProductID    int64    `json:"product_id"`
	SKU          string   `json:"sku"`
	Name         string   `json:"name"`
	Price        *float64 `json:"price"`
	Image        string   `json:"image,omitempty"`
	Link         string   `json:"link,omitempty"`
}

type SKUBaseProduct struct {
	ProductID int64    `json:"product_id"`
	Name      string   `json:"name"`
	Price     *float64 `json:"price"`
	Image     string   `json:"image,omitempty"`
	Link      string   `json:"link,omitempty"`
}

type SKUMatchesResponse struct {
	Found             bool            `json:"found"`
	Product           *SKUBaseProduct `json:"product"`
	VerifiedRetailers []string        `json:"verified_retailers"`
	Matches           []SKUMatch      `json:"matches"`
}

// GetMatchesBySKU handles verified-match lookup for a base SKU, used
// before a manual comparison to skip retailers that are already done.
func (h *Handlers) GetMatchesBySKU(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sku := chi.URLParam(r, "sku")
	if sku == "" {
		h.respondError(w, http.StatusBadRequest, "sku is required")
		return
	}

	base, err := h.products.GetBySKU(ctx, models.BaseRetailerID, sku)
	if err != nil {
		h.logger.Error("failed to load product by sku", "error", err, "sku", sku)
		h.respondError(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	if base == nil {
		h.respondJSON(w, http.StatusOK, SKUMatchesResponse{
			Found:             false,
			VerifiedRetailers: []string{},
			Matches:           []SKUMatch{},
		})
		return
	}

	rows, err := h.matches.VerifiedForBase(ctx, base.ID)
	if err != nil {
		h.logger.Error("failed to load verified matches", "error", err, "product_id", base.ID)
		h.respondError(w, http.StatusInternalServerError, "failed to load matches")
		return
	}

	verifiedRetailers := make([]string, 0, len(rows))
	matches := make([]SKUMatch, 0, len(rows))
	for _, row := range rows {
		verifiedRetailers = append(verifiedRetailers, row.Candidate.RetailerID)
		matches = append(matches, SKUMatch{
			RetailerID:   row.Candidate.RetailerID,
			RetailerName: row.CandidateRetailerName,
			ProductID:    row.Candidate.ID,
			SKU:          row.Candidate.SKU,
			Name:         row.Candidate.Name,
			Price:        row.Candidate.CurrentPrice,
			Image:        row.Candidate.Image,
			Link:         row.Candidate.Link,
		})
	}

	h.respondJSON(w, http.StatusOK, SKUMatchesResponse{
		Found: true,
		Product: &SKUBaseProduct{
			ProductID: base.ID,
			Name:      base.Name,
			Price:     base.CurrentPrice,
			Image:     base.Image,
			Link:      base.Link,
		},
		VerifiedRetailers: verifiedRetailers,
		Matches:           matches,
	})
}

func retailerName(retailerID string) string {
	if retailer, ok := models.RetailerByID(retailerID); ok {
		return retailer.Name
	}
	return retailerID
}
