// Package api exposes the price-comparison REST surface: product
// listings with cross-retailer prices, the match review workflow, and
// the on-demand scrape endpoints the dashboard uses.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pricehawk-th/pricehawk/internal/database"
	"github.com/pricehawk-th/pricehawk/internal/matching"
	"github.com/pricehawk-th/pricehawk/internal/models"
	"github.com/pricehawk-th/pricehawk/internal/scrape"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	defaultMatchPageSize = 50

	// How many competitor products the suggestion endpoint scores.
	suggestionCandidateLimit = 2000

	historyLimit = 100
)

type productReader interface {
	List(ctx context.Context, f database.ProductFilter) ([]models.Product, int, error)
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	GetBySKU(ctx context.Context, retailerID, sku string) (*models.Product, error)
	GetByLink(ctx context.Context, retailerID, link string) (*models.Product, error)
	ListByRetailer(ctx context.Context, retailerID string, limit int) ([]models.Product, error)
	CandidatesByRetailer(ctx context.Context, retailerID string, limit int) ([]models.Product, error)
	Categories(ctx context.Context, retailerID string) ([]string, error)
	Brands(ctx context.Context, retailerID string) ([]string, error)
	CountByRetailer(ctx context.Context) (map[string]int64, error)
}

type matchStore interface {
	GetByID(ctx context.Context, matchID int64) (*models.ProductMatch, error)
	Upsert(ctx context.Context, m *models.ProductMatch) (int64, error)
	Verify(ctx context.Context, matchID int64, isSame bool) error
	ListPendingReview(ctx context.Context, limit, offset int) ([]database.MatchRow, error)
	ListForBase(ctx context.Context, baseProductID int64) ([]database.MatchRow, error)
	VerifiedForBase(ctx context.Context, baseProductID int64) ([]database.MatchRow, error)
	VerifiedForBaseAndRetailer(ctx context.Context, baseProductID int64, retailerID string) (*database.MatchRow, error)
	Counts(ctx context.Context) (*database.MatchCounts, error)
}

type historyReader interface {
	ListByProduct(ctx context.Context, productID int64, limit int) ([]models.PriceHistoryEntry, error)
	Count(ctx context.Context) (int64, error)
}

type runReader interface {
	LatestFinished(ctx context.Context) (*models.UpdateRun, error)
}

type scrapeRunner interface {
	ScrapeProduct(ctx context.Context, pageURL string) (*models.ScrapedProduct, error)
	ScrapeBatch(ctx context.Context, urls []string) []scrape.Result
}

type suggester interface {
	Suggest(ctx context.Context, base *models.Product, candidates []*models.Product) []matching.Suggestion
}

type outboxMonitor interface {
	GetPendingCount(ctx context.Context) (int64, error)
	GetDeadLetterCount(ctx context.Context) (int64, error)
}

type Handlers struct {
	products productReader
	matches  matchStore
	history  historyReader
	runs     runReader
	scraper  scrapeRunner
	matcher  suggester
	outbox   outboxMonitor
	logger   *slog.Logger
}

func NewHandlers(
	products productReader,
	matches matchStore,
	history historyReader,
	runs runReader,
	scraper scrapeRunner,
	matcher suggester,
	outbox outboxMonitor,
	logger *slog.Logger,
) *Handlers {
	if logger == nil {
		logger = slog.Default().With("component", "api")
	}
	return &Handlers{
		products: products,
		matches:  matches,
		history:  history,
		runs:     runs,
		scraper:  scraper,
		matcher:  matcher,
		outbox:   outbox,
		logger:   logger,
	}
}

// Health reports service liveness plus outbox depth, so a wedged relay
// shows up on the load balancer before events start expiring.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	pending, _ := h.outbox.GetPendingCount(r.Context())
	deadLetter, _ := h.outbox.GetDeadLetterCount(r.Context())

	health := map[string]interface{}{
		"status": "ok",
		"outbox": map[string]interface{}{
			"pending":     pending,
			"dead_letter": deadLetter,
		},
	}

	status := http.StatusOK
	if pending > 1000 {
		health["status"] = "warning"
		health["message"] = "high number of pending outbox events"
	}
	if deadLetter > 100 {
		health["status"] = "error"
		health["message"] = "high number of dead letter events"
		status = http.StatusServiceUnavailable
	}

	h.respondJSON(w, status, health)
}

// DashboardStatsResponse summarizes the catalog for the dashboard
// landing page.
type DashboardStatsResponse struct {
	Products          ProductCounts        `json:"products"`
	Matches           database.MatchCounts `json:"matches"`
	PriceHistoryCount int64                `json:"price_history_count"`
	LastRun           *models.UpdateRun    `json:"last_run"`
}

type ProductCounts struct {
	Base        int64 `json:"base"`
	Competitors int64 `json:"competitors"`
	Total       int64 `json:"total"`
}

// GetDashboardStats handles dashboard statistics retrieval
func (h *Handlers) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := h.products.CountByRetailer(ctx)
	if err != nil {
		h.logger.Error("failed to count products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load product counts")
		return
	}

	var products ProductCounts
	for retailerID, n := range counts {
		products.Total += n
		if retailerID == models.BaseRetailerID {
			products.Base += n
		} else {
			products.Competitors += n
		}
	}

	matchCounts, err := h.matches.Counts(ctx)
	if err != nil {
		h.logger.Error("failed to count matches", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load match counts")
		return
	}

	historyCount, err := h.history.Count(ctx)
	if err != nil {
		h.logger.Error("failed to count price history", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load price history count")
		return
	}

	lastRun, err := h.runs.LatestFinished(ctx)
	if err != nil {
		h.logger.Error("failed to load latest run", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load latest update run")
		return
	}

	h.respondJSON(w, http.StatusOK, DashboardStatsResponse{
		Products:          products,
		Matches:           *matchCounts,
		PriceHistoryCount: historyCount,
		LastRun:           lastRun,
	})
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func intQueryParam(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}

func pageParams(r *http.Request, defaultLimit int) (page, limit int) {
	page = intQueryParam(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit = intQueryParam(r, "limit", defaultLimit)
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func retailerForPageURL(pageURL string) (models.Retailer, bool) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return models.Retailer{}, false
	}
	return models.RetailerByDomain(parsed.Hostname())
}

func stringPtr(s string) *string {
	return &s
}
