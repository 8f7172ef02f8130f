package matching

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

// Suggestion is one ranked match candidate for a base product.
type Suggestion struct {
	Product    *models.Product `json:"product"`
	Confidence float64         `json:"confidence"`
	Reason     string          `json:"reason"`
}

// Matcher ranks competitor products against a base product.
type Matcher struct {
	scorer *Scorer

	// MinConfidence filters Suggest output. Defaults to
	// DefaultMinConfidence.
	MinConfidence float64
}

func NewMatcher() *Matcher {
	return &Matcher{
		scorer:        NewScorer(),
		MinConfidence: DefaultMinConfidence,
	}
}

// Suggest scores every candidate against the base product and returns
// the ones at or above MinConfidence, highest first. Candidates from the
// base product's own retailer are skipped. Returns what was scored so
// far when ctx is cancelled.
func (m *Matcher) Suggest(ctx context.Context, base *models.Product, candidates []*models.Product) []Suggestion {
	if base == nil {
		return nil
	}

	var out []Suggestion
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}
		if candidate == nil || candidate.RetailerID == base.RetailerID {
			continue
		}

		score, reason := m.scorer.Score(base, candidate)
		if score < m.MinConfidence {
			continue
		}
		out = append(out, Suggestion{Product: candidate, Confidence: score, Reason: reason})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// BaseCatalog lists base-retailer products for auto-matching.
type BaseCatalog interface {
	ListByRetailer(ctx context.Context, retailerID string, limit int) ([]models.Product, error)
}

// MatchWriter persists a match row.
type MatchWriter interface {
	Upsert(ctx context.Context, match *models.ProductMatch) (int64, error)
}

// AutoMatcher is the discovery hook: when a competitor product first
// appears, it is scored against the base catalog and plausible pairs are
// stored as unverified matches for review.
type AutoMatcher struct {
	matcher *Matcher
	catalog BaseCatalog
	writer  MatchWriter
	logger  *slog.Logger

	// CatalogLimit caps how many base products one discovery is scored
	// against.
	CatalogLimit int
}

func NewAutoMatcher(catalog BaseCatalog, writer MatchWriter, logger *slog.Logger) *AutoMatcher {
	if logger == nil {
		logger = slog.Default().With("component", "auto_matcher")
	}
	return &AutoMatcher{
		matcher:      NewMatcher(),
		catalog:      catalog,
		writer:       writer,
		logger:       logger,
		CatalogLimit: 2000,
	}
}

// SetMinConfidence adjusts the score floor below which suggestions are
// not stored. Values at or below zero keep the default.
func (a *AutoMatcher) SetMinConfidence(v float64) {
	if v > 0 {
		a.matcher.MinConfidence = v
	}
}

// OnDiscovered records suggestions for a newly scraped competitor
// product. Products of the base retailer itself never auto-match.
// Returns how many suggestions were stored.
func (a *AutoMatcher) OnDiscovered(ctx context.Context, discovered *models.Product) (int, error) {
	if discovered == nil || discovered.RetailerID == models.BaseRetailerID {
		return 0, nil
	}

	baseProducts, err := a.catalog.ListByRetailer(ctx, models.BaseRetailerID, a.CatalogLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to load base catalog: %w", err)
	}

	stored := 0
	for i := range baseProducts {
		base := &baseProducts[i]
		score, reason := a.matcher.scorer.Score(base, discovered)
		if score < a.matcher.MinConfidence {
			continue
		}

		confidence := score
		match := &models.ProductMatch{
			BaseProductID:      base.ID,
			CandidateProductID: discovered.ID,
			RetailerID:         discovered.RetailerID,
			ConfidenceScore:    &confidence,
			Reason:             reason,
			MatchType:          models.MatchTypeAuto,
		}
		if _, err := a.writer.Upsert(ctx, match); err != nil {
			a.logger.Warn("failed to store match suggestion",
				"base_product_id", base.ID,
				"candidate_product_id", discovered.ID,
				"error", err)
			continue
		}
		stored++
	}

	if stored > 0 {
		a.logger.Info("stored match suggestions",
			"candidate_product_id", discovered.ID,
			"retailer_id", discovered.RetailerID,
			"suggestions", stored)
	}
	return stored, nil
}
