package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

// PendingMatchItem is one row in the review queue, with both products
// denormalized so the reviewer can compare them side by side.
type PendingMatchItem struct {
	MatchID         int64             `json:"match_id"`
	IsSame          *bool             `json:"is_same"`
	ConfidenceScore *float64          `json:"confidence_score"`
	Reason          string            `json:"reason,omitempty"`
	MatchType       string            `json:"match_type"`
	VerifiedByUser  bool              `json:"verified_by_user"`
	BaseProduct     *PendingMatchSide `json:"base_product"`
	Candidate       *PendingMatchSide `json:"candidate_product"`
}

type PendingMatchSide struct {
	ProductID    int64    `json:"product_id"`
	Name         string   `json:"name"`
	SKU          string   `json:"sku"`
	RetailerName string   `json:"retailer_name"`
	CurrentPrice *float64 `json:"current_price"`
	Image        string   `json:"image,omitempty"`
}

type PendingMatchesResponse struct {
	Matches []PendingMatchItem `json:"matches"`
	Page    int                `json:"page"`
	Limit   int                `json:"limit"`
}

// ListMatches handles the review queue: unverified matches ordered by
// confidence, newest first within a score.
func (h *Handlers) ListMatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, limit := pageParams(r, defaultMatchPageSize)
	offset := (page - 1) * limit

	rows, err := h.matches.ListPendingReview(ctx, limit, offset)
	if err != nil {
		h.logger.Error("failed to list pending matches", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list matches")
		return
	}

	items := make([]PendingMatchItem, 0, len(rows))
	for _, row := range rows {
		item := PendingMatchItem{
			MatchID:         row.Match.ID,
			IsSame:          row.Match.IsSame,
			ConfidenceScore: row.Match.ConfidenceScore,
			Reason:          row.Match.Reason,
			MatchType:       row.Match.MatchType,
			VerifiedByUser:  row.Match.VerifiedByUser,
			Candidate:       pendingSide(&row.Candidate, row.CandidateRetailerName),
		}
		if row.Base != nil {
			item.BaseProduct = pendingSide(row.Base, row.BaseRetailerName)
		}
		items = append(items, item)
	}

	h.respondJSON(w, http.StatusOK, PendingMatchesResponse{
		Matches: items,
		Page:    page,
		Limit:   limit,
	})
}

func pendingSide(p *models.Product, retailerName string) *PendingMatchSide {
	return &PendingMatchSide{
		ProductID:    p.ID,
		Name:         p.Name,
		SKU:          p.SKU,
		RetailerName: retailerName,
		CurrentPrice: p.CurrentPrice,
		Image:        p.Image,
	}
}

// VerifyRequest carries the reviewer's decision for one match.
type VerifyRequest struct {
	IsCorrect *bool `json:"is_correct"`
}

// VerifyMatch handles a reviewer confirming or rejecting a match.
// Verified decisions are final: automated rescoring never overwrites them.
func (h *Handlers) VerifyMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	matchID, err := strconv.ParseInt(chi.URLParam(r, "matchID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid match id")
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IsCorrect == nil {
		h.respondError(w, http.StatusBadRequest, "is_correct is required")
		return
	}

	match, err := h.matches.GetByID(ctx, matchID)
	if err != nil {
		h.logger.Error("failed to load match", "error", err, "match_id", matchID)
		h.respondError(w, http.StatusInternalServerError, "failed to load match")
		return
	}
	if match == nil {
		h.respondError(w, http.StatusNotFound, "match not found")
		return
	}

	if err := h.matches.Verify(ctx, matchID, *req.IsCorrect); err != nil {
		h.logger.Error("failed to verify match", "error", err, "match_id", matchID)
		h.respondError(w, http.StatusInternalServerError, "failed to verify match")
		return
	}

	h.logger.Info("match verified", "match_id", matchID, "is_correct", *req.IsCorrect)

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "match verified",
		"match_id":   matchID,
		"is_correct": *req.IsCorrect,
	})
}
