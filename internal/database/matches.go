package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

// MatchRepository handles product match persistence
type MatchRepository struct {
	db *DB
}

func NewMatchRepository(db *DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// MatchRow is a match joined with its products for review and comparison
// views. Base is nil for queries scoped to a single base product.
type MatchRow struct {
	Match                 models.ProductMatch
	Base                  *models.Product
	BaseRetailerName      string
	Candidate             models.Product
	CandidateRetailerName string
}

// MatchCounts summarizes the match table for the dashboard.
type MatchCounts struct {
	Total    int64 `json:"total"`
	Verified int64 `json:"verified"`
	Pending  int64 `json:"pending"`
}

// Upsert inserts a match or refreshes an existing one keyed by
// (base_product_id, candidate_product_id). Reviewer decisions win: once a
// match is verified its is_same/confidence/reason are left untouched.
func (r *MatchRepository) Upsert(ctx context.Context, m *models.ProductMatch) (int64, error) {
	if m.MatchType == "" {
		m.MatchType = models.MatchTypeAuto
	}

	query := `
		INSERT INTO product_matches
			(base_product_id, candidate_product_id, retailer_id, is_same, confidence_score, reason, match_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (base_product_id, candidate_product_id) DO UPDATE SET
			is_same = CASE WHEN product_matches.verified_by_user THEN product_matches.is_same ELSE EXCLUDED.is_same END,
			confidence_score = CASE WHEN product_matches.verified_by_user THEN product_matches.confidence_score ELSE EXCLUDED.confidence_score END,
			reason = CASE WHEN product_matches.verified_by_user THEN product_matches.reason ELSE EXCLUDED.reason END,
			match_type = EXCLUDED.match_type,
			updated_at = NOW()
		RETURNING match_id`

	var id int64
	err := r.db.QueryRow(ctx, query,
		m.BaseProductID, m.CandidateProductID, m.RetailerID,
		m.IsSame, m.ConfidenceScore, nullIfEmpty(m.Reason), m.MatchType,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert match %d->%d: %w", m.BaseProductID, m.CandidateProductID, err)
	}

	return id, nil
}

// Verify records a reviewer decision on a match.
func (r *MatchRepository) Verify(ctx context.Context, matchID int64, isSame bool) error {
	query := `
		UPDATE product_matches
		SET verified_by_user = TRUE,
			verified_result = $2,
			verified_at = NOW(),
			is_same = $2,
			updated_at = NOW()
		WHERE match_id = $1`

	result, err := r.db.Exec(ctx, query, matchID, isSame)
	if err != nil {
		return fmt.Errorf("failed to verify match %d: %w", matchID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("match not found: %d", matchID)
	}

	return nil
}

// GetByID returns a bare match row, nil when missing.
func (r *MatchRepository) GetByID(ctx context.Context, matchID int64) (*models.ProductMatch, error) {
	query := `
		SELECT match_id, base_product_id, candidate_product_id, retailer_id,
			is_same, confidence_score, COALESCE(reason, ''), match_type,
			verified_by_user, verified_result, verified_at, created_at, updated_at
		FROM product_matches
		WHERE match_id = $1`

	var m models.ProductMatch
	err := r.db.QueryRow(ctx, query, matchID).Scan(
		&m.ID, &m.BaseProductID, &m.CandidateProductID, &m.RetailerID,
		&m.IsSame, &m.ConfidenceScore, &m.Reason, &m.MatchType,
		&m.VerifiedByUser, &m.VerifiedResult, &m.VerifiedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match %d: %w", matchID, err)
	}

	return &m, nil
}

// ListPendingReview returns matches for the review queue: every verified
// match, plus unverified ones whose base product has no verified-correct
// match at the same candidate retailer yet. Verified rows sort last.
func (r *MatchRepository) ListPendingReview(ctx context.Context, limit, offset int) ([]MatchRow, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT
			pm.match_id, pm.is_same, pm.confidence_score, COALESCE(pm.reason, ''),
			pm.match_type, pm.verified_by_user,
			p1.product_id, p1.sku, p1.name, p1.current_price, COALESCE(p1.image, ''),
			r1.name,
			p2.product_id, p2.sku, p2.name, p2.current_price, COALESCE(p2.image, ''),
			p2.retailer_id, r2.name
		FROM product_matches pm
		JOIN products p1 ON pm.base_product_id = p1.product_id
		JOIN retailers r1 ON p1.retailer_id = r1.retailer_id
		JOIN products p2 ON pm.candidate_product_id = p2.product_id
		JOIN retailers r2 ON p2.retailer_id = r2.retailer_id
		WHERE
			pm.verified_by_user = TRUE
			OR
			(pm.verified_by_user = FALSE AND NOT EXISTS (
				SELECT 1
				FROM product_matches pm2
				JOIN products p3 ON pm2.candidate_product_id = p3.product_id
				WHERE pm2.base_product_id = pm.base_product_id
				  AND p3.retailer_id = p2.retailer_id
				  AND pm2.verified_by_user = TRUE
				  AND pm2.is_same = TRUE
			))
		ORDER BY pm.verified_by_user ASC, pm.confidence_score DESC NULLS LAST
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for review: %w", err)
	}
	defer rows.Close()

	var out []MatchRow
	for rows.Next() {
		var row MatchRow
		var base models.Product
		err := rows.Scan(
			&row.Match.ID, &row.Match.IsSame, &row.Match.ConfidenceScore, &row.Match.Reason,
			&row.Match.MatchType, &row.Match.VerifiedByUser,
			&base.ID, &base.SKU, &base.Name, &base.CurrentPrice, &base.Image,
			&row.BaseRetailerName,
			&row.Candidate.ID, &row.Candidate.SKU, &row.Candidate.Name,
			&row.Candidate.CurrentPrice, &row.Candidate.Image,
			&row.Candidate.RetailerID, &row.CandidateRetailerName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		row.Base = &base
		row.Match.BaseProductID = base.ID
		row.Match.CandidateProductID = row.Candidate.ID
		row.Match.RetailerID = row.Candidate.RetailerID
		out = append(out, row)
	}

	return out, rows.Err()
}

// ListForBase returns every match of a base product with the candidate
// side joined in, grouped by retailer name then confidence. The detail
// view filters these down to one per retailer once verified.
func (r *MatchRepository) ListForBase(ctx context.Context, baseProductID int64) ([]MatchRow, error) {
	query := `
		SELECT
			pm.match_id, pm.is_same, pm.confidence_score, COALESCE(pm.reason, ''),
			pm.match_type, pm.verified_by_user,
			p2.product_id, p2.retailer_id, p2.sku, p2.name,
			COALESCE(p2.link, ''), COALESCE(p2.brand, ''), COALESCE(p2.category, ''),
			COALESCE(p2.image, ''), p2.current_price, p2.original_price,
			r.name
		FROM product_matches pm
		JOIN products p2 ON pm.candidate_product_id = p2.product_id
		JOIN retailers r ON p2.retailer_id = r.retailer_id
		WHERE pm.base_product_id = $1
		ORDER BY r.name, pm.confidence_score DESC NULLS LAST`

	rows, err := r.db.Query(ctx, query, baseProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for product %d: %w", baseProductID, err)
	}
	defer rows.Close()

	return r.collectCandidateRows(rows, baseProductID)
}

// VerifiedForBase returns at most one verified-correct match per
// competitor retailer, highest confidence winning.
func (r *MatchRepository) VerifiedForBase(ctx context.Context, baseProductID int64) ([]MatchRow, error) {
	query := `
		SELECT DISTINCT ON (p2.retailer_id)
			pm.match_id, pm.is_same, pm.confidence_score, COALESCE(pm.reason, ''),
			pm.match_type, pm.verified_by_user,
			p2.product_id, p2.retailer_id, p2.sku, p2.name,
			COALESCE(p2.link, ''), COALESCE(p2.brand, ''), COALESCE(p2.category, ''),
			COALESCE(p2.image, ''), p2.current_price, p2.original_price,
			r.name
		FROM product_matches pm
		JOIN products p2 ON pm.candidate_product_id = p2.product_id
		JOIN retailers r ON p2.retailer_id = r.retailer_id
		WHERE pm.base_product_id = $1
		  AND pm.verified_by_user = TRUE
		  AND pm.is_same = TRUE
		ORDER BY p2.retailer_id, pm.confidence_score DESC NULLS LAST`

	rows, err := r.db.Query(ctx, query, baseProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to list verified matches for product %d: %w", baseProductID, err)
	}
	defer rows.Close()

	return r.collectCandidateRows(rows, baseProductID)
}

// VerifiedForBaseAndRetailer reports the verified-correct match between a
// base product and one competitor retailer, nil when none exists.
func (r *MatchRepository) VerifiedForBaseAndRetailer(ctx context.Context, baseProductID int64, retailerID string) (*MatchRow, error) {
	query := `
		SELECT
			pm.match_id, pm.is_same, pm.confidence_score, COALESCE(pm.reason, ''),
			pm.match_type, pm.verified_by_user,
			p2.product_id, p2.retailer_id, p2.sku, p2.name,
			COALESCE(p2.link, ''), COALESCE(p2.brand, ''), COALESCE(p2.category, ''),
			COALESCE(p2.image, ''), p2.current_price, p2.original_price,
			r.name
		FROM product_matches pm
		JOIN products p2 ON pm.candidate_product_id = p2.product_id
		JOIN retailers r ON p2.retailer_id = r.retailer_id
		WHERE pm.base_product_id = $1
		  AND p2.retailer_id = $2
		  AND pm.verified_by_user = TRUE
		  AND pm.is_same = TRUE
		LIMIT 1`

	rows, err := r.db.Query(ctx, query, baseProductID, retailerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check verified match: %w", err)
	}
	defer rows.Close()

	out, err := r.collectCandidateRows(rows, baseProductID)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	return &out[0], nil
}

func (r *MatchRepository) collectCandidateRows(rows pgx.Rows, baseProductID int64) ([]MatchRow, error) {
	var out []MatchRow
	for rows.Next() {
		var row MatchRow
		err := rows.Scan(
			&row.Match.ID, &row.Match.IsSame, &row.Match.ConfidenceScore, &row.Match.Reason,
			&row.Match.MatchType, &row.Match.VerifiedByUser,
			&row.Candidate.ID, &row.Candidate.RetailerID, &row.Candidate.SKU, &row.Candidate.Name,
			&row.Candidate.Link, &row.Candidate.Brand, &row.Candidate.Category,
			&row.Candidate.Image, &row.Candidate.CurrentPrice, &row.Candidate.OriginalPrice,
			&row.CandidateRetailerName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate match: %w", err)
		}
		row.Match.BaseProductID = baseProductID
		row.Match.CandidateProductID = row.Candidate.ID
		row.Match.RetailerID = row.Candidate.RetailerID
		out = append(out, row)
	}

	return out, rows.Err()
}

// Counts returns dashboard totals for the match table.
func (r *MatchRepository) Counts(ctx context.Context) (*MatchCounts, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE verified_by_user = TRUE),
			COUNT(*) FILTER (WHERE verified_by_user = FALSE)
		FROM product_matches`

	var c MatchCounts
	if err := r.db.QueryRow(ctx, query).Scan(&c.Total, &c.Verified, &c.Pending); err != nil {
		return nil, fmt.Errorf("failed to count matches: %w", err)
	}

	return &c, nil
}
