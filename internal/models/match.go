package models

import "time"

// Match types record how a base↔candidate link came to exist.
const (
	MatchTypeAuto   = "auto"
	MatchTypeManual = "manual"
	MatchTypeImport = "import"
)

// ProductMatch links a base-retailer product to a candidate product at a
// competitor. Matches start unverified; a reviewer later confirms or
// rejects them, which sets the verified_* fields.
type ProductMatch struct {
	ID                 int64      `json:"match_id"`
	BaseProductID      int64      `json:"base_product_id"`
	CandidateProductID int64      `json:"candidate_product_id"`
	RetailerID         string     `json:"retailer_id"`
	IsSame             *bool      `json:"is_same,omitempty"`
	ConfidenceScore    *float64   `json:"confidence_score,omitempty"`
	Reason             string     `json:"reason,omitempty"`
	MatchType          string     `json:"match_type"`
	VerifiedByUser     bool       `json:"verified_by_user"`
	VerifiedResult     *bool      `json:"verified_result,omitempty"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at,omitempty"`
}

// VerifiedCorrect reports whether a reviewer confirmed this match.
// Verification writes the decision into is_same, so a verified match with
// is_same true is confirmed and one with is_same false is rejected.
// VerifiedResult is not consulted: list queries do not carry it.
func (m *ProductMatch) VerifiedCorrect() bool {
	return m.VerifiedByUser && m.IsSame != nil && *m.IsSame
}
