package matching

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

// Scoring weights. Name similarity dominates because brand and model are
// missing from roughly half the scraped catalog.
const (
	nameWeight  = 0.6
	brandWeight = 0.2
	modelWeight = 0.1
	priceWeight = 0.1

	// DefaultMinConfidence is the floor below which a candidate is noise
	// rather than a plausible match.
	DefaultMinConfidence = 0.5
)

// stopTokens carry no product identity: retailer slogans, filler words
// and bare measurement units.
var stopTokens = map[string]struct{}{
	// retailer branding
	"ไทวัสดุ": {}, "โฮมโปร": {}, "ดูโฮม": {}, "เมกาโฮม": {}, "บุญถาวร": {},
	"โกลบอลเฮ้าส์": {}, "homepro": {}, "dohome": {}, "megahome": {},
	"boonthavorn": {}, "thaiwatsadu": {}, "globalhouse": {},
	"ครบเรื่องบ้าน": {}, "ถูกและดี": {},
	// filler
	"รุ่น": {}, "แบบ": {}, "ชนิด": {}, "สำหรับ": {}, "พร้อม": {}, "และ": {},
	"ของแท้": {}, "ราคาพิเศษ": {}, "โปรโมชั่น": {},
	"the": {}, "and": {}, "with": {}, "for": {}, "free": {},
	// units
	"ซม": {}, "มม": {}, "มล": {}, "ลิตร": {}, "นิ้ว": {}, "กก": {},
	"cm": {}, "mm": {}, "ml": {}, "kg": {}, "pcs": {},
}

// Scorer rates how likely two product listings from different retailers
// describe the same physical product.
type Scorer struct {
	tokenRe *regexp.Regexp
}

func NewScorer() *Scorer {
	return &Scorer{
		// Latin/digit runs and Thai runs. Thai product names separate
		// phrases with spaces even though Thai script has no word breaks.
		tokenRe: regexp.MustCompile(`[a-z0-9]+|[\x{0E00}-\x{0E7F}]+`),
	}
}

// Score returns a confidence in [0,1] plus a short reason trail for the
// review UI. Name token overlap weighs 0.6, brand equality 0.2, a
// model/SKU hit 0.1 and price proximity 0.1.
func (s *Scorer) Score(base, candidate *models.Product) (float64, string) {
	if base == nil || candidate == nil {
		return 0, ""
	}

	var reasons []string

	nameSim := s.nameSimilarity(base.Name, candidate.Name)
	score := nameSim * nameWeight
	reasons = append(reasons, fmt.Sprintf("name %.2f", nameSim))

	if brandsEqual(base.Brand, candidate.Brand) {
		score += brandWeight
		reasons = append(reasons, "brand match")
	}

	if s.modelHit(base, candidate) {
		score += modelWeight
		reasons = append(reasons, "model match")
	}

	if pw := priceProximity(base.CurrentPrice, candidate.CurrentPrice); pw > 0 {
		score += pw
		if pw == priceWeight {
			reasons = append(reasons, "price close")
		} else {
			reasons = append(reasons, "price in range")
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return score, strings.Join(reasons, ", ")
}

// nameSimilarity is the Jaccard overlap of the two token sets after
// stop-token removal.
func (s *Scorer) nameSimilarity(a, b string) float64 {
	ta := s.tokens(a)
	tb := s.tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	intersection := 0
	for token := range ta {
		if _, ok := tb[token]; ok {
			intersection++
		}
	}

	union := len(ta) + len(tb) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func (s *Scorer) tokens(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, token := range s.tokenRe.FindAllString(strings.ToLower(text), -1) {
		if len([]rune(token)) < 2 {
			continue
		}
		if _, stop := stopTokens[token]; stop {
			continue
		}
		out[token] = struct{}{}
	}
	return out
}

// modelHit reports whether the two listings share a model number or SKU,
// either field to field or embedded in the other name.
func (s *Scorer) modelHit(base, candidate *models.Product) bool {
	baseKeys := identityTokens(base)
	candKeys := identityTokens(candidate)

	for k := range baseKeys {
		if _, ok := candKeys[k]; ok {
			return true
		}
		if strings.Contains(normalizeKey(candidate.Name), k) {
			return true
		}
	}
	for k := range candKeys {
		if strings.Contains(normalizeKey(base.Name), k) {
			return true
		}
	}
	return false
}

// modelTokenRe matches model-number shaped tokens inside product names,
// like "HP1630", "VL-8803" or "GSB550".
var modelTokenRe = regexp.MustCompile(`(?i)\b[a-z]{1,5}-?\d{2,6}\b|\b\d{2,4}-?[a-z]{1,5}\b`)

// identityTokens collects the normalized SKU plus model-number shaped
// tokens from the product name. Keys of three characters or fewer match
// by accident too often to count.
func identityTokens(p *models.Product) map[string]struct{} {
	out := make(map[string]struct{})
	if k := normalizeKey(p.SKU); len(k) > 3 {
		out[k] = struct{}{}
	}
	for _, m := range modelTokenRe.FindAllString(p.Name, -1) {
		if k := normalizeKey(m); len(k) > 3 {
			out[k] = struct{}{}
		}
	}
	return out
}

// normalizeKey lowercases and strips separators so "VL-8803" and
// "vl8803" compare equal.
func normalizeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func brandsEqual(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	return a != "" && a == b
}

// priceProximity awards the full price weight when the two prices sit
// within 10% of each other, half within 35%, nothing beyond that or when
// either price is missing.
func priceProximity(a, b *float64) float64 {
	if a == nil || b == nil || *a <= 0 || *b <= 0 {
		return 0
	}

	hi, lo := *a, *b
	if lo > hi {
		hi, lo = lo, hi
	}
	diff := (hi - lo) / hi

	switch {
	case diff <= 0.10:
		return priceWeight
	case diff <= 0.35:
		return priceWeight / 2
	default:
		return 0
	}
}
