package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Price plausibility windows in THB. Parsing accepts anything a retailer
// could list; the sanity band is tighter and used to cross-check values
// grabbed from ambiguous markup.
const (
	MinPlausiblePrice = 1.0
	MaxPlausiblePrice = 1_000_000.0
	MaxSanePrice      = 100_000.0
)

var priceNumberRe = regexp.MustCompile(`\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?`)

// ParsePrice pulls a THB amount out of price text like "฿1,290", "1,290.50
// บาท" or "THB 1290". Returns false when no plausible amount is present.
func ParsePrice(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}

	cleaned := strings.NewReplacer("฿", "", "บาท", "", "THB", "", "thb", "").Replace(text)

	match := priceNumberRe.FindString(cleaned)
	if match == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, false
	}

	if !PlausiblePrice(value) {
		return 0, false
	}

	return value, true
}

// PlausiblePrice reports whether a value could be a real listing price.
func PlausiblePrice(v float64) bool {
	return v >= MinPlausiblePrice && v <= MaxPlausiblePrice
}

// SanePrice reports whether a value sits in the band where nearly all home
// improvement products price. Values outside it are suspect when the
// markup also matches volumes or weights.
func SanePrice(v float64) bool {
	return v >= MinPlausiblePrice && v <= MaxSanePrice
}
