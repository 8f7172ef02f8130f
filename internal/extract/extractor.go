package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

// Extractor pulls product fields out of a rendered retailer page.
type Extractor interface {
	// Retailer returns the short code of the store this extractor handles,
	// or "" for the generic fallback.
	Retailer() string
	Extract(html, pageURL string) (*models.ScrapedProduct, error)
}

var extractors = map[string]Extractor{
	models.RetailerThaiWatsadu: NewThaiWatsaduExtractor(),
	models.RetailerHomePro:     NewHomeProExtractor(),
	models.RetailerMegaHome:    NewMegaHomeExtractor(),
	models.RetailerDoHome:      NewDoHomeExtractor(),
	models.RetailerBoonthavorn: NewBoonthavornExtractor(),
	models.RetailerGlobalHouse: NewGlobalHouseExtractor(),
}

// ForURL picks the extractor for a product URL by domain. Unknown domains
// get the generic extractor.
func ForURL(pageURL string) (Extractor, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid product url %q: %w", pageURL, err)
	}

	if r, ok := models.RetailerByDomain(parsed.Hostname()); ok {
		if e, ok := extractors[r.ID]; ok {
			return e, nil
		}
	}

	return NewGenericExtractor(), nil
}

// ForRetailer returns the extractor registered for a retailer code, nil
// when none exists.
func ForRetailer(retailerID string) Extractor {
	return extractors[retailerID]
}

// GenericExtractor handles pages from stores without a dedicated
// extractor: JSON-LD first, then meta tags and labeled text patterns.
// The retailer extractors also lean on it for fields their own
// heuristics miss.
type GenericExtractor struct {
	brandPatterns     []*regexp.Regexp
	modelPatterns     []*regexp.Regexp
	skuPatterns       []*regexp.Regexp
	colorPatterns     []*regexp.Regexp
	volumePatterns    []*regexp.Regexp
	dimPatterns       []*regexp.Regexp
	materialPatterns  []*regexp.Regexp
	pricePatterns     []*regexp.Regexp
	origPricePatterns []*regexp.Regexp
	urlSKURes         []*regexp.Regexp
}

func NewGenericExtractor() *GenericExtractor {
	return &GenericExtractor{
		brandPatterns: []*regexp.Regexp{
			regexp.MustCompile(`ยี่ห้อ[:\s]*([^\n<]+)`),
			regexp.MustCompile(`แบรนด์[:\s]*([^\n<]+)`),
			regexp.MustCompile(`(?i)Brand[:\s]*([^\n<]+)`),
			regexp.MustCompile(`(?i)Manufacturer[:\s]*([^\n<]+)`),
		},
		modelPatterns: []*regexp.Regexp{
			regexp.MustCompile(`รุ่น\s+([A-Za-z0-9\-_]+)`),
			regexp.MustCompile(`(?i)Model[:\s]+([A-Za-z0-9\-_]+)`),
			regexp.MustCompile(`([A-Z]{2,4}-?\d{3,6})`),
		},
		skuPatterns: []*regexp.Regexp{
			regexp.MustCompile(`รหัสสินค้า[:\s]*([^\n<]+)`),
			regexp.MustCompile(`(?i)SKU[:\s]*([^\n<]+)`),
		},
		colorPatterns: []*regexp.Regexp{
			regexp.MustCompile(`สี[:\s]*([^\n<]+)`),
			regexp.MustCompile(`(?i)Color[:\s]*([^\n<]+)`),
		},
		volumePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:ลิตร|L\b|l\b)`),
			regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:มล|ml\b|ML\b)`),
			regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:แกลลอน|gallon)`),
			regexp.MustCompile(`ความจุ[:\s]*([^\n<]+)`),
			regexp.MustCompile(`(?i)Capacity[:\s]*([^\n<]+)`),
		},
		dimPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(\d+(?:\.\d+)?\s*[x×]\s*\d+(?:\.\d+)?\s*[x×]\s*\d+(?:\.\d+)?)\s*(?:ซม|cm|mm|m)`),
			regexp.MustCompile(`ขนาด[:\s]*([^\n<]+)`),
			regexp.MustCompile(`(?i)Dimension[:\s]*([^\n<]+)`),
			regexp.MustCompile(`(?i)Size[:\s]*([^\n<]+)`),
		},
		materialPatterns: []*regexp.Regexp{
			regexp.MustCompile(`วัสดุ[:\s]*([^\n<]+)`),
			regexp.MustCompile(`(?i)Material[:\s]*([^\n<]+)`),
			regexp.MustCompile(`ผลิตจาก[:\s]*([^\n<]+)`),
			regexp.MustCompile(`เนื้อวัสดุ[:\s]*([^\n<]+)`),
		},
		pricePatterns: []*regexp.Regexp{
			regexp.MustCompile(`ราคา[:\s]*([฿]?[\d,]+\.?\d*)`),
			regexp.MustCompile(`(?i)Price[:\s]*([฿]?[\d,]+\.?\d*)`),
			regexp.MustCompile(`([฿]?[\d,]+\.?\d*)\s*บาท`),
		},
		origPricePatterns: []*regexp.Regexp{
			regexp.MustCompile(`ราคาปกติ[:\s]*([฿]?[\d,]+\.?\d*)`),
			regexp.MustCompile(`ปกติ[:\s]*([฿]?[\d,]+\.?\d*)`),
		},
		urlSKURes: []*regexp.Regexp{
			regexp.MustCompile(`/product/([^/]+?)(?:/|$)`),
			regexp.MustCompile(`/item/([^/]+?)(?:/|$)`),
			regexp.MustCompile(`/p/([^/]+?)(?:/|$)`),
			regexp.MustCompile(`(?i)sku[=/]([^/&]+)`),
			regexp.MustCompile(`/(\d{6,})`),
		},
	}
}

func (e *GenericExtractor) Retailer() string { return "" }

func (e *GenericExtractor) Extract(html, pageURL string) (*models.ScrapedProduct, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	p := models.NewScrapedProduct(pageURL)
	p.Retailer = retailerNameFromURL(pageURL)

	if ld := parseJSONLD(doc); ld != nil {
		p.Name = CleanText(ld.Name)
		p.Description = CleanText(ld.Description)
		p.Brand = SanitizeBrand(ld.Brand)
		p.Model = SanitizeModel(ld.Model)
		p.SKU = SanitizeSKU(ld.SKU)
		p.Category = SanitizeField(ld.Category, 100)
		if PlausiblePrice(ld.Price) {
			p.CurrentPrice = models.Float64Ptr(ld.Price)
		}
		if PlausiblePrice(ld.OriginalPrice) {
			p.OriginalPrice = models.Float64Ptr(ld.OriginalPrice)
		}
		p.Images = append(p.Images, ld.Images...)
	}

	if p.Name == "" {
		p.Name = e.extractName(doc)
	}
	if p.Description == "" {
		if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
			p.Description = CleanText(desc)
		}
	}

	text := doc.Text()
	if p.Brand == "" {
		p.Brand = firstPatternMatch(e.brandPatterns, text, SanitizeBrand)
	}
	if p.Model == "" {
		p.Model = firstPatternMatch(e.modelPatterns, text, SanitizeModel)
	}
	if p.SKU == "" {
		p.SKU = firstPatternMatch(e.skuPatterns, text, SanitizeSKU)
	}
	if p.SKU == "" {
		p.SKU = e.skuFromURL(pageURL)
	}
	if p.Category == "" {
		p.Category = e.extractCategory(doc)
	}
	if p.Color == "" {
		p.Color = e.extractColor(text)
	}
	if p.Volume == "" {
		p.Volume = e.extractVolume(text)
	}
	if p.Dimensions == "" {
		p.Dimensions = e.extractDimensions(text)
	}
	if p.Material == "" {
		p.Material = e.extractMaterial(text)
	}

	if p.CurrentPrice == nil {
		e.extractPrices(doc, p)
	}

	if len(p.Images) == 0 {
		p.Images = e.extractImages(doc)
	}
	p.Images = dedupeImages(p.Images, 10)

	if !p.HasCore() {
		return nil, fmt.Errorf("no product data found at %s", pageURL)
	}

	return p, nil
}

func (e *GenericExtractor) extractName(doc *goquery.Document) string {
	candidates := []string{
		doc.Find("h1").First().Text(),
		metaContent(doc, `meta[property="og:title"]`),
		doc.Find("title").First().Text(),
	}

	for _, candidate := range candidates {
		name := CleanText(candidate)
		if name != "" && len([]rune(name)) > 3 && !isRetailerBranding(name) {
			return name
		}
	}
	return ""
}

func (e *GenericExtractor) extractCategory(doc *goquery.Document) string {
	if crumbs := parseJSONLDBreadcrumbs(doc); len(crumbs) > 0 {
		return lastUsableCrumb(crumbs, nil)
	}

	selectors := []string{
		`nav[class*="breadcrumb"] a`,
		`div[class*="breadcrumb"] a`,
		`ol[class*="breadcrumb"] a`,
		`ul[class*="breadcrumb"] a`,
	}
	for _, selector := range selectors {
		var crumbs []string
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			crumbs = append(crumbs, s.Text())
		})
		if cat := lastUsableCrumb(crumbs, nil); cat != "" {
			return cat
		}
	}

	return ""
}

// extractColor matches labeled color text, e.g. "สี: ขาว".
func (e *GenericExtractor) extractColor(text string) string {
	return firstPatternMatch(e.colorPatterns, text, SanitizeColor)
}

func (e *GenericExtractor) extractVolume(text string) string {
	return firstPatternMatch(e.volumePatterns, text, func(s string) string {
		return SanitizeField(s, 50)
	})
}

func (e *GenericExtractor) extractDimensions(text string) string {
	return firstPatternMatch(e.dimPatterns, text, SanitizeDimensions)
}

func (e *GenericExtractor) extractMaterial(text string) string {
	return firstPatternMatch(e.materialPatterns, text, SanitizeMaterial)
}

// extractPrices scans price-styled elements plus labeled text. When a
// struck-through original price exists the current price is the lowest
// remaining value; otherwise min is current and max is original.
func (e *GenericExtractor) extractPrices(doc *goquery.Document, p *models.ScrapedProduct) {
	var prices []float64
	doc.Find(`span[class*="price"], div[class*="price"]`).Each(func(_ int, s *goquery.Selection) {
		if v, ok := ParsePrice(s.Text()); ok {
			prices = append(prices, v)
		}
	})

	for _, selector := range []string{
		`meta[property="product:price:amount"]`,
		`meta[property="og:price:amount"]`,
	} {
		if meta := metaContent(doc, selector); meta != "" {
			if v, ok := ParsePrice(meta); ok {
				prices = append(prices, v)
			}
		}
	}

	text := doc.Text()
	for _, re := range e.pricePatterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			if v, ok := ParsePrice(m[1]); ok {
				prices = append(prices, v)
			}
		}
	}

	var origPrices []float64
	doc.Find(`span[class*="original"], span[class*="was"], div[class*="original-price"]`).Each(func(_ int, s *goquery.Selection) {
		if v, ok := ParsePrice(s.Text()); ok {
			origPrices = append(origPrices, v)
		}
	})
	for _, re := range e.origPricePatterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			if v, ok := ParsePrice(m[1]); ok {
				origPrices = append(origPrices, v)
			}
		}
	}

	if len(origPrices) > 0 {
		orig := maxOf(origPrices)
		p.OriginalPrice = models.Float64Ptr(orig)

		var others []float64
		for _, v := range prices {
			if v != orig {
				others = append(others, v)
			}
		}
		if len(others) > 0 {
			p.CurrentPrice = models.Float64Ptr(minOf(others))
		}
		return
	}

	if len(prices) == 0 {
		return
	}
	if len(prices) >= 2 {
		min, max := minOf(prices), maxOf(prices)
		p.CurrentPrice = models.Float64Ptr(min)
		if max > min {
			p.OriginalPrice = models.Float64Ptr(max)
		}
		return
	}
	p.CurrentPrice = models.Float64Ptr(prices[0])
}

func (e *GenericExtractor) extractImages(doc *goquery.Document) []string {
	var images []string

	doc.Find(`img[class*="product-image"], img[class*="product_image"]`).Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			images = append(images, src)
		}
	})

	for _, selector := range []string{
		`meta[property="og:image"]`,
		`meta[property="product:image"]`,
	} {
		if img := metaContent(doc, selector); img != "" {
			images = append(images, img)
		}
	}

	return dedupeImages(images, 10)
}

func (e *GenericExtractor) skuFromURL(pageURL string) string {
	for _, re := range e.urlSKURes {
		if m := re.FindStringSubmatch(pageURL); len(m) > 1 {
			if IsValidSKU(m[1]) {
				return m[1]
			}
		}
	}
	return ""
}

// retailerNameFromURL derives a display name from the page host, using
// the known retailer table first.
func retailerNameFromURL(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "Unknown Retailer"
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	if r, ok := models.RetailerByDomain(host); ok {
		return r.Name
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return capitalize(parts[len(parts)-2])
	}
	if host == "" {
		return "Unknown Retailer"
	}
	return capitalize(host)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// isRetailerBranding reports whether a candidate title is just store
// branding rather than a product name.
func isRetailerBranding(name string) bool {
	branded := []string{
		"megahome", "mega home", "homepro", "home pro", "boonthavorn",
		"dohome", "do home", "global house", "thai watsadu", "watsadu",
		"ไทวัสดุ", "lazada", "shopee",
	}

	lower := strings.ToLower(strings.TrimSpace(name))
	for _, b := range branded {
		if lower == b {
			return true
		}
	}
	return false
}

// skipCrumbs are breadcrumb entries that are navigation noise, never a
// product category.
var skipCrumbs = []string{"หน้าแรก", "home", "สินค้า", "products", "ทั้งหมด", "all"}

// lastUsableCrumb walks crumbs from the end, skipping navigation noise
// plus any extra strings the caller wants excluded, and returns the
// deepest real category. The final crumb is usually the product name, so
// it is dropped when more than one crumb exists.
func lastUsableCrumb(crumbs []string, extraSkip []string) string {
	if len(crumbs) > 1 {
		crumbs = crumbs[:len(crumbs)-1]
	}

	skip := append(append([]string{}, skipCrumbs...), extraSkip...)
	for i := len(crumbs) - 1; i >= 0; i-- {
		crumb := CleanText(crumbs[i])
		if crumb == "" {
			continue
		}
		lower := strings.ToLower(crumb)
		skipped := false
		for _, s := range skip {
			if lower == strings.ToLower(s) {
				skipped = true
				break
			}
		}
		if !skipped {
			return SanitizeField(crumb, 100)
		}
	}
	return ""
}

func firstPatternMatch(patterns []*regexp.Regexp, text string, sanitize func(string) string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			if v := sanitize(CleanText(m[1])); v != "" {
				return v
			}
		}
	}
	return ""
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).Attr("content")
	return strings.TrimSpace(content)
}

// dedupeImages keeps order, drops duplicates and data: URLs, and caps the
// list length.
func dedupeImages(images []string, max int) []string {
	var out []string
	seen := make(map[string]bool)

	for _, img := range images {
		img = strings.TrimSpace(img)
		if img == "" || seen[img] {
			continue
		}
		if strings.HasPrefix(img, "data:") || strings.HasPrefix(img, "javascript:") {
			continue
		}
		seen[img] = true
		out = append(out, img)
		if len(out) == max {
			break
		}
	}

	return out
}

func minOf(vals []float64) float64 {
	min := vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

func maxOf(vals []float64) float64 {
	max := vals[0]
	for _, v := range vals[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
