package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

// homeProBranding are site chrome strings that leak into scraped fields
// on homepro.co.th, including the logout and privacy dialogs.
var homeProBranding = []string{
	"homepro", "home pro", "โฮมโปร",
	"กรุณากดยืนยันเพื่อออกจากระบบ",
	"ศูนย์การตั้งค่าความเป็นส่วนตัว",
}

// invalidModelValues are placeholder strings HomePro uses where no real
// model number exists.
var invalidModelValues = []string{
	"อื่น", "อื่นๆ", "other", "others", "-", "n/a", "na", "none",
}

// homeProKnownBrands appear uppercased inside HomePro product names.
var homeProKnownBrands = []string{
	"HG", "KARCHER", "BOSCH", "MAKITA", "DEWALT", "MILWAUKEE", "STANLEY",
	"BLACK+DECKER", "PHILIPS", "PANASONIC", "TOSHIBA", "LG", "SAMSUNG",
	"ELECTROLUX", "MITSUBISHI", "DAIKIN", "HITACHI", "SHARP", "HAIER",
	"TOA", "BEGER", "NIPPON", "JOTUN", "DULUX",
	"COTTO", "AMERICAN STANDARD", "KOHLER", "GROHE", "TOTO",
	"YALE", "HAFELE", "SCHLAGE", "SCG", "3M", "SCOTCH-BRITE",
}

// unitWords are uppercase tokens in product names that look like brands
// but are measurement units.
var unitWords = []string{"ML", "CM", "MM", "KG", "G", "L", "M", "W", "V", "HP"}

// commonVolumeSizes are bottle/can sizes in ml that price scanning picks
// up by mistake on cleaning-product pages.
var commonVolumeSizes = []float64{50, 100, 150, 200, 250, 300, 400, 500, 750, 1000}

type HomeProExtractor struct {
	generic       *GenericExtractor
	urlSKURe      *regexp.Regexp
	brandingRes   []*regexp.Regexp
	gtmPriceRe    *regexp.Regexp
	bahtRes       []*regexp.Regexp
	origPriceRes  []*regexp.Regexp
	artImageRe    *regexp.Regexp
	nameBrandRe   *regexp.Regexp
	nameVolumeRe  *regexp.Regexp
	numberRe      *regexp.Regexp
	cssColorWords []string
}

func NewHomeProExtractor() *HomeProExtractor {
	brandingRes := make([]*regexp.Regexp, 0, len(homeProBranding))
	for _, b := range homeProBranding {
		brandingRes = append(brandingRes, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(b)))
	}

	return &HomeProExtractor{
		generic:     NewGenericExtractor(),
		urlSKURe:    regexp.MustCompile(`/p/(\d+)`),
		brandingRes: brandingRes,
		// <input id="gtmPrice-246513" value="209.0"> carries the price
		// the page pushes to analytics.
		gtmPriceRe: regexp.MustCompile(`(?i)<input[^>]*id=["']gtmPrice-\d+["'][^>]*value=["']([\d.]+)["']`),
		bahtRes: []*regexp.Regexp{
			regexp.MustCompile(`฿\s*([\d,]+(?:\.\d{2})?)\s*</span>`),
			regexp.MustCompile(`฿\s*([\d,]+(?:\.\d{2})?)\s*</div>`),
		},
		origPriceRes: []*regexp.Regexp{
			regexp.MustCompile(`(?is)<div[^>]*class=["']original-price["'][^>]*>.*?<span[^>]*class=["']amount["'][^>]*>([\d,]+)</span>`),
			regexp.MustCompile(`(?i)<div[^>]*class=["']original-price["'][^>]*>\s*([\d,]+)`),
			regexp.MustCompile(`(?is)<span[^>]*class="[^"]*line-through[^"]*"[^>]*>.*?฿?\s*([\d,]+)`),
			regexp.MustCompile(`(?is)<del[^>]*>.*?฿?\s*([\d,]+)`),
			regexp.MustCompile(`ราคาปกติ[:\s]*฿?\s*([\d,]+)`),
		},
		artImageRe:   regexp.MustCompile(`"(https://cdn\.homepro\.co\.th/ART_IMAGE[^"]+)"`),
		nameBrandRe:  regexp.MustCompile(`\b([A-Z][A-Z0-9+\-]{1,15})\b`),
		nameVolumeRe: regexp.MustCompile(`(?i)(\d+)\s*(?:ml|มล|ลิตร|L|g|กรัม)`),
		numberRe:     regexp.MustCompile(`(\d+(?:\.\d+)?)`),
		cssColorWords: []string{
			"margin", "padding", "px", "rem", "em",
			"font", "color:", "background", "border",
			"display", "position", "width", "height",
			"ศูนย์การตั้งค่า", "ความเป็นส่วนตัว",
		},
	}
}

func (e *HomeProExtractor) Retailer() string { return models.RetailerHomePro }

func (e *HomeProExtractor) Extract(html, pageURL string) (*models.ScrapedProduct, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	p := models.NewScrapedProduct(pageURL)
	p.Retailer = "HomePro"

	// URL pattern /p/246513 carries the SKU.
	if m := e.urlSKURe.FindStringSubmatch(pageURL); len(m) > 1 {
		p.SKU = m[1]
	}

	ld := parseJSONLD(doc)
	if ld != nil {
		p.Name = e.cleanBranding(CleanText(ld.Name))
		p.Description = e.cleanBranding(CleanText(ld.Description))
		p.Brand = SanitizeBrand(e.cleanBranding(ld.Brand))
		if p.SKU == "" {
			p.SKU = SanitizeSKU(ld.SKU)
		}
		if PlausiblePrice(ld.Price) {
			p.CurrentPrice = models.Float64Ptr(ld.Price)
		}
		p.Images = filterHomeProImages(ld.Images)
	}

	if p.CurrentPrice == nil {
		if v, ok := e.extractPrice(doc, html); ok {
			p.CurrentPrice = models.Float64Ptr(v)
		}
	}

	if orig, ok := e.extractOriginalPrice(html); ok {
		if p.CurrentPrice == nil || orig > *p.CurrentPrice {
			p.OriginalPrice = models.Float64Ptr(orig)
		}
	}

	p.Category = e.extractCategory(doc)

	specs := e.extractSpecs(doc)
	if v := specs["dimensions"]; v != "" {
		p.Dimensions = v
	}
	if v := specs["volume"]; v != "" {
		p.Volume = v
	}
	if v := specs["color"]; v != "" {
		p.Color = v
	}
	if v := specs["brand"]; v != "" && p.Brand == "" {
		p.Brand = SanitizeBrand(v)
	}
	if v := specs["model"]; v != "" && !isInvalidModel(v) {
		p.Model = SanitizeModel(v)
	}

	if p.Name == "" {
		p.Name = e.extractName(doc)
	}

	if len(p.Images) == 0 {
		for _, m := range e.artImageRe.FindAllStringSubmatch(html, -1) {
			p.Images = append(p.Images, m[1])
		}
		p.Images = dedupeImages(p.Images, 10)
	}

	p.Color = e.sanitizeColor(p.Color)
	if isInvalidModel(p.Model) {
		p.Model = ""
	}

	if p.Brand == "" && p.Name != "" {
		p.Brand = e.brandFromName(p.Name)
	}

	e.fillFromFallback(doc, p)

	if !p.HasCore() {
		return nil, fmt.Errorf("no product data found at %s", pageURL)
	}

	return p, nil
}

func (e *HomeProExtractor) cleanBranding(text string) string {
	for _, re := range e.brandingRes {
		text = re.ReplaceAllString(text, "")
	}
	text = strings.Join(strings.Fields(text), " ")
	return strings.Trim(text, "-|,;: ")
}

// extractPrice tries the analytics hidden input first, then the sale
// price span and baht-prefixed markup. Values outside 1..100000 THB are
// noise on this site.
func (e *HomeProExtractor) extractPrice(doc *goquery.Document, html string) (float64, bool) {
	if m := e.gtmPriceRe.FindStringSubmatch(html); len(m) > 1 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v >= MinPlausiblePrice && v <= MaxSanePrice {
			return v, true
		}
	}

	for _, selector := range []string{"span.amount", "div.price", "div.offer-price"} {
		if v, ok := ParsePrice(doc.Find(selector).First().Text()); ok && SanePrice(v) {
			return v, true
		}
	}

	for _, re := range e.bahtRes {
		if m := re.FindStringSubmatch(html); len(m) > 1 {
			if v, ok := ParsePrice(m[1]); ok && SanePrice(v) {
				return v, true
			}
		}
	}

	if meta := metaContent(doc, `meta[property="product:price:amount"]`); meta != "" {
		if v, ok := ParsePrice(meta); ok && SanePrice(v) {
			return v, true
		}
	}

	return 0, false
}

func (e *HomeProExtractor) extractOriginalPrice(html string) (float64, bool) {
	for _, re := range e.origPriceRes {
		if m := re.FindStringSubmatch(html); len(m) > 1 {
			if v, ok := ParsePrice(m[1]); ok {
				return v, true
			}
		}
	}
	return 0, false
}

func (e *HomeProExtractor) extractCategory(doc *goquery.Document) string {
	selectors := []string{
		`nav[class*="breadcrumb"] a`,
		`div[class*="breadcrumb"] a`,
		`ol[class*="breadcrumb"] a`,
	}
	for _, selector := range selectors {
		var crumbs []string
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			crumbs = append(crumbs, s.Text())
		})
		if cat := lastUsableCrumb(crumbs, []string{"homepro", "โฮมโปร"}); cat != "" {
			return cat
		}
	}
	return ""
}

// extractSpecs reads the pdp spec table, label in the first td and value
// in the second. Width, depth and height rows are joined into a single
// dimensions string when at least two are present.
func (e *HomeProExtractor) extractSpecs(doc *goquery.Document) map[string]string {
	specs := make(map[string]string)

	numericFields := []struct {
		prefix string
		field  string
	}{
		{"ความสูง", "height"},
		{"ความกว้าง", "width"},
		{"ความลึก", "depth"},
		{"น้ำหนัก", "weight"},
	}
	textFields := []struct {
		label string
		field string
	}{
		{"ขนาดสินค้า", "size"},
		{"สี", "color"},
		{"ยี่ห้อ", "brand"},
		{"รุ่น", "model"},
	}

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		label := CleanText(cells.Eq(0).Text())
		value := CleanText(cells.Eq(1).Text())
		if label == "" || value == "" || len([]rune(value)) >= 100 {
			return
		}

		for _, f := range numericFields {
			if strings.HasPrefix(label, f.prefix) {
				if m := e.numberRe.FindStringSubmatch(value); len(m) > 1 {
					if _, ok := specs[f.field]; !ok {
						specs[f.field] = m[1]
					}
				}
				return
			}
		}
		for _, f := range textFields {
			if label == f.label {
				if _, ok := specs[f.field]; !ok {
					specs[f.field] = value
				}
				return
			}
		}
	})

	var dims []string
	for _, key := range []string{"width", "depth", "height"} {
		if v, ok := specs[key]; ok {
			dims = append(dims, v)
		}
	}
	if len(dims) >= 2 {
		specs["dimensions"] = strings.Join(dims, " x ") + " cm"
	}

	if size, ok := specs["size"]; ok {
		if e.nameVolumeRe.MatchString(size) {
			specs["volume"] = size
		}
	}

	return specs
}

func (e *HomeProExtractor) extractName(doc *goquery.Document) string {
	selectors := []string{
		`h1[class*="product"]`,
		`h1[class*="pdp"]`,
		"h1",
	}

	for _, selector := range selectors {
		name := e.cleanBranding(CleanText(doc.Find(selector).First().Text()))
		if name != "" && len([]rune(name)) > 3 {
			return name
		}
	}
	return ""
}

func (e *HomeProExtractor) brandFromName(name string) string {
	upper := strings.ToUpper(name)
	for _, brand := range homeProKnownBrands {
		if strings.Contains(upper, brand) {
			return brand
		}
	}

	if m := e.nameBrandRe.FindStringSubmatch(name); len(m) > 1 {
		candidate := m[1]
		for _, unit := range unitWords {
			if candidate == unit {
				return ""
			}
		}
		return candidate
	}
	return ""
}

// sanitizeColor drops values contaminated with stylesheet text or site
// chrome before applying the shared color cleanup.
func (e *HomeProExtractor) sanitizeColor(color string) string {
	if color == "" {
		return ""
	}
	lower := strings.ToLower(color)
	for _, w := range e.cssColorWords {
		if strings.Contains(lower, w) {
			return ""
		}
	}
	return SanitizeColor(color)
}

// fillFromFallback runs the generic extractors for whatever is still
// missing. Fallback prices are distrusted: values that match a bottle
// size from the product name ("500ml" scanned as 500) are rejected.
func (e *HomeProExtractor) fillFromFallback(doc *goquery.Document, p *models.ScrapedProduct) {
	if p.Name == "" {
		p.Name = e.cleanBranding(e.generic.extractName(doc))
	}

	if p.CurrentPrice != nil {
		return
	}

	fallback := models.NewScrapedProduct(p.URL)
	e.generic.extractPrices(doc, fallback)

	if fallback.CurrentPrice != nil {
		v := *fallback.CurrentPrice
		if !e.looksLikeVolume(v, p.Name) && v >= 10 && v <= 50000 {
			p.CurrentPrice = models.Float64Ptr(v)
		}
	}
	if p.OriginalPrice == nil && fallback.OriginalPrice != nil {
		v := *fallback.OriginalPrice
		if !e.looksLikeVolume(v, p.Name) && v >= 10 && v <= MaxSanePrice {
			p.OriginalPrice = models.Float64Ptr(v)
		}
	}
}

func (e *HomeProExtractor) looksLikeVolume(price float64, name string) bool {
	for _, v := range commonVolumeSizes {
		if price == v {
			return true
		}
	}

	if name != "" {
		if m := e.nameVolumeRe.FindStringSubmatch(name); len(m) > 1 {
			if vol, err := strconv.ParseFloat(m[1], 64); err == nil {
				if price == vol || price == vol*10 {
					return true
				}
			}
		}
	}
	return false
}

func isInvalidModel(model string) bool {
	lower := strings.ToLower(strings.TrimSpace(model))
	for _, v := range invalidModelValues {
		if lower == v {
			return true
		}
	}
	return false
}

// filterHomeProImages keeps only real product shots from the HomePro CDN.
func filterHomeProImages(images []string) []string {
	var out []string
	for _, img := range images {
		if strings.Contains(img, "cdn.homepro.co.th") && strings.Contains(img, "ART_IMAGE") {
			out = append(out, img)
		}
	}
	return dedupeImages(out, 10)
}
