package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

// thaiWatsaduBranding are store slogans that contaminate scraped text on
// thaiwatsadu.com ("ครบเรื่องบ้าน ถูกและดี" is the store tagline).
var thaiWatsaduBranding = []string{
	"ไทวัสดุ",
	"thaiwatsadu",
	"ครบเรื่องบ้าน ถูกและดี",
	"ครบเรื่องบ้าน",
	"ถูกและดี",
}

// knownHardwareBrands appear uppercased inside Thai Watsadu product names.
var knownHardwareBrands = []string{
	"MAKITA", "BOSCH", "DEWALT", "MILWAUKEE", "HITACHI", "TOSHIBA",
	"PHILIPS", "PANASONIC", "SAMSUNG", "LG", "SONY", "TCL", "HAIER",
	"ELECTROLUX", "MITSUBISHI", "DAIKIN", "CARRIER", "SHARP",
	"TOA", "BEGER", "NIPPON", "JOTUN", "DULUX",
	"AMERICAN STANDARD", "COTTO", "KOHLER", "GROHE", "TOTO",
	"YALE", "HAFELE", "SCHLAGE",
	"THE TREE", "ZD", "GTS", "SCG",
}

// thaiWatsaduSpecLabels maps the labels of the "ข้อมูลเฉพาะสินค้า" table
// to product fields. Order matters: specific labels before generic ones,
// the bare "ขนาด" last.
var thaiWatsaduSpecLabels = []struct {
	label string
	field string
}{
	{"ขนาด (กxลxส)(ซม.)", "dimensions"},
	{"ขนาด(กxลxส)(ซม.)", "dimensions"},
	{"ขนาดสินค้า (ซม.)", "dimensions"},
	{"วัสดุหลัก", "material"},
	{"วัสดุ", "material"},
	{"แบรนด์", "brand"},
	{"ยี่ห้อ", "brand"},
	{"สี", "color"},
	{"รุ่น", "model"},
	{"น้ำหนัก (กก.)", "weight"},
	{"น้ำหนัก", "weight"},
	{"ขนาด", "size"},
}

// invalidMaterials are company names, slogans and category words that the
// generic material patterns pick up by mistake on thaiwatsadu.com.
var invalidMaterials = []string{
	"ครบเรื่องบ้าน", "ถูกและดี", "ไทวัสดุ", "thaiwatsadu",
	"บริษัท", "จำกัด", "มหาชน", "corporation", "company",
	"เซ็นทรัล", "central", "retail", "รีเทล",
	"http", "www", ".com", ".co.th",
	"ตกแต่ง", "วัสดุตกแต่ง", "อุปกรณ์", "ประตู", "หน้าต่าง",
	"บันได", "รั้ว", "สินค้า", "หมวดหมู่",
}

type ThaiWatsaduExtractor struct {
	generic       *GenericExtractor
	urlSKURes     []*regexp.Regexp
	brandingRes   []*regexp.Regexp
	nameModelRe   *regexp.Regexp
	nameBrandRe   *regexp.Regexp
	nameColorRe   *regexp.Regexp
	specDimRe     *regexp.Regexp
	deliveryDimRe *regexp.Regexp
	digitsRe      *regexp.Regexp
}

func NewThaiWatsaduExtractor() *ThaiWatsaduExtractor {
	brandingRes := make([]*regexp.Regexp, 0, len(thaiWatsaduBranding))
	for _, b := range thaiWatsaduBranding {
		brandingRes = append(brandingRes, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(b)))
	}

	return &ThaiWatsaduExtractor{
		generic:     NewGenericExtractor(),
		brandingRes: brandingRes,
		urlSKURes: []*regexp.Regexp{
			// /product/...-60272160 and /th/sku/60272160
			regexp.MustCompile(`-(\d{8})(?:\?|$)`),
			regexp.MustCompile(`/sku/(\d+)`),
		},
		nameModelRe: regexp.MustCompile(`รุ่น\s+([A-Za-z0-9\-_.]+)`),
		nameBrandRe: regexp.MustCompile(`([A-Z][A-Z0-9]+)\s+รุ่น`),
		nameColorRe: regexp.MustCompile(`สี([ก-๙a-zA-Z]+)`),
		specDimRe:   regexp.MustCompile(`(?i)<div>(\d+(?:\.\d+)?\s*x\s*\d+(?:\.\d+)?\s*x\s*\d+(?:\.\d+)?)</div>`),
		// Delivery size "(ก)35 x (ย)67 x (ส)50"; the markup splits it
		// with React comment nodes, so this runs on rendered text.
		deliveryDimRe: regexp.MustCompile(`\(ก\)\s*([\d.]+)\s*x\s*\(ย\)\s*([\d.]+)\s*x\s*\(ส\)\s*([\d.]+)`),
		digitsRe:      regexp.MustCompile(`\d+`),
	}
}

func (e *ThaiWatsaduExtractor) Retailer() string { return models.RetailerThaiWatsadu }

func (e *ThaiWatsaduExtractor) Extract(html, pageURL string) (*models.ScrapedProduct, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	p := models.NewScrapedProduct(pageURL)
	p.Retailer = "Thai Watsadu"

	// The URL carries the 8-digit SKU; JSON-LD SKUs on this site are
	// often contaminated, so the URL wins.
	p.SKU = e.skuFromURL(pageURL)

	ld := parseJSONLD(doc)
	if ld != nil {
		p.Name = e.cleanBranding(CleanText(ld.Name))
		p.Description = e.cleanBranding(CleanText(ld.Description))
		p.Brand = SanitizeBrand(e.cleanBranding(ld.Brand))
		if PlausiblePrice(ld.Price) {
			p.CurrentPrice = models.Float64Ptr(ld.Price)
		}
		if PlausiblePrice(ld.OriginalPrice) {
			p.OriginalPrice = models.Float64Ptr(ld.OriginalPrice)
		}
		p.Images = append(p.Images, ld.Images...)
	}

	p.Category = e.extractCategory(doc, ld)

	specs := e.extractSpecs(doc, html)
	if v := specs["dimensions"]; v != "" {
		p.Dimensions = v
	}
	if v := specs["material"]; v != "" {
		p.Material = v
	}
	if v := specs["brand"]; v != "" && p.Brand == "" {
		p.Brand = SanitizeBrand(v)
	}
	if v := specs["color"]; v != "" {
		p.Color = SanitizeColor(v)
	}
	if v := specs["model"]; v != "" {
		p.Model = SanitizeModel(v)
	}
	if v := specs["weight"]; v != "" && p.Dimensions == "" {
		p.Dimensions = fmt.Sprintf("น้ำหนัก: %s กก.", v)
	}

	if p.Name == "" {
		p.Name = e.extractName(doc)
	}

	if p.Name != "" {
		if p.Model == "" {
			if m := e.nameModelRe.FindStringSubmatch(p.Name); len(m) > 1 {
				p.Model = strings.TrimSpace(m[1])
			}
		}
		if p.Brand == "" {
			p.Brand = e.brandFromName(p.Name)
		}
	}

	docText := doc.Text()
	if p.Color == "" {
		p.Color = e.generic.extractColor(docText)
	}
	if p.Color == "" && p.Name != "" {
		if m := e.nameColorRe.FindStringSubmatch(p.Name); len(m) > 1 {
			p.Color = strings.TrimSpace(m[1])
		}
	}

	if p.Dimensions == "" {
		if dims := e.cleanBranding(e.generic.extractDimensions(docText)); e.looksLikeDimensions(dims) {
			p.Dimensions = dims
		}
	}

	if p.Material == "" {
		if mat := e.cleanBranding(e.generic.extractMaterial(docText)); mat != "" && !e.isInvalidMaterial(mat) {
			p.Material = mat
		}
	}

	if p.Volume == "" {
		p.Volume = e.generic.extractVolume(docText)
	}

	if p.CurrentPrice == nil {
		e.generic.extractPrices(doc, p)
	}

	if len(p.Images) == 0 {
		p.Images = e.generic.extractImages(doc)
	}
	p.Images = dedupeImages(p.Images, 10)

	if !p.HasCore() {
		return nil, fmt.Errorf("no product data found at %s", pageURL)
	}

	return p, nil
}

func (e *ThaiWatsaduExtractor) skuFromURL(pageURL string) string {
	for _, re := range e.urlSKURes {
		if m := re.FindStringSubmatch(pageURL); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

// cleanBranding strips store slogans and the leftover "- " / "| "
// separators they leave behind.
func (e *ThaiWatsaduExtractor) cleanBranding(text string) string {
	for _, re := range e.brandingRes {
		text = re.ReplaceAllString(text, "")
	}
	text = strings.Join(strings.Fields(text), " ")
	return strings.Trim(text, "-|,;: ")
}

func (e *ThaiWatsaduExtractor) extractName(doc *goquery.Document) string {
	selectors := []string{
		`h1[class*="product"]`,
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

func (e *ThaiWatsaduExtractor) brandFromName(name string) string {
	if m := e.nameBrandRe.FindStringSubmatch(name); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}

	upper := strings.ToUpper(name)
	for _, brand := range knownHardwareBrands {
		if strings.Contains(upper, brand) {
			return brand
		}
	}
	return ""
}

// extractCategory prefers the category bar links, then breadcrumb
// JSON-LD, then generic breadcrumb markup, then the Product category.
func (e *ThaiWatsaduExtractor) extractCategory(doc *goquery.Document, ld *jsonLDProduct) string {
	// First categoryBar link is the top-level category.
	if cat := CleanText(doc.Find(`a[class*="categoryBar_journeyNavText"]`).First().Text()); cat != "" {
		return SanitizeField(cat, 100)
	}

	if crumbs := parseJSONLDBreadcrumbs(doc); len(crumbs) > 0 {
		if cat := lastUsableCrumb(crumbs, []string{"thaiwatsadu", "ไทวัสดุ"}); cat != "" {
			return cat
		}
	}

	if cat := e.generic.extractCategory(doc); cat != "" {
		return cat
	}

	if ld != nil && ld.Category != "" {
		return SanitizeField(ld.Category, 100)
	}
	return ""
}

// extractSpecs walks the half-width cells of the specification table.
// Labels and values sit in sibling w-1/2 wrappers, so the cell texts
// alternate label, value, label, value.
func (e *ThaiWatsaduExtractor) extractSpecs(doc *goquery.Document, html string) map[string]string {
	specs := make(map[string]string)

	var cells []string
	doc.Find(`div[class*="w-1/2"]`).Each(func(_ int, s *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(s.Text()))
	})

	for i := 0; i+1 < len(cells); i++ {
		for _, lm := range thaiWatsaduSpecLabels {
			if cells[i] != lm.label {
				continue
			}
			value := e.cleanBranding(cells[i+1])
			if value == "" {
				break
			}
			if lm.field == "size" {
				if _, ok := specs["dimensions"]; !ok {
					specs["dimensions"] = value
				}
			} else if _, ok := specs[lm.field]; !ok {
				specs[lm.field] = value
			}
			break
		}
	}

	if _, ok := specs["dimensions"]; !ok {
		if m := e.specDimRe.FindStringSubmatch(html); len(m) > 1 {
			specs["dimensions"] = strings.TrimSpace(m[1])
		}
	}
	if _, ok := specs["dimensions"]; !ok {
		if m := e.deliveryDimRe.FindStringSubmatch(doc.Text()); len(m) > 3 {
			specs["dimensions"] = fmt.Sprintf("%s x %s x %s", m[1], m[2], m[3])
		}
	}

	return specs
}

// looksLikeDimensions rejects fallback matches that are a lone number or
// random label text rather than a size.
func (e *ThaiWatsaduExtractor) looksLikeDimensions(dims string) bool {
	if dims == "" {
		return false
	}
	return strings.Contains(strings.ToLower(dims), "x") || len(e.digitsRe.FindAllString(dims, -1)) > 1
}

func (e *ThaiWatsaduExtractor) isInvalidMaterial(material string) bool {
	lower := strings.ToLower(material)
	for _, s := range invalidMaterials {
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
