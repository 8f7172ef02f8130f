package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

// GlobalHouseExtractor handles globalhouse.co.th. The richest data sits
// in the Next.js __NEXT_DATA__ payload; markup selectors only back it up.
type GlobalHouseExtractor struct {
	generic      *GenericExtractor
	priceRes     []*regexp.Regexp
	origPriceRes []*regexp.Regexp
	urlSKURe     *regexp.Regexp
	urlBrandRe   *regexp.Regexp
	brandRes     []*regexp.Regexp
	cdnImageRe   *regexp.Regexp
	nameColorRe  *regexp.Regexp
	numberRe     *regexp.Regexp
}

// globalHouseNextData mirrors the slice of the __NEXT_DATA__ payload the
// product page ships: spec attributes and rich-text content blocks.
type globalHouseNextData struct {
	Props struct {
		PageProps struct {
			AST struct {
				Data struct {
					Attributes  []globalHouseAttr `json:"attributes"`
					HTMLContent []globalHouseAttr `json:"htmlContent"`
				} `json:"data"`
			} `json:"ast"`
		} `json:"pageProps"`
	} `json:"props"`
}

type globalHouseAttr struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func NewGlobalHouseExtractor() *GlobalHouseExtractor {
	return &GlobalHouseExtractor{
		generic: NewGenericExtractor(),
		priceRes: []*regexp.Regexp{
			// Sale price renders as red text-3xl.
			regexp.MustCompile(`(?i)<span[^>]*class="[^"]*text-3xl[^"]*text-red[^"]*"[^>]*>฿?([\d,]+)</span>`),
			regexp.MustCompile(`(?i)<span[^>]*class="[^"]*text-red[^"]*text-3xl[^"]*"[^>]*>฿?([\d,]+)</span>`),
			regexp.MustCompile(`(?i)<span[^>]*class="[^"]*font-bold[^"]*text-3xl[^"]*"[^>]*>฿?([\d,]+)</span>`),
			regexp.MustCompile(`(?i)<span[^>]*class="[^"]*text-(?:2|3)xl[^"]*"[^>]*>฿?([\d,]+)</span>`),
			regexp.MustCompile(`(?is)<span[^>]*class="[^"]*price[^"]*final[^"]*"[^>]*>(.*?)</span>`),
			regexp.MustCompile(`(?is)<span[^>]*class="[^"]*selling-price[^"]*"[^>]*>(.*?)</span>`),
			regexp.MustCompile(`ราคา[:\s]*([฿]?[\d,]+\.?\d*)`),
		},
		origPriceRes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)<span[^>]*class="[^"]*line-through[^"]*"[^>]*>฿?([\d,]+)</span>`),
			regexp.MustCompile(`(?s)ราคาเดิม.*?฿?([\d,]+)`),
			regexp.MustCompile(`(?is)<span[^>]*class="[^"]*was-price[^"]*"[^>]*>(.*?)</span>`),
			regexp.MustCompile(`(?is)<del[^>]*>(.*?)</del>`),
			regexp.MustCompile(`ราคาปกติ[:\s]*([฿]?[\d,]+\.?\d*)`),
		},
		// /product/MAZUMA-...-i.8852163012022
		urlSKURe:   regexp.MustCompile(`-i\.(\d+)(?:\?|$)`),
		urlBrandRe: regexp.MustCompile(`/product/([A-Za-z0-9]+)-`),
		brandRes: []*regexp.Regexp{
			regexp.MustCompile(`(?is)<span[^>]*class="[^"]*brand[^"]*"[^>]*>(.*?)</span>`),
			regexp.MustCompile(`(?is)<a[^>]*class="[^"]*brand[^"]*"[^>]*>(.*?)</a>`),
			regexp.MustCompile(`ยี่ห้อ[:\s]*([^\n<]+)`),
			regexp.MustCompile(`แบรนด์[:\s]*([^\n<]+)`),
		},
		cdnImageRe:  regexp.MustCompile(`https://www\.image-gbh\.com/uploads/[^"&\s]+\.(?:jpg|jpeg|png)`),
		nameColorRe: regexp.MustCompile(`สี(\S+)`),
		numberRe:    regexp.MustCompile(`([\d.]+)`),
	}
}

func (e *GlobalHouseExtractor) Retailer() string { return models.RetailerGlobalHouse }

func (e *GlobalHouseExtractor) Extract(html, pageURL string) (*models.ScrapedProduct, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	p := models.NewScrapedProduct(pageURL)
	p.Retailer = "Global House"

	e.applyNextData(doc, p)

	ld := parseJSONLD(doc)
	if ld != nil {
		if p.Name == "" {
			p.Name = CleanText(ld.Name)
		}
		if p.Description == "" {
			p.Description = CleanText(ld.Description)
		}
		p.Brand = SanitizeBrand(ld.Brand)
		p.SKU = SanitizeSKU(ld.SKU)
		if PlausiblePrice(ld.Price) {
			p.CurrentPrice = models.Float64Ptr(ld.Price)
		}
		p.Images = append(p.Images, ld.Images...)
	}

	if p.Name == "" {
		p.Name = e.extractName(doc)
	}

	if p.CurrentPrice == nil {
		for _, re := range e.priceRes {
			if m := re.FindStringSubmatch(html); len(m) > 1 {
				if v, ok := ParsePrice(CleanText(m[1])); ok {
					p.CurrentPrice = models.Float64Ptr(v)
					break
				}
			}
		}
	}

	if p.OriginalPrice == nil {
		for _, re := range e.origPriceRes {
			if m := re.FindStringSubmatch(html); len(m) > 1 {
				if v, ok := ParsePrice(CleanText(m[1])); ok {
					p.OriginalPrice = models.Float64Ptr(v)
					break
				}
			}
		}
	}

	if p.SKU == "" {
		if m := e.urlSKURe.FindStringSubmatch(pageURL); len(m) > 1 && IsValidSKU(m[1]) {
			p.SKU = m[1]
		}
	}

	if p.Brand == "" {
		p.Brand = e.extractBrand(html, pageURL)
	}

	// Breadcrumb anchors carry the category in their title attribute.
	var crumbs []string
	doc.Find(`a[data-slot="breadcrumb-link"]`).Each(func(_ int, s *goquery.Selection) {
		if title, ok := s.Attr("title"); ok {
			crumbs = append(crumbs, title)
		}
	})
	for i := len(crumbs) - 1; i >= 0; i-- {
		cat := CleanText(crumbs[i])
		if cat != "" && cat != "หน้าแรก" && cat != "หมวดหมู่" && cat != "สินค้า" && len([]rune(cat)) > 2 {
			p.Category = SanitizeField(cat, 100)
			break
		}
	}

	if p.Color == "" && p.Name != "" {
		if m := e.nameColorRe.FindStringSubmatch(p.Name); len(m) > 1 {
			p.Color = "สี" + m[1]
		}
	}

	if len(p.Images) == 0 {
		p.Images = dedupeImages(e.cdnImageRe.FindAllString(html, -1), 10)
	} else {
		p.Images = dedupeImages(p.Images, 10)
	}

	// Specs load dynamically on this site, so short scraped values are
	// noise, not data.
	if len([]rune(p.Volume)) < 3 {
		p.Volume = ""
	}
	if len([]rune(p.Dimensions)) < 5 {
		p.Dimensions = ""
	}

	if !p.HasCore() {
		return nil, fmt.Errorf("no product data found at %s", pageURL)
	}

	return p, nil
}

// applyNextData walks props.pageProps.ast.data for spec attributes and
// the "คุณสมบัติเด่น" (key features) content block.
func (e *GlobalHouseExtractor) applyNextData(doc *goquery.Document, p *models.ScrapedProduct) {
	raw := doc.Find(`script#__NEXT_DATA__`).First().Text()
	if raw == "" {
		return
	}

	var data globalHouseNextData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return
	}

	var width, depth, height string
	for _, attr := range data.Props.PageProps.AST.Data.Attributes {
		switch {
		case attr.Title == "รุ่น" && attr.Detail != "":
			p.Model = SanitizeModel(attr.Detail)
		case strings.Contains(attr.Title, "กว้าง"):
			width = e.firstNumber(attr.Detail)
		case strings.Contains(attr.Title, "ยาว"):
			depth = e.firstNumber(attr.Detail)
		case strings.Contains(attr.Title, "สูง"):
			height = e.firstNumber(attr.Detail)
		}
	}

	var dims []string
	for _, d := range []string{width, depth, height} {
		if d != "" {
			dims = append(dims, d)
		}
	}
	if len(dims) > 0 {
		p.Dimensions = strings.Join(dims, " x ") + " cm"
	}

	for _, hc := range data.Props.PageProps.AST.Data.HTMLContent {
		if hc.Title != "คุณสมบัติเด่น" || hc.Detail == "" {
			continue
		}
		desc := CleanText(tagRe.ReplaceAllString(hc.Detail, " "))
		if len([]rune(desc)) > 10 {
			if runes := []rune(desc); len(runes) > 500 {
				desc = string(runes[:500])
			}
			p.Description = desc
			break
		}
	}
}

func (e *GlobalHouseExtractor) firstNumber(detail string) string {
	if m := e.numberRe.FindStringSubmatch(detail); len(m) > 1 {
		return m[1]
	}
	return ""
}

func (e *GlobalHouseExtractor) extractName(doc *goquery.Document) string {
	selectors := []string{
		`h1[class*="product"]`,
		`h1[class*="pdp-title"]`,
		`div[class*="product-title"]`,
		"h1",
	}

	for _, selector := range selectors {
		name := CleanText(doc.Find(selector).First().Text())
		if name != "" && len([]rune(name)) > 3 && !strings.Contains(strings.ToLower(name), "global house") {
			return name
		}
	}
	return ""
}

func (e *GlobalHouseExtractor) extractBrand(html, pageURL string) string {
	for _, re := range e.brandRes {
		if m := re.FindStringSubmatch(html); len(m) > 1 {
			if brand := SanitizeBrand(CleanText(m[1])); brand != "" {
				return brand
			}
		}
	}

	// First URL segment after /product/ is usually the brand.
	if m := e.urlBrandRe.FindStringSubmatch(pageURL); len(m) > 1 && len(m[1]) >= 2 {
		return m[1]
	}
	return ""
}
