package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

type BoonthavornExtractor struct {
	generic      *GenericExtractor
	oldPriceRe   *regexp.Regexp
	weightRes    []*regexp.Regexp
	modelRe      *regexp.Regexp
	urlSKURes    []*regexp.Regexp
	crumbLinkSel string
}

func NewBoonthavornExtractor() *BoonthavornExtractor {
	return &BoonthavornExtractor{
		generic: NewGenericExtractor(),
		// The struck-through price renders as "บาท</span>" followed by a
		// chain of digit spans.
		oldPriceRe: regexp.MustCompile(`(?s)productPrice-oldPrice.*?price-currency-[^>]+>บาท</span>((?:<span>[^<]+</span>)+)`),
		weightRes: []*regexp.Regexp{
			regexp.MustCompile(`(?is)productAttributes-name[^>]*>น้ำหนัก</span>.*?richContent-root[^>]*>([^<]+)</div>`),
			regexp.MustCompile(`น้ำหนัก[:\s]*([0-9.]+\s*(?:KG|kg|Kg|กก\.|กิโลกรัม))`),
			regexp.MustCompile(`(?i)>น้ำหนัก<[^>]*>[^<]*<[^>]*>([^<]+(?:KG|kg|กก))`),
			regexp.MustCompile(`(?i)Weight[:\s]*([0-9.]+\s*(?:KG|kg))`),
		},
		modelRe: regexp.MustCompile(`รุ่น\s+([A-Za-z0-9\-_\s]+)`),
		urlSKURes: []*regexp.Regexp{
			regexp.MustCompile(`-(\d+)$`),
			regexp.MustCompile(`/product/([^/]+)`),
			regexp.MustCompile(`/item/([^/]+)`),
		},
		crumbLinkSel: `a[class*="breadcrumbs-link"]`,
	}
}

func (e *BoonthavornExtractor) Retailer() string { return models.RetailerBoonthavorn }

func (e *BoonthavornExtractor) Extract(html, pageURL string) (*models.ScrapedProduct, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	p := models.NewScrapedProduct(pageURL)
	p.Retailer = "Boonthavorn"

	ld := parseJSONLD(doc)
	if ld != nil {
		p.Name = CleanText(ld.Name)
		p.Description = CleanText(ld.Description)
		p.Brand = SanitizeBrand(ld.Brand)
		p.SKU = SanitizeSKU(ld.SKU)
		if PlausiblePrice(ld.Price) {
			p.CurrentPrice = models.Float64Ptr(ld.Price)
			if ld.Currency != "" {
				p.Currency = ld.Currency
			}
		}
		if PlausiblePrice(ld.OriginalPrice) {
			p.OriginalPrice = models.Float64Ptr(ld.OriginalPrice)
		}
		p.Images = append(p.Images, ld.Images...)
	}

	e.applyQuickInfo(doc, p)

	if p.Volume == "" {
		for _, re := range e.weightRes {
			if m := re.FindStringSubmatch(html); len(m) > 1 {
				p.Volume = CleanText(m[1])
				break
			}
		}
	}

	// Last breadcrumb link is the immediate parent category.
	if cat := CleanText(doc.Find(e.crumbLinkSel).Last().Text()); cat != "" {
		p.Category = SanitizeField(cat, 100)
	}

	if p.OriginalPrice == nil {
		if m := e.oldPriceRe.FindStringSubmatch(html); len(m) > 1 {
			raw := strings.ReplaceAll(tagRe.ReplaceAllString(m[1], ""), ",", "")
			if v, ok := ParsePrice(raw); ok {
				p.OriginalPrice = models.Float64Ptr(v)
			}
		}
	}

	if p.Name == "" {
		p.Name = e.generic.extractName(doc)
	}
	if p.Description == "" {
		if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
			p.Description = CleanText(desc)
		}
	}
	if len(p.Images) == 0 {
		p.Images = e.generic.extractImages(doc)
	}
	p.Images = dedupeImages(p.Images, 10)

	if p.Material == "" {
		p.Material = e.generic.extractMaterial(doc.Text())
	}
	if p.CurrentPrice == nil {
		e.generic.extractPrices(doc, p)
	}

	if p.Model == "" {
		p.Model = e.modelFrom(p.Name)
	}
	if p.Model == "" {
		p.Model = e.modelFrom(p.Description)
	}

	if p.SKU == "" || p.SKU == "None" {
		p.SKU = e.skuFromURL(pageURL)
	}

	if !p.HasCore() {
		return nil, fmt.Errorf("no product data found at %s", pageURL)
	}

	return p, nil
}

// applyQuickInfo reads the Quick Info label/value pairs. Labels and
// values are adjacent <label> elements with hashed class suffixes.
func (e *BoonthavornExtractor) applyQuickInfo(doc *goquery.Document, p *models.ScrapedProduct) {
	doc.Find(`label[class*="quickInfo-infoLabel"]`).Each(func(_ int, s *goquery.Selection) {
		next := s.Next()
		if !next.Is(`label[class*="quickInfo-infoValue"]`) {
			return
		}

		label := CleanText(s.Text())
		value := CleanText(next.Text())
		if value == "" {
			return
		}

		switch label {
		case "สี":
			if p.Color == "" {
				p.Color = SanitizeColor(value)
			}
		case "ขนาดสินค้า":
			p.Dimensions = SanitizeDimensions(value)
		case "น้ำหนัก":
			p.Volume = SanitizeField(value, 50)
		case "ยี่ห้อ":
			if p.Brand == "" {
				p.Brand = SanitizeBrand(value)
			}
		case "รหัสสินค้า":
			if p.SKU == "" || p.SKU == "None" {
				p.SKU = SanitizeSKU(value)
			}
		}
	})
}

func (e *BoonthavornExtractor) modelFrom(text string) string {
	if text == "" || !strings.Contains(text, "รุ่น") {
		return ""
	}
	if m := e.modelRe.FindStringSubmatch(text); len(m) > 1 {
		return SanitizeField(strings.TrimSpace(m[1]), 200)
	}
	return ""
}

func (e *BoonthavornExtractor) skuFromURL(pageURL string) string {
	for _, re := range e.urlSKURes {
		if m := re.FindStringSubmatch(pageURL); len(m) > 1 {
			if IsValidSKU(m[1]) {
				return m[1]
			}
		}
	}
	return ""
}
