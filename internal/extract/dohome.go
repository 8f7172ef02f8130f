package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

// DoHomeExtractor handles dohome.co.th, a Next.js storefront. Specs live
// in script payloads with escaped JSON, so several patterns run against
// the raw HTML rather than the DOM.
type DoHomeExtractor struct {
	generic         *GenericExtractor
	priceRes        []*regexp.Regexp
	origPriceRes    []*regexp.Regexp
	urlSKURe        *regexp.Regexp
	brandRes        []*regexp.Regexp
	categoryRes     []*regexp.Regexp
	dimensionJSONRe *regexp.Regexp
	modelJSONRe     *regexp.Regexp
}

// badBrandWords mark anchor text that is markup vocabulary rather than a
// brand name.
var badBrandWords = []string{"attribute", "product", "sku", "stock", "link"}

func NewDoHomeExtractor() *DoHomeExtractor {
	return &DoHomeExtractor{
		generic: NewGenericExtractor(),
		priceRes: []*regexp.Regexp{
			// <span class="text-3xl font-semibold ...">฿1,090.00</span>
			regexp.MustCompile(`(?i)<span[^>]*class="[^"]*text-3xl[^"]*font-semibold[^"]*"[^>]*>฿?([\d,]+(?:\.\d{2})?)</span>`),
			regexp.MustCompile(`"marketPrice"\s*:\s*"฿?([\d,]+(?:\.\d{2})?)"`),
			regexp.MustCompile(`"salePrice"\s*:\s*"฿?([\d,]+(?:\.\d{2})?)"`),
			regexp.MustCompile(`>฿([\d,]+(?:\.\d{2})?)<`),
			regexp.MustCompile(`(?is)<span[^>]*class="[^"]*price[^"]*"[^>]*>(.*?)</span>`),
			regexp.MustCompile(`ราคา[:\s]*([฿]?[\d,]+\.?\d*)`),
		},
		origPriceRes: []*regexp.Regexp{
			regexp.MustCompile(`(?is)<span[^>]*class="[^"]*old-price[^"]*"[^>]*>(.*?)</span>`),
			regexp.MustCompile(`(?is)<span[^>]*class="[^"]*regular-price[^"]*"[^>]*>(.*?)</span>`),
			regexp.MustCompile(`ราคาปกติ[:\s]*([฿]?[\d,]+\.?\d*)`),
		},
		// /product/product-name-10026550
		urlSKURe: regexp.MustCompile(`-(\d{6,})(?:\?|$)`),
		brandRes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)<a[^>]*href="/brand/[^"]*"[^>]*>([^<]+)</a>`),
			regexp.MustCompile(`(?i)<span[^>]*class="[^"]*brand[^"]*"[^>]*>([^<]+)</span>`),
		},
		categoryRes: []*regexp.Regexp{
			regexp.MustCompile(`(?i)<a[^>]*href="/category/[^"]*"[^>]*>([^<]+)</a>`),
			regexp.MustCompile(`"categoryName"\s*:\s*"([^"]+)"`),
		},
		// Next.js embeds specs with escaped quotes:
		// \"dimension\":{\"width\":29.6,\"long\":80,\"high\":12,\"weight\":4.5}
		dimensionJSONRe: regexp.MustCompile(`\\?"dimension\\?"\s*:\s*\{[^}]*\\?"width\\?"\s*:\s*([\d.]+)[^}]*\\?"long\\?"\s*:\s*([\d.]+)[^}]*\\?"high\\?"\s*:\s*([\d.]+)[^}]*\\?"weight\\?"\s*:\s*([\d.]+)`),
		modelJSONRe:     regexp.MustCompile(`\\?"productModel\\?"\s*:\s*\\?"([^"\\]+)\\?"`),
	}
}

func (e *DoHomeExtractor) Retailer() string { return models.RetailerDoHome }

func (e *DoHomeExtractor) Extract(html, pageURL string) (*models.ScrapedProduct, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	p := models.NewScrapedProduct(pageURL)
	p.Retailer = "Do Home"

	ld := parseJSONLD(doc)
	if ld != nil {
		p.Name = CleanText(ld.Name)
		p.Description = CleanText(ld.Description)
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
		p.Brand = e.extractBrand(html)
	}

	if p.Category == "" {
		p.Category = e.extractCategory(html)
	}

	if m := e.dimensionJSONRe.FindStringSubmatch(html); len(m) > 4 {
		p.Dimensions = fmt.Sprintf("%s x %s x %s cm", m[1], m[2], m[3])
		if p.Volume == "" {
			p.Volume = m[4] + " kg"
		}
	}

	if p.Model == "" {
		if m := e.modelJSONRe.FindStringSubmatch(html); len(m) > 1 {
			p.Model = SanitizeModel(m[1])
		}
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

func (e *DoHomeExtractor) extractName(doc *goquery.Document) string {
	selectors := []string{
		`h1[class*="product"]`,
		`h1[class*="pdp"]`,
		"h1",
		`div[class*="product-name"]`,
	}

	for _, selector := range selectors {
		name := CleanText(doc.Find(selector).First().Text())
		if name != "" && len([]rune(name)) > 3 && !strings.Contains(strings.ToLower(name), "dohome") {
			return name
		}
	}
	return ""
}

func (e *DoHomeExtractor) extractBrand(html string) string {
	for _, re := range e.brandRes {
		if m := re.FindStringSubmatch(html); len(m) > 1 {
			brand := CleanText(m[1])
			if brand == "" || len([]rune(brand)) >= 50 {
				continue
			}
			lower := strings.ToLower(brand)
			bad := false
			for _, w := range badBrandWords {
				if strings.Contains(lower, w) {
					bad = true
					break
				}
			}
			if !bad {
				return brand
			}
		}
	}
	return ""
}

func (e *DoHomeExtractor) extractCategory(html string) string {
	for _, re := range e.categoryRes {
		for _, m := range re.FindAllStringSubmatch(html, -1) {
			cat := CleanText(m[1])
			if cat == "" || len([]rune(cat)) <= 2 {
				continue
			}
			lower := strings.ToLower(cat)
			if lower == "หน้าแรก" || lower == "home" || lower == "สินค้า" || lower == "products" || lower == "dohome" {
				continue
			}
			return SanitizeField(cat, 100)
		}
	}
	return ""
}
