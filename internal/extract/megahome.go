package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

// MegaHomeExtractor works off megahome.co.th markup directly; the site
// ships no usable JSON-LD.
type MegaHomeExtractor struct {
	generic     *GenericExtractor
	gtmPriceRe  *regexp.Regexp
	urlSKURe    *regexp.Regexp
	specClassRe *regexp.Regexp
	nameColorRe *regexp.Regexp
	nameModelRe *regexp.Regexp
}

func NewMegaHomeExtractor() *MegaHomeExtractor {
	return &MegaHomeExtractor{
		generic:    NewGenericExtractor(),
		gtmPriceRe: regexp.MustCompile(`<input[^>]*id="gtmPrice-\d+"[^>]*value="([0-9.]+)"`),
		urlSKURe:   regexp.MustCompile(`/p/(\d+)`),
		// Spec rows carry a category-prefixed class like pdp-HT_WIDTH
		// (HT for home tools, LT for lighting, and so on).
		specClassRe: regexp.MustCompile(`pdp-[A-Z]+_(MATERIAL|COLOR|WIDTH|DEPTH|HEIGHT|WEIGHT)`),
		nameColorRe: regexp.MustCompile(`สี(\S+)`),
		nameModelRe: regexp.MustCompile(`(?:NO\.|รุ่น\s*)([A-Za-z0-9\-_.]+)`),
	}
}

func (e *MegaHomeExtractor) Retailer() string { return models.RetailerMegaHome }

func (e *MegaHomeExtractor) Extract(html, pageURL string) (*models.ScrapedProduct, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	p := models.NewScrapedProduct(pageURL)
	p.Retailer = "MegaHome"

	p.Name = CleanText(doc.Find("div.prd-name h1").First().Text())
	p.Brand = SanitizeBrand(CleanText(doc.Find("div.prd-brand a").First().Text()))

	if v, ok := ParsePrice(doc.Find("div.discount-price span.amount").First().Text()); ok {
		p.CurrentPrice = models.Float64Ptr(v)
	}
	if p.CurrentPrice == nil {
		if m := e.gtmPriceRe.FindStringSubmatch(html); len(m) > 1 {
			if v, ok := ParsePrice(m[1]); ok {
				p.CurrentPrice = models.Float64Ptr(v)
			}
		}
	}

	if v, ok := ParsePrice(doc.Find("div.original-price span.amount").First().Text()); ok {
		p.OriginalPrice = models.Float64Ptr(v)
	}

	if m := e.urlSKURe.FindStringSubmatch(pageURL); len(m) > 1 {
		p.SKU = m[1]
	}

	e.applySpecs(doc, p)

	doc.Find(`img[id^="image-index-"]`).Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			p.Images = append(p.Images, src)
		}
	})
	p.Images = dedupeImages(p.Images, 10)

	// Last breadcrumb link is the immediate parent category.
	if cat := CleanText(doc.Find("a.section").Last().Text()); cat != "" {
		p.Category = SanitizeField(cat, 100)
	}

	if p.Color == "" && p.Name != "" {
		if m := e.nameColorRe.FindStringSubmatch(p.Name); len(m) > 1 {
			p.Color = "สี" + m[1]
		}
	}

	if p.Name != "" {
		if m := e.nameModelRe.FindStringSubmatch(p.Name); len(m) > 1 {
			p.Model = strings.TrimSpace(m[1])
		}
	}

	if p.Name == "" {
		p.Name = e.generic.extractName(doc)
	}
	if p.CurrentPrice == nil {
		e.generic.extractPrices(doc, p)
	}

	if !p.HasCore() {
		return nil, fmt.Errorf("no product data found at %s", pageURL)
	}

	return p, nil
}

// applySpecs reads the spec table rows. The second td holds the value;
// width, depth and height are joined into one dimensions string and the
// weight row lands in Volume.
func (e *MegaHomeExtractor) applySpecs(doc *goquery.Document, p *models.ScrapedProduct) {
	fields := make(map[string]string)

	doc.Find(`[class*="pdp-"]`).Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		m := e.specClassRe.FindStringSubmatch(class)
		if len(m) < 2 {
			return
		}

		cells := s.Find("td")
		if cells.Length() < 2 {
			return
		}
		value := CleanText(cells.Eq(1).Text())
		if value == "" {
			return
		}

		if _, ok := fields[m[1]]; !ok {
			fields[m[1]] = value
		}
	})

	if v := fields["MATERIAL"]; v != "" {
		p.Material = SanitizeMaterial(v)
	}
	if v := fields["COLOR"]; v != "" {
		p.Color = SanitizeColor(v)
	}

	var dims []string
	for _, key := range []string{"WIDTH", "DEPTH", "HEIGHT"} {
		if v := fields[key]; v != "" {
			dims = append(dims, v)
		}
	}
	if len(dims) > 0 {
		p.Dimensions = strings.Join(dims, " x ") + " cm"
	}

	if v := fields["WEIGHT"]; v != "" {
		p.Volume = v + " kg"
	}
}
