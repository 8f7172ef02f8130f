package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// jsonLDProduct is the subset of schema.org Product data the extractors
// consume. Zero-value fields mean the block did not carry them.
type jsonLDProduct struct {
	Name          string
	Description   string
	Brand         string
	Model         string
	SKU           string
	Category      string
	Price         float64
	OriginalPrice float64
	Currency      string
	Images        []string
}

// parseJSONLD returns the first schema.org Product found in the page's
// ld+json blocks, handling top-level objects, arrays and @graph wrappers.
func parseJSONLD(doc *goquery.Document) *jsonLDProduct {
	var product *jsonLDProduct

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data interface{}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}

		if p := findProductNode(data); p != nil {
			product = p
			return false
		}
		return true
	})

	return product
}

// parseJSONLDBreadcrumbs returns the item names of the first
// BreadcrumbList script on the page, in order.
func parseJSONLDBreadcrumbs(doc *goquery.Document) []string {
	var crumbs []string

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data interface{}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}

		if names := findBreadcrumbNames(data); len(names) > 0 {
			crumbs = names
			return false
		}
		return true
	})

	return crumbs
}

func findBreadcrumbNames(data interface{}) []string {
	switch v := data.(type) {
	case map[string]interface{}:
		if t, _ := v["@type"].(string); t == "BreadcrumbList" {
			items, _ := v["itemListElement"].([]interface{})
			var names []string
			for _, item := range items {
				m, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				name := strField(m, "name")
				if name == "" {
					if inner, ok := m["item"].(map[string]interface{}); ok {
						name = strField(inner, "name")
					}
				}
				if name != "" {
					names = append(names, name)
				}
			}
			return names
		}
		if graph, ok := v["@graph"].([]interface{}); ok {
			for _, item := range graph {
				if names := findBreadcrumbNames(item); len(names) > 0 {
					return names
				}
			}
		}
	case []interface{}:
		for _, item := range v {
			if names := findBreadcrumbNames(item); len(names) > 0 {
				return names
			}
		}
	}
	return nil
}

func findProductNode(data interface{}) *jsonLDProduct {
	switch v := data.(type) {
	case map[string]interface{}:
		if t, _ := v["@type"].(string); t == "Product" || t == "ProductModel" {
			return productFromMap(v)
		}
		if graph, ok := v["@graph"].([]interface{}); ok {
			for _, item := range graph {
				if p := findProductNode(item); p != nil {
					return p
				}
			}
		}
	case []interface{}:
		for _, item := range v {
			if p := findProductNode(item); p != nil {
				return p
			}
		}
	}
	return nil
}

func productFromMap(m map[string]interface{}) *jsonLDProduct {
	p := &jsonLDProduct{
		Name:        CleanText(strField(m, "name")),
		Description: CleanText(strField(m, "description")),
		Model:       strField(m, "model"),
		SKU:         strField(m, "sku"),
	}

	// Brand may be a plain string or a {"name": ...} object
	switch b := m["brand"].(type) {
	case string:
		p.Brand = b
	case map[string]interface{}:
		p.Brand = strField(b, "name")
	}

	switch c := m["category"].(type) {
	case string:
		p.Category = c
	case []interface{}:
		if len(c) > 0 {
			if s, ok := c[0].(string); ok {
				p.Category = s
			}
		}
	}

	switch img := m["image"].(type) {
	case string:
		p.Images = []string{img}
	case []interface{}:
		for _, item := range img {
			if s, ok := item.(string); ok {
				p.Images = append(p.Images, s)
			}
		}
	}

	var offer map[string]interface{}
	switch o := m["offers"].(type) {
	case map[string]interface{}:
		offer = o
	case []interface{}:
		if len(o) > 0 {
			offer, _ = o[0].(map[string]interface{})
		}
	}
	if offer != nil {
		p.Currency = strField(offer, "priceCurrency")
		if v, ok := numField(offer, "price"); ok {
			p.Price = v
		} else if v, ok := numField(offer, "lowPrice"); ok {
			p.Price = v
		}
		if v, ok := numField(offer, "highPrice"); ok && v > p.Price {
			p.OriginalPrice = v
		}
	}

	return p
}

func strField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// numField reads a JSON number that sites serialize either as a number or
// a string ("1290.00").
func numField(m map[string]interface{}, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, v > 0
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return f, f > 0
		}
	}
	return 0, false
}
