package models

import (
	"time"
)

// Product is a catalog row for one retailer. Identity is (retailer_id, sku).
type Product struct {
	ID            int64     `json:"product_id"`
	RetailerID    string    `json:"retailer_id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Link          string    `json:"link,omitempty"`
	Brand         string    `json:"brand,omitempty"`
	Category      string    `json:"category,omitempty"`
	Image         string    `json:"image,omitempty"`
	Description   string    `json:"description,omitempty"`
	CurrentPrice  *float64  `json:"current_price"`
	OriginalPrice *float64  `json:"original_price,omitempty"`
	LowestPrice   *float64  `json:"lowest_price,omitempty"`
	HighestPrice  *float64  `json:"highest_price,omitempty"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// PriceHistoryEntry is one observed price point for a product.
type PriceHistoryEntry struct {
	ID        int64     `json:"history_id,omitempty"`
	ProductID int64     `json:"product_id,omitempty"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// ScrapedProduct is the raw extraction result for one product page.
// Fields are filled on a best-effort basis; SKU and price are the ones
// downstream persistence actually requires.
type ScrapedProduct struct {
	URL           string    `json:"url"`
	Retailer      string    `json:"retailer"`
	SKU           string    `json:"sku,omitempty"`
	Name          string    `json:"name,omitempty"`
	Brand         string    `json:"brand,omitempty"`
	Model         string    `json:"model,omitempty"`
	Category      string    `json:"category,omitempty"`
	Description   string    `json:"description,omitempty"`
	Color         string    `json:"color,omitempty"`
	Material      string    `json:"material,omitempty"`
	Dimensions    string    `json:"dimensions,omitempty"`
	Volume        string    `json:"volume,omitempty"`
	CurrentPrice  *float64  `json:"current_price,omitempty"`
	OriginalPrice *float64  `json:"original_price,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	Images        []string  `json:"images,omitempty"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

func NewScrapedProduct(url string) *ScrapedProduct {
	return &ScrapedProduct{
		URL:       url,
		Currency:  "THB",
		ScrapedAt: time.Now(),
	}
}

// HasCore reports whether extraction found enough to be worth keeping:
// at least a name or a price.
func (p *ScrapedProduct) HasCore() bool {
	return p.Name != "" || p.CurrentPrice != nil
}

// FirstImage returns the primary product image, if any.
func (p *ScrapedProduct) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

func (p *ScrapedProduct) Validate() []string {
	var errs []string
	if p.URL == "" {
		errs = append(errs, "url is required")
	}
	if p.SKU == "" {
		errs = append(errs, "sku could not be determined")
	}
	if p.Name == "" && p.CurrentPrice == nil {
		errs = append(errs, "neither name nor price found")
	}
	if p.CurrentPrice != nil && *p.CurrentPrice <= 0 {
		errs = append(errs, "price must be positive")
	}
	return errs
}

// Float64Ptr is a small helper for building optional price fields.
func Float64Ptr(v float64) *float64 {
	return &v
}
