// Package storage collects scraper CLI results as per-retailer JSON
// dumps, the same files the seeder imports into the database.
package storage

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

// ResultStore groups scraped products by retailer and writes each
// group to {retailer_code}_products.json inside the output directory.
// Existing dumps are merged in on first touch, so repeated runs
// accumulate instead of clobbering earlier results.
type ResultStore struct {
	mu     sync.RWMutex
	dir    string
	groups map[string][]*models.ScrapedProduct
	index  map[string]map[string]int
}

func NewResultStore(dir string) (*ResultStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	return &ResultStore{
		dir:    dir,
		groups: make(map[string][]*models.ScrapedProduct),
		index:  make(map[string]map[string]int),
	}, nil
}

// Add files a scraped product under its retailer. A later product with
// the same SKU (or the same URL when the SKU is empty) replaces the
// earlier entry.
func (rs *ResultStore) Add(product *models.ScrapedProduct) error {
	if product == nil {
		return fmt.Errorf("product is required")
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	code := retailerCode(product)
	if err := rs.ensureLoaded(code); err != nil {
		return err
	}

	key := dedupeKey(product)
	if i, ok := rs.index[code][key]; ok {
		rs.groups[code][i] = product
		return nil
	}

	rs.index[code][key] = len(rs.groups[code])
	rs.groups[code] = append(rs.groups[code], product)
	return nil
}

func (rs *ResultStore) AddBatch(products []*models.ScrapedProduct) error {
	for _, product := range products {
		if product == nil {
			continue
		}
		if err := rs.Add(product); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes every loaded group to its dump file. Each file goes
// through a temp file and rename, so a reader never sees a partial
// dump.
func (rs *ResultStore) Flush() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for code, products := range rs.groups {
		if err := rs.writeGroup(code, products); err != nil {
			return err
		}
	}
	return nil
}

// Counts reports how many products are filed per retailer code.
func (rs *ResultStore) Counts() map[string]int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	counts := make(map[string]int, len(rs.groups))
	for code, products := range rs.groups {
		counts[code] = len(products)
	}
	return counts
}

// FilePath returns the dump file a retailer code is written to.
func (rs *ResultStore) FilePath(code string) string {
	return filepath.Join(rs.dir, code+"_products.json")
}

func (rs *ResultStore) ensureLoaded(code string) error {
	if _, ok := rs.groups[code]; ok {
		return nil
	}

	rs.groups[code] = nil
	rs.index[code] = make(map[string]int)

	data, err := os.ReadFile(rs.FilePath(code))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read existing dump for %s: %w", code, err)
	}

	var existing []*models.ScrapedProduct
	if err := json.Unmarshal(data, &existing); err != nil {
		return fmt.Errorf("failed to parse existing dump for %s: %w", code, err)
	}

	for _, product := range existing {
		if product == nil {
			continue
		}
		key := dedupeKey(product)
		if _, ok := rs.index[code][key]; ok {
			continue
		}
		rs.index[code][key] = len(rs.groups[code])
		rs.groups[code] = append(rs.groups[code], product)
	}
	return nil
}

func (rs *ResultStore) writeGroup(code string, products []*models.ScrapedProduct) error {
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dump for %s: %w", code, err)
	}

	path := rs.FilePath(code)
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpFile, err)
	}

	return os.Rename(tmpFile, path)
}

// retailerCode resolves which dump a product belongs in. Products from
// a domain or name no retailer claims land in unknown_products.json so
// they are not silently dropped.
func retailerCode(product *models.ScrapedProduct) string {
	if parsed, err := url.Parse(product.URL); err == nil {
		if retailer, ok := models.RetailerByDomain(parsed.Hostname()); ok {
			return retailer.ID
		}
	}
	if retailer, ok := models.RetailerByName(product.Retailer); ok {
		return retailer.ID
	}
	return "unknown"
}

func dedupeKey(product *models.ScrapedProduct) string {
	if product.SKU != "" {
		return product.SKU
	}
	return product.URL
}
