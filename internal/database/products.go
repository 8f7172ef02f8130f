package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

// querier is satisfied by both *DB and pgx.Tx so repository methods can
// run standalone or inside a caller-owned transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

const productColumns = `product_id, retailer_id, sku, name,
	COALESCE(link, ''), COALESCE(brand, ''), COALESCE(category, ''),
	COALESCE(image, ''), COALESCE(description, ''),
	current_price, original_price, lowest_price, highest_price, last_updated_at`

// ProductRepository handles product persistence
type ProductRepository struct {
	db *DB
}

func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// ProductFilter narrows List results. Zero values mean "no filter".
type ProductFilter struct {
	RetailerID string
	Search     string
	Category   string
	Brand      string
	Page       int
	Limit      int
}

// Upsert inserts or refreshes a product keyed by (retailer_id, sku).
// Optional fields use COALESCE so a sparse re-scrape never erases known
// data, and lowest/highest prices stay monotone via LEAST/GREATEST.
func (r *ProductRepository) Upsert(ctx context.Context, p *models.Product) (*models.Product, error) {
	return r.upsert(ctx, r.db, p)
}

// UpsertWithTx is Upsert inside a caller-owned transaction.
func (r *ProductRepository) UpsertWithTx(ctx context.Context, tx pgx.Tx, p *models.Product) (*models.Product, error) {
	return r.upsert(ctx, tx, p)
}

func (r *ProductRepository) upsert(ctx context.Context, q querier, p *models.Product) (*models.Product, error) {
	if p.RetailerID == "" || p.SKU == "" {
		return nil, fmt.Errorf("product upsert requires retailer_id and sku")
	}

	query := `
		INSERT INTO products (
			retailer_id, sku, name, link, brand, category, image, description,
			current_price, original_price, lowest_price, highest_price, last_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $9, $9, NOW())
		ON CONFLICT (retailer_id, sku) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, products.name),
			link = COALESCE(EXCLUDED.link, products.link),
			brand = COALESCE(EXCLUDED.brand, products.brand),
			category = COALESCE(EXCLUDED.category, products.category),
			image = COALESCE(EXCLUDED.image, products.image),
			description = COALESCE(EXCLUDED.description, products.description),
			current_price = COALESCE(EXCLUDED.current_price, products.current_price),
			original_price = COALESCE(EXCLUDED.original_price, products.original_price),
			lowest_price = LEAST(products.lowest_price, EXCLUDED.current_price),
			highest_price = GREATEST(products.highest_price, EXCLUDED.current_price),
			last_updated_at = NOW()
		RETURNING ` + productColumns

	name := p.Name
	if name == "" {
		name = fmt.Sprintf("Product %s", p.SKU)
	}

	row := q.QueryRow(ctx, query,
		p.RetailerID, p.SKU, name,
		nullIfEmpty(p.Link), nullIfEmpty(p.Brand), nullIfEmpty(p.Category),
		nullIfEmpty(p.Image), nullIfEmpty(p.Description),
		p.CurrentPrice, p.OriginalPrice,
	)

	out, err := scanProduct(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert product %s/%s: %w", p.RetailerID, p.SKU, err)
	}

	return out, nil
}

// UpdateFromScrape refreshes descriptive fields of an existing product by
// id, keeping any value the scrape did not find. Used by the manual
// comparison flow where the row was located by link rather than SKU.
func (r *ProductRepository) UpdateFromScrape(ctx context.Context, id int64, p *models.Product) (*models.Product, error) {
	query := `
		UPDATE products SET
			name = COALESCE($2, name),
			link = COALESCE($3, link),
			brand = COALESCE($4, brand),
			category = COALESCE($5, category),
			image = COALESCE($6, image),
			description = COALESCE($7, description),
			current_price = COALESCE($8, current_price),
			original_price = COALESCE($9, original_price),
			lowest_price = LEAST(lowest_price, $8),
			highest_price = GREATEST(highest_price, $8),
			last_updated_at = NOW()
		WHERE product_id = $1
		RETURNING ` + productColumns

	row := r.db.QueryRow(ctx, query, id,
		nullIfEmpty(p.Name), nullIfEmpty(p.Link), nullIfEmpty(p.Brand),
		nullIfEmpty(p.Category), nullIfEmpty(p.Image), nullIfEmpty(p.Description),
		p.CurrentPrice, p.OriginalPrice,
	)

	out, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", id, err)
	}

	return out, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE product_id = $1`

	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}

	return p, nil
}

func (r *ProductRepository) GetBySKU(ctx context.Context, retailerID, sku string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE retailer_id = $1 AND sku = $2`

	p, err := scanProduct(r.db.QueryRow(ctx, query, retailerID, sku))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %s/%s: %w", retailerID, sku, err)
	}

	return p, nil
}

// GetByLink finds a product by its stored (normalized) link.
func (r *ProductRepository) GetByLink(ctx context.Context, retailerID, link string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE retailer_id = $1 AND link = $2`

	p, err := scanProduct(r.db.QueryRow(ctx, query, retailerID, link))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by link: %w", err)
	}

	return p, nil
}

// List returns one page of products plus the total count for the filter.
func (r *ProductRepository) List(ctx context.Context, f ProductFilter) ([]models.Product, int, error) {
	where := []string{"retailer_id = $1"}
	args := []interface{}{f.RetailerID}

	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d OR brand ILIKE $%d)", n, n, n))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Brand != "" {
		args = append(args, f.Brand)
		where = append(where, fmt.Sprintf("brand = $%d", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM products WHERE ` + whereClause
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}

	args = append(args, limit, (page-1)*limit)
	listQuery := fmt.Sprintf(`SELECT %s FROM products WHERE %s ORDER BY product_id LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products, err := collectProducts(rows)
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// ListByRetailer returns a retailer's products that have a link to
// re-scrape, stalest first. limit <= 0 means all.
func (r *ProductRepository) ListByRetailer(ctx context.Context, retailerID string, limit int) ([]models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE retailer_id = $1 AND link IS NOT NULL AND link <> ''
		ORDER BY last_updated_at ASC
		LIMIT NULLIF($2, 0)`

	rows, err := r.db.Query(ctx, query, retailerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list products for %s: %w", retailerID, err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

// CandidatesByRetailer returns a retailer's products for match scoring.
// Unlike ListByRetailer it does not require a link: seeded products that
// came without a URL are still valid candidates. limit <= 0 means all.
func (r *ProductRepository) CandidatesByRetailer(ctx context.Context, retailerID string, limit int) ([]models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE retailer_id = $1
		ORDER BY product_id
		LIMIT NULLIF($2, 0)`

	rows, err := r.db.Query(ctx, query, retailerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates for %s: %w", retailerID, err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

func (r *ProductRepository) Categories(ctx context.Context, retailerID string) ([]string, error) {
	return r.distinctValues(ctx, "category", retailerID)
}

func (r *ProductRepository) Brands(ctx context.Context, retailerID string) ([]string, error) {
	return r.distinctValues(ctx, "brand", retailerID)
}

func (r *ProductRepository) distinctValues(ctx context.Context, column, retailerID string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT %s FROM products
		WHERE retailer_id = $1 AND %s IS NOT NULL
		ORDER BY %s`, column, column, column)

	rows, err := r.db.Query(ctx, query, retailerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s values: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", column, err)
		}
		values = append(values, v)
	}

	return values, rows.Err()
}

// CountByRetailer returns product counts keyed by retailer id.
func (r *ProductRepository) CountByRetailer(ctx context.Context) (map[string]int64, error) {
	query := `SELECT retailer_id, COUNT(*) FROM products GROUP BY retailer_id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var retailerID string
		var count int64
		if err := rows.Scan(&retailerID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[retailerID] = count
	}

	return counts, rows.Err()
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	err := row.Scan(
		&p.ID, &p.RetailerID, &p.SKU, &p.Name,
		&p.Link, &p.Brand, &p.Category, &p.Image, &p.Description,
		&p.CurrentPrice, &p.OriginalPrice, &p.LowestPrice, &p.HighestPrice,
		&p.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectProducts(rows pgx.Rows) ([]models.Product, error) {
	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
