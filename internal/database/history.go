package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

// HistoryRepository handles price history persistence
type HistoryRepository struct {
	db *DB
}

func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Insert records one observed price for a product. Every successful
// scrape that finds a price lands here.
func (r *HistoryRepository) Insert(ctx context.Context, productID int64, price float64) error {
	return r.insert(ctx, r.db, productID, price)
}

// InsertWithTx is Insert inside a caller-owned transaction.
func (r *HistoryRepository) InsertWithTx(ctx context.Context, tx pgx.Tx, productID int64, price float64) error {
	return r.insert(ctx, tx, productID, price)
}

func (r *HistoryRepository) insert(ctx context.Context, q querier, productID int64, price float64) error {
	query := `
		INSERT INTO price_history (product_id, price, currency, scraped_at)
		VALUES ($1, $2, 'THB', NOW())`

	if _, err := q.Exec(ctx, query, productID, price); err != nil {
		return fmt.Errorf("failed to insert price history for product %d: %w", productID, err)
	}

	return nil
}

// ListByProduct returns the most recent price points, newest first.
func (r *HistoryRepository) ListByProduct(ctx context.Context, productID int64, limit int) ([]models.PriceHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT history_id, product_id, price, currency, scraped_at
		FROM price_history
		WHERE product_id = $1
		ORDER BY scraped_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list price history for product %d: %w", productID, err)
	}
	defer rows.Close()

	var entries []models.PriceHistoryEntry
	for rows.Next() {
		var e models.PriceHistoryEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Price, &e.Currency, &e.ScrapedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price history: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (r *HistoryRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM price_history`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count price history: %w", err)
	}
	return count, nil
}
