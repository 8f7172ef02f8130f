package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

// RetailerRepository handles retailer persistence
type RetailerRepository struct {
	db *DB
}

func NewRetailerRepository(db *DB) *RetailerRepository {
	return &RetailerRepository{db: db}
}

// GetOrCreate inserts the retailer if missing and refreshes its display
// name and domain otherwise. Safe to call on every scrape.
func (r *RetailerRepository) GetOrCreate(ctx context.Context, retailer models.Retailer) (*models.Retailer, error) {
	query := `
		INSERT INTO retailers (retailer_id, name, domain)
		VALUES ($1, $2, $3)
		ON CONFLICT (retailer_id) DO UPDATE SET
			name = EXCLUDED.name,
			domain = EXCLUDED.domain
		RETURNING retailer_id, name, domain`

	row := r.db.QueryRow(ctx, query, retailer.ID, retailer.Name, retailer.Domain)

	var out models.Retailer
	if err := row.Scan(&out.ID, &out.Name, &out.Domain); err != nil {
		return nil, fmt.Errorf("failed to upsert retailer %s: %w", retailer.ID, err)
	}

	return &out, nil
}

func (r *RetailerRepository) GetByID(ctx context.Context, id string) (*models.Retailer, error) {
	query := `SELECT retailer_id, name, domain FROM retailers WHERE retailer_id = $1`

	var out models.Retailer
	err := r.db.QueryRow(ctx, query, id).Scan(&out.ID, &out.Name, &out.Domain)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get retailer %s: %w", id, err)
	}

	return &out, nil
}

func (r *RetailerRepository) GetByDomain(ctx context.Context, domain string) (*models.Retailer, error) {
	query := `SELECT retailer_id, name, domain FROM retailers WHERE domain = $1`

	var out models.Retailer
	err := r.db.QueryRow(ctx, query, domain).Scan(&out.ID, &out.Name, &out.Domain)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get retailer by domain %s: %w", domain, err)
	}

	return &out, nil
}

func (r *RetailerRepository) List(ctx context.Context) ([]models.Retailer, error) {
	query := `SELECT retailer_id, name, domain FROM retailers ORDER BY retailer_id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list retailers: %w", err)
	}
	defer rows.Close()

	var retailers []models.Retailer
	for rows.Next() {
		var rt models.Retailer
		if err := rows.Scan(&rt.ID, &rt.Name, &rt.Domain); err != nil {
			return nil, fmt.Errorf("failed to scan retailer: %w", err)
		}
		retailers = append(retailers, rt)
	}

	return retailers, rows.Err()
}
