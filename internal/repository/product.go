package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fulfillment-service/internal/domain"
)

type PostgresProductRepository struct {
	db *sql.DB
}

func NewPostgresProductRepository(db *sql.DB) *PostgresProductRepository {
	return &PostgresProductRepository{db: db}
}

// GetPublished loads a product that is in a purchasable state. Missing and
// unpublished products are indistinguishable to callers; both yield
// domain.ErrProductNotFound.
func (r *PostgresProductRepository) GetPublished(ctx context.Context, id string) (*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	const query = `
        SELECT id, store_id, title, product_type, price_cents, published
        FROM products
        WHERE id = $1 AND published;
    `

	var p domain.Product
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.StoreID, &p.Title, &p.Type, &p.PriceCents, &p.Published,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return &p, nil
}
