package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"fulfillment-service/internal/domain"
)

const pgUniqueViolation = "23505"

type PostgresPurchaseRepository struct {
	db *sql.DB
}

func NewPostgresPurchaseRepository(db *sql.DB) *PostgresPurchaseRepository {
	return &PostgresPurchaseRepository{db: db}
}

// GetCompletedByUserProduct looks up an existing completed purchase for the
// (user, product) pair. Returns (nil, nil) when none exists.
func (r *PostgresPurchaseRepository) GetCompletedByUserProduct(ctx context.Context, userID, productID string) (*domain.Purchase, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	const query = `
        SELECT id, user_id, product_id, store_id, product_type, amount, currency,
               payment_method, COALESCE(transaction_id, ''), status, access_granted,
               download_count, created_at, COALESCE(last_accessed_at, created_at)
        FROM purchases
        WHERE user_id = $1 AND product_id = $2 AND status = 'completed'
        LIMIT 1;
    `

	var p domain.Purchase
	err := r.db.QueryRowContext(ctx, query, userID, productID).Scan(
		&p.ID, &p.UserID, &p.ProductID, &p.StoreID, &p.ProductType, &p.Amount,
		&p.Currency, &p.PaymentMethod, &p.TransactionID, &p.Status,
		&p.AccessGranted, &p.DownloadCount, &p.CreatedAt, &p.LastAccessedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase: %w", err)
	}
	return &p, nil
}

// Create inserts a purchase record. The partial unique index on
// (user_id, product_id) WHERE status = 'completed' is the real duplicate
// guard; a unique violation is mapped to domain.ErrAlreadyPurchased so that
// racing deliveries of the same payment event collapse to one record.
func (r *PostgresPurchaseRepository) Create(ctx context.Context, p *domain.Purchase) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	const query = `
        INSERT INTO purchases (id, user_id, product_id, store_id, product_type,
                               amount, currency, payment_method, transaction_id,
                               status, access_granted, download_count, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
    `

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.UserID, p.ProductID, p.StoreID, string(p.ProductType),
		p.Amount, p.Currency, p.PaymentMethod, nullIfEmpty(p.TransactionID),
		string(p.Status), p.AccessGranted, p.DownloadCount, p.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return domain.ErrAlreadyPurchased
		}
		return fmt.Errorf("failed to insert purchase: %w", err)
	}
	return nil
}

// MarkRefunded transitions a completed purchase to refunded by its provider
// transaction id. Completed is the only status refunds apply to; records are
// never hard-deleted.
func (r *PostgresPurchaseRepository) MarkRefunded(ctx context.Context, transactionID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	const query = `
        UPDATE purchases
        SET status = 'refunded', access_granted = FALSE
        WHERE transaction_id = $1 AND status = 'completed';
    `

	res, err := r.db.ExecContext(ctx, query, transactionID)
	if err != nil {
		return fmt.Errorf("failed to mark purchase refunded: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrPurchaseNotFound
	}
	return nil
}

// RecordAccess bumps the download counter and the last-accessed timestamp.
func (r *PostgresPurchaseRepository) RecordAccess(ctx context.Context, purchaseID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	const query = `
        UPDATE purchases
        SET download_count = download_count + 1, last_accessed_at = now()
        WHERE id = $1 AND status = 'completed' AND access_granted;
    `

	res, err := r.db.ExecContext(ctx, query, purchaseID)
	if err != nil {
		return fmt.Errorf("failed to record access: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrPurchaseNotFound
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
