package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fulfillment-service/internal/domain"
)

// rollupEventCap bounds a single day's event scan. At larger volume this
// should become true pagination.
const rollupEventCap = 10000

type PostgresEmailEventRepository struct {
	db *sql.DB
}

func NewPostgresEmailEventRepository(db *sql.DB) *PostgresEmailEventRepository {
	return &PostgresEmailEventRepository{db: db}
}

// Append writes one event to the append-only log and registers the sending
// domain if it is not known yet.
func (r *PostgresEmailEventRepository) Append(ctx context.Context, ev domain.EmailEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	const insertEvent = `
        INSERT INTO email_events (id, domain, store_id, recipient_email,
                                  event_type, bounce_type, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7);
    `
	_, err := r.db.ExecContext(ctx, insertEvent,
		ev.ID, ev.Domain, nullIfEmpty(ev.StoreID), ev.RecipientEmail,
		string(ev.EventType), nullIfEmpty(string(ev.BounceType)), ev.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert email event: %w", err)
	}

	const registerDomain = `
        INSERT INTO email_domains (domain) VALUES ($1)
        ON CONFLICT (domain) DO NOTHING;
    `
	if _, err := r.db.ExecContext(ctx, registerDomain, ev.Domain); err != nil {
		return fmt.Errorf("failed to register domain: %w", err)
	}
	return nil
}

// ListByDomainDay returns the domain's events inside the UTC calendar day
// that contains dayStart, capped at rollupEventCap rows.
func (r *PostgresEmailEventRepository) ListByDomainDay(ctx context.Context, dom string, day time.Time) ([]domain.EmailEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	const query = `
        SELECT id, domain, COALESCE(store_id, ''), recipient_email,
               event_type, COALESCE(bounce_type, ''), occurred_at
        FROM email_events
        WHERE domain = $1 AND occurred_at >= $2 AND occurred_at < $3
        ORDER BY occurred_at
        LIMIT $4;
    `

	rows, err := r.db.QueryContext(ctx, query, dom, start, end, rollupEventCap)
	if err != nil {
		return nil, fmt.Errorf("failed to query email events: %w", err)
	}
	defer rows.Close()

	var events []domain.EmailEvent
	for rows.Next() {
		var ev domain.EmailEvent
		if err := rows.Scan(&ev.ID, &ev.Domain, &ev.StoreID, &ev.RecipientEmail,
			&ev.EventType, &ev.BounceType, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan email event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
