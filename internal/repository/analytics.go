package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fulfillment-service/internal/domain"
)

type PostgresAnalyticsRepository struct {
	db *sql.DB
}

func NewPostgresAnalyticsRepository(db *sql.DB) *PostgresAnalyticsRepository {
	return &PostgresAnalyticsRepository{db: db}
}

// ListDomains returns every registered sending domain.
func (r *PostgresAnalyticsRepository) ListDomains(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT domain FROM email_domains ORDER BY domain;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// UpsertDomainDay writes one (domain, date) aggregate row. Keyed on the
// natural key, so reprocessing a date overwrites instead of accumulating.
func (r *PostgresAnalyticsRepository) UpsertDomainDay(ctx context.Context, a domain.DomainDailyAnalytics) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	hourly, err := json.Marshal(a.HourlyStats)
	if err != nil {
		return fmt.Errorf("failed to marshal hourly stats: %w", err)
	}

	const query = `
        INSERT INTO email_domain_analytics (
            domain, date, total_sent, total_delivered, total_bounced, total_failed,
            total_opened, total_clicked, unique_opens, unique_clicks,
            spam_complaints, unsubscribes, hard_bounces, soft_bounces,
            delivery_rate, bounce_rate, open_rate, click_rate, spam_rate, hourly_stats
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
                $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
        ON CONFLICT (domain, date) DO UPDATE SET
            total_sent = EXCLUDED.total_sent,
            total_delivered = EXCLUDED.total_delivered,
            total_bounced = EXCLUDED.total_bounced,
            total_failed = EXCLUDED.total_failed,
            total_opened = EXCLUDED.total_opened,
            total_clicked = EXCLUDED.total_clicked,
            unique_opens = EXCLUDED.unique_opens,
            unique_clicks = EXCLUDED.unique_clicks,
            spam_complaints = EXCLUDED.spam_complaints,
            unsubscribes = EXCLUDED.unsubscribes,
            hard_bounces = EXCLUDED.hard_bounces,
            soft_bounces = EXCLUDED.soft_bounces,
            delivery_rate = EXCLUDED.delivery_rate,
            bounce_rate = EXCLUDED.bounce_rate,
            open_rate = EXCLUDED.open_rate,
            click_rate = EXCLUDED.click_rate,
            spam_rate = EXCLUDED.spam_rate,
            hourly_stats = EXCLUDED.hourly_stats;
    `

	_, err = r.db.ExecContext(ctx, query,
		a.Domain, a.Date, a.TotalSent, a.TotalDelivered, a.TotalBounced, a.TotalFailed,
		a.TotalOpened, a.TotalClicked, a.UniqueOpens, a.UniqueClicks,
		a.SpamComplaints, a.Unsubscribes, a.HardBounces, a.SoftBounces,
		a.DeliveryRate, a.BounceRate, a.OpenRate, a.ClickRate, a.SpamRate, hourly,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert domain analytics: %w", err)
	}
	return nil
}

// UpsertSenderDay writes one (store, domain, date) sender stats row.
func (r *PostgresAnalyticsRepository) UpsertSenderDay(ctx context.Context, s domain.SenderDailyStats) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	warnings, err := json.Marshal(s.Warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	const query = `
        INSERT INTO email_sender_stats (
            store_id, domain, date, sent, delivered, bounced, opened, clicked,
            spam_complaints, unsubscribes, bounce_rate, open_rate, spam_rate,
            reputation_score, sending_status, warnings
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        ON CONFLICT (store_id, domain, date) DO UPDATE SET
            sent = EXCLUDED.sent,
            delivered = EXCLUDED.delivered,
            bounced = EXCLUDED.bounced,
            opened = EXCLUDED.opened,
            clicked = EXCLUDED.clicked,
            spam_complaints = EXCLUDED.spam_complaints,
            unsubscribes = EXCLUDED.unsubscribes,
            bounce_rate = EXCLUDED.bounce_rate,
            open_rate = EXCLUDED.open_rate,
            spam_rate = EXCLUDED.spam_rate,
            reputation_score = EXCLUDED.reputation_score,
            sending_status = EXCLUDED.sending_status,
            warnings = EXCLUDED.warnings;
    `

	_, err = r.db.ExecContext(ctx, query,
		s.StoreID, s.Domain, s.Date, s.Sent, s.Delivered, s.Bounced, s.Opened, s.Clicked,
		s.SpamComplaints, s.Unsubscribes, s.BounceRate, s.OpenRate, s.SpamRate,
		s.ReputationScore, string(s.SendingStatus), warnings,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sender stats: %w", err)
	}
	return nil
}

// ListDomainDaysSince returns the domain's daily rows with date >= fromDate
// (dates are YYYY-MM-DD strings, so lexical order is chronological order).
func (r *PostgresAnalyticsRepository) ListDomainDaysSince(ctx context.Context, dom, fromDate string) ([]domain.DomainDailyAnalytics, error) {
	return r.listDomainDays(ctx, `domain = $1 AND date >= $2`, dom, fromDate)
}

// ListDomainDaysFor returns every domain's row for one date.
func (r *PostgresAnalyticsRepository) ListDomainDaysFor(ctx context.Context, date string) ([]domain.DomainDailyAnalytics, error) {
	return r.listDomainDays(ctx, `date = $1`, date)
}

func (r *PostgresAnalyticsRepository) listDomainDays(ctx context.Context, where string, args ...interface{}) ([]domain.DomainDailyAnalytics, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := `
        SELECT domain, date, total_sent, total_delivered, total_bounced, total_failed,
               total_opened, total_clicked, unique_opens, unique_clicks,
               spam_complaints, unsubscribes, hard_bounces, soft_bounces,
               delivery_rate, bounce_rate, open_rate, click_rate, spam_rate, hourly_stats
        FROM email_domain_analytics
        WHERE ` + where + `
        ORDER BY domain, date;
    `

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query domain analytics: %w", err)
	}
	defer rows.Close()

	var result []domain.DomainDailyAnalytics
	for rows.Next() {
		var a domain.DomainDailyAnalytics
		var hourly []byte
		if err := rows.Scan(
			&a.Domain, &a.Date, &a.TotalSent, &a.TotalDelivered, &a.TotalBounced, &a.TotalFailed,
			&a.TotalOpened, &a.TotalClicked, &a.UniqueOpens, &a.UniqueClicks,
			&a.SpamComplaints, &a.Unsubscribes, &a.HardBounces, &a.SoftBounces,
			&a.DeliveryRate, &a.BounceRate, &a.OpenRate, &a.ClickRate, &a.SpamRate, &hourly,
		); err != nil {
			return nil, fmt.Errorf("failed to scan domain analytics: %w", err)
		}
		if len(hourly) > 0 {
			if err := json.Unmarshal(hourly, &a.HourlyStats); err != nil {
				return nil, fmt.Errorf("failed to unmarshal hourly stats: %w", err)
			}
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// GetDomainReputation returns the domain's current reputation summary, or
// (nil, nil) when the domain is unknown.
func (r *PostgresAnalyticsRepository) GetDomainReputation(ctx context.Context, dom string) (*domain.DomainReputation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	const query = `
        SELECT reputation_score, reputation_status, COALESCE(reputation_updated_at, 'epoch'::timestamptz)
        FROM email_domains
        WHERE domain = $1;
    `

	var rep domain.DomainReputation
	err := r.db.QueryRowContext(ctx, query, dom).Scan(&rep.Score, &rep.Status, &rep.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query domain reputation: %w", err)
	}
	return &rep, nil
}

// UpdateDomainReputation stores the recomputed reputation on the domain row.
func (r *PostgresAnalyticsRepository) UpdateDomainReputation(ctx context.Context, dom string, rep domain.DomainReputation) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	const query = `
        UPDATE email_domains
        SET reputation_score = $2, reputation_status = $3, reputation_updated_at = $4
        WHERE domain = $1;
    `

	_, err := r.db.ExecContext(ctx, query, dom, rep.Score, string(rep.Status), rep.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to update domain reputation: %w", err)
	}
	return nil
}

// InsertAlert appends a health alert. Alerts are never deduplicated here;
// a sustained breach produces one alert per rollup run.
func (r *PostgresAnalyticsRepository) InsertAlert(ctx context.Context, a domain.DomainAlert) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	const query = `
        INSERT INTO email_domain_alerts (id, domain, severity, type, message, details, created_at, resolved)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
    `

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Domain, string(a.Severity), string(a.Type), a.Message, a.Details, a.CreatedAt, a.Resolved,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}
