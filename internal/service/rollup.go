package service

import (
	"context"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"fulfillment-service/internal/domain"
)

// EmailEventRepository reads the append-only delivery event log.
type EmailEventRepository interface {
	ListByDomainDay(ctx context.Context, dom string, day time.Time) ([]domain.EmailEvent, error)
}

// AnalyticsRepository persists rollup output.
type AnalyticsRepository interface {
	ListDomains(ctx context.Context) ([]string, error)
	UpsertDomainDay(ctx context.Context, a domain.DomainDailyAnalytics) error
	UpsertSenderDay(ctx context.Context, s domain.SenderDailyStats) error
	ListDomainDaysSince(ctx context.Context, dom, fromDate string) ([]domain.DomainDailyAnalytics, error)
	ListDomainDaysFor(ctx context.Context, date string) ([]domain.DomainDailyAnalytics, error)
	GetDomainReputation(ctx context.Context, dom string) (*domain.DomainReputation, error)
	UpdateDomainReputation(ctx context.Context, dom string, rep domain.DomainReputation) error
	InsertAlert(ctx context.Context, a domain.DomainAlert) error
}

const dateLayout = "2006-01-02"

// RollupService aggregates raw email events into per-domain and per-sender
// daily statistics, maintains rolling domain reputation and raises health
// alerts. Every write is an upsert by natural key, so re-running any step
// for the same date overwrites instead of double-counting.
type RollupService struct {
	events    EmailEventRepository
	analytics AnalyticsRepository
}

func NewRollupService(events EmailEventRepository, analytics AnalyticsRepository) *RollupService {
	return &RollupService{events: events, analytics: analytics}
}

// RunDaily processes yesterday (relative to now, UTC) for every domain. One
// domain's failure is logged and does not abort the rest of the batch.
func (s *RollupService) RunDaily(ctx context.Context, now time.Time) error {
	day := now.UTC().AddDate(0, 0, -1)
	date := day.Format(dateLayout)

	domains, err := s.analytics.ListDomains(ctx)
	if err != nil {
		return fmt.Errorf("failed to list domains: %w", err)
	}

	log.WithFields(log.Fields{"date": date, "domains": len(domains)}).Info("Starting daily analytics rollup")

	for _, dom := range domains {
		if err := s.RollupDomainDay(ctx, dom, day); err != nil {
			log.WithFields(log.Fields{"domain": dom, "date": date, "error": err}).Error("Domain rollup failed")
			continue
		}
		if err := s.RollupSenderDay(ctx, dom, day); err != nil {
			log.WithFields(log.Fields{"domain": dom, "date": date, "error": err}).Error("Sender rollup failed")
		}
	}

	if err := s.UpdateDomainReputations(ctx, now); err != nil {
		log.WithError(err).Error("Reputation update failed")
	}
	if err := s.GenerateHealthAlerts(ctx, date); err != nil {
		log.WithError(err).Error("Alert generation failed")
	}

	log.WithField("date", date).Info("Daily analytics rollup finished")
	return nil
}

// RollupDomainDay aggregates one domain's events for the UTC calendar day
// containing day and upserts the resulting row.
func (s *RollupService) RollupDomainDay(ctx context.Context, dom string, day time.Time) error {
	events, err := s.events.ListByDomainDay(ctx, dom, day)
	if err != nil {
		return err
	}
	agg := aggregateDomainDay(dom, day.UTC().Format(dateLayout), events)
	return s.analytics.UpsertDomainDay(ctx, agg)
}

// RollupSenderDay groups the same event window by sender and upserts one
// stats row per sender, including the reputation score and sending status.
// Events without a sender identity only count toward the domain totals.
func (s *RollupService) RollupSenderDay(ctx context.Context, dom string, day time.Time) error {
	events, err := s.events.ListByDomainDay(ctx, dom, day)
	if err != nil {
		return err
	}

	date := day.UTC().Format(dateLayout)
	byStore := make(map[string][]domain.EmailEvent)
	for _, ev := range events {
		if ev.StoreID == "" {
			continue
		}
		byStore[ev.StoreID] = append(byStore[ev.StoreID], ev)
	}

	for storeID, storeEvents := range byStore {
		stats := computeSenderStats(storeID, dom, date, storeEvents, time.Now().UTC())
		if err := s.analytics.UpsertSenderDay(ctx, stats); err != nil {
			return err
		}
	}
	return nil
}

// UpdateDomainReputations recomputes every domain's reputation from the
// trailing 7 calendar days of daily analytics. Domains with no rows in the
// window keep their prior state.
func (s *RollupService) UpdateDomainReputations(ctx context.Context, now time.Time) error {
	domains, err := s.analytics.ListDomains(ctx)
	if err != nil {
		return err
	}

	fromDate := now.UTC().AddDate(0, 0, -7).Format(dateLayout)
	for _, dom := range domains {
		recent, err := s.analytics.ListDomainDaysSince(ctx, dom, fromDate)
		if err != nil {
			return err
		}
		if len(recent) == 0 {
			continue
		}

		var bounce, spam, open, delivery float64
		for _, a := range recent {
			bounce += a.BounceRate
			spam += a.SpamRate
			open += a.OpenRate
			delivery += a.DeliveryRate
		}
		n := float64(len(recent))
		score, status := domainReputation(bounce/n, spam/n, open/n, delivery/n)

		rep := domain.DomainReputation{Score: score, Status: status, LastUpdated: now.UTC()}
		if err := s.analytics.UpdateDomainReputation(ctx, dom, rep); err != nil {
			return err
		}
	}
	return nil
}

// GenerateHealthAlerts scans the date's domain analytics and inserts alerts
// for threshold breaches. Alerts are pure inserts with no deduplication
// against earlier unresolved alerts of the same type.
func (s *RollupService) GenerateHealthAlerts(ctx context.Context, date string) error {
	stats, err := s.analytics.ListDomainDaysFor(ctx, date)
	if err != nil {
		return err
	}

	for _, stat := range stats {
		if stat.BounceRate > 5 {
			severity := domain.SeverityWarning
			if stat.BounceRate > 10 {
				severity = domain.SeverityCritical
			}
			alert := domain.DomainAlert{
				Domain:   stat.Domain,
				Severity: severity,
				Type:     domain.AlertHighBounceRate,
				Message:  fmt.Sprintf("High bounce rate detected: %.1f%%", stat.BounceRate),
				Details: fmt.Sprintf("Domain %s had %d bounces out of %d emails sent on %s",
					stat.Domain, stat.TotalBounced, stat.TotalSent, date),
			}
			if err := s.analytics.InsertAlert(ctx, alert); err != nil {
				return err
			}
		}

		if stat.SpamRate > 0.1 {
			severity := domain.SeverityWarning
			if stat.SpamRate > 0.2 {
				severity = domain.SeverityCritical
			}
			alert := domain.DomainAlert{
				Domain:   stat.Domain,
				Severity: severity,
				Type:     domain.AlertSpamComplaints,
				Message:  fmt.Sprintf("Spam complaints detected: %.2f%%", stat.SpamRate),
				Details: fmt.Sprintf("Domain %s received %d spam complaints on %s",
					stat.Domain, stat.SpamComplaints, date),
			}
			if err := s.analytics.InsertAlert(ctx, alert); err != nil {
				return err
			}
		}

		rep, err := s.analytics.GetDomainReputation(ctx, stat.Domain)
		if err != nil {
			return err
		}
		if rep != nil && rep.Score < 50 {
			severity := domain.SeverityWarning
			if rep.Score < 30 {
				severity = domain.SeverityCritical
			}
			alert := domain.DomainAlert{
				Domain:   stat.Domain,
				Severity: severity,
				Type:     domain.AlertReputationDrop,
				Message:  fmt.Sprintf("Low reputation score: %d/100", rep.Score),
				Details:  fmt.Sprintf("Domain %s reputation has dropped to %s", stat.Domain, rep.Status),
			}
			if err := s.analytics.InsertAlert(ctx, alert); err != nil {
				return err
			}
		}
	}
	return nil
}

// aggregateDomainDay computes the daily aggregate for one domain. Rates with
// a zero denominator are 0, never NaN. Unique opens and clicks count
// distinct recipient addresses, not raw events.
func aggregateDomainDay(dom, date string, events []domain.EmailEvent) domain.DomainDailyAnalytics {
	a := domain.DomainDailyAnalytics{
		Domain:      dom,
		Date:        date,
		HourlyStats: make([]domain.HourlyStat, 24),
	}
	for h := range a.HourlyStats {
		a.HourlyStats[h].Hour = h
	}

	uniqueOpens := make(map[string]struct{})
	uniqueClicks := make(map[string]struct{})

	for _, ev := range events {
		hour := ev.Timestamp.UTC().Hour()
		switch ev.EventType {
		case domain.EventSent:
			a.TotalSent++
			a.HourlyStats[hour].Sent++
		case domain.EventDelivered:
			a.TotalDelivered++
			a.HourlyStats[hour].Delivered++
		case domain.EventBounced:
			a.TotalBounced++
			if ev.BounceType == domain.BounceHard {
				a.HardBounces++
			} else if ev.BounceType == domain.BounceSoft {
				a.SoftBounces++
			}
		case domain.EventOpened:
			a.TotalOpened++
			a.HourlyStats[hour].Opened++
			uniqueOpens[ev.RecipientEmail] = struct{}{}
		case domain.EventClicked:
			a.TotalClicked++
			a.HourlyStats[hour].Clicked++
			uniqueClicks[ev.RecipientEmail] = struct{}{}
		case domain.EventSpamComplaint:
			a.SpamComplaints++
		case domain.EventUnsubscribed:
			a.Unsubscribes++
		}
	}

	a.UniqueOpens = len(uniqueOpens)
	a.UniqueClicks = len(uniqueClicks)

	a.DeliveryRate = rate(a.TotalDelivered, a.TotalSent)
	a.BounceRate = rate(a.TotalBounced, a.TotalSent)
	a.OpenRate = rate(a.TotalOpened, a.TotalDelivered)
	a.ClickRate = rate(a.TotalClicked, a.TotalDelivered)
	a.SpamRate = rate(a.SpamComplaints, a.TotalSent)
	return a
}

// computeSenderStats builds one sender's daily stats row.
func computeSenderStats(storeID, dom, date string, events []domain.EmailEvent, now time.Time) domain.SenderDailyStats {
	s := domain.SenderDailyStats{StoreID: storeID, Domain: dom, Date: date}

	for _, ev := range events {
		switch ev.EventType {
		case domain.EventSent:
			s.Sent++
		case domain.EventDelivered:
			s.Delivered++
		case domain.EventBounced:
			s.Bounced++
		case domain.EventOpened:
			s.Opened++
		case domain.EventClicked:
			s.Clicked++
		case domain.EventSpamComplaint:
			s.SpamComplaints++
		case domain.EventUnsubscribed:
			s.Unsubscribes++
		}
	}

	s.BounceRate = rate(s.Bounced, s.Sent)
	s.OpenRate = rate(s.Opened, s.Delivered)
	s.SpamRate = rate(s.SpamComplaints, s.Sent)
	s.ReputationScore = senderReputation(s.BounceRate, s.SpamRate, s.OpenRate)

	if s.BounceRate > 5 {
		s.Warnings = append(s.Warnings, domain.SenderWarning{
			Type:      domain.WarningHighBounce,
			Message:   fmt.Sprintf("Bounce rate %.1f%% exceeds 5%% threshold", s.BounceRate),
			Timestamp: now,
		})
	}
	if s.SpamRate > 0.1 {
		s.Warnings = append(s.Warnings, domain.SenderWarning{
			Type:      domain.WarningSpamComplaints,
			Message:   fmt.Sprintf("Spam rate %.2f%% exceeds 0.1%% threshold", s.SpamRate),
			Timestamp: now,
		})
	}
	if s.ReputationScore < 50 {
		s.Warnings = append(s.Warnings, domain.SenderWarning{
			Type:      domain.WarningLowEngagement,
			Message:   fmt.Sprintf("Reputation score %.0f/100 is below healthy threshold", s.ReputationScore),
			Timestamp: now,
		})
	}

	// Suspension is a hard override; warnings never downgrade it.
	switch {
	case s.BounceRate > 10 || s.SpamRate > 0.2:
		s.SendingStatus = domain.SendingSuspended
	case len(s.Warnings) > 0:
		s.SendingStatus = domain.SendingWarning
	default:
		s.SendingStatus = domain.SendingActive
	}
	return s
}

// senderReputation scores a sender 0-100 for one day. Spam complaints are
// penalized roughly 20x harder per percentage point than bounces, and open
// rates below 20% count as an engagement deficit.
func senderReputation(bounceRate, spamRate, openRate float64) float64 {
	score := 100.0
	if bounceRate > 2 {
		score -= (bounceRate - 2) * 5
	}
	if spamRate > 0.01 {
		score -= (spamRate - 0.01) * 100
	}
	if openRate < 20 {
		score -= (20 - openRate) * 2
	}
	return clamp(score, 0, 100)
}

// domainReputation maps 7-day average rates to a rounded 0-100 score and a
// qualitative status band. Each penalty is capped so no single metric can
// zero the score on its own.
func domainReputation(bounceRate, spamRate, openRate, deliveryRate float64) (int, domain.ReputationStatus) {
	score := 100.0
	if bounceRate > 2 {
		score -= math.Min(40, (bounceRate-2)*5)
	}
	if spamRate > 0.01 {
		score -= math.Min(50, (spamRate-0.01)*500)
	}
	if openRate < 20 {
		score -= math.Min(20, (20-openRate)*2)
	}
	if deliveryRate < 95 {
		score -= math.Min(30, (95-deliveryRate)*3)
	}

	n := int(clamp(math.Round(score), 0, 100))

	var status domain.ReputationStatus
	switch {
	case n >= 90:
		status = domain.ReputationExcellent
	case n >= 70:
		status = domain.ReputationGood
	case n >= 50:
		status = domain.ReputationFair
	case n >= 30:
		status = domain.ReputationPoor
	default:
		status = domain.ReputationCritical
	}
	return n, status
}

func rate(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
