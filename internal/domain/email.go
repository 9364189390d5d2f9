package domain

import (
	"database/sql"
	"time"
)

type EmailEventType string

const (
	EventSent          EmailEventType = "sent"
	EventDelivered     EmailEventType = "delivered"
	EventBounced       EmailEventType = "bounced"
	EventOpened        EmailEventType = "opened"
	EventClicked       EmailEventType = "clicked"
	EventSpamComplaint EmailEventType = "spam_complaint"
	EventUnsubscribed  EmailEventType = "unsubscribed"
)

// Valid reports whether t is a known delivery-lifecycle event type.
func (t EmailEventType) Valid() bool {
	switch t {
	case EventSent, EventDelivered, EventBounced, EventOpened, EventClicked,
		EventSpamComplaint, EventUnsubscribed:
		return true
	}
	return false
}

type BounceType string

const (
	BounceHard BounceType = "hard"
	BounceSoft BounceType = "soft"
)

// EmailEvent is one delivery-lifecycle occurrence. Events are append-only
// and never mutated after ingestion.
type EmailEvent struct {
	ID             string         `json:"id"`
	Domain         string         `json:"domain"`
	StoreID        string         `json:"store_id,omitempty"`
	RecipientEmail string         `json:"recipient_email"`
	EventType      EmailEventType `json:"event_type"`
	BounceType     BounceType     `json:"bounce_type,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// HourlyStat is one bucket of the 24-entry per-day histogram.
type HourlyStat struct {
	Hour      int `json:"hour"`
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Opened    int `json:"opened"`
	Clicked   int `json:"clicked"`
}

// DomainDailyAnalytics aggregates one domain's events for one calendar date
// (YYYY-MM-DD, UTC). Recomputed by upsert; re-running a date overwrites.
type DomainDailyAnalytics struct {
	Domain         string
	Date           string
	TotalSent      int
	TotalDelivered int
	TotalBounced   int
	TotalFailed    int
	TotalOpened    int
	TotalClicked   int
	UniqueOpens    int
	UniqueClicks   int
	SpamComplaints int
	Unsubscribes   int
	HardBounces    int
	SoftBounces    int
	DeliveryRate   float64 // percent of sent
	BounceRate     float64 // percent of sent
	OpenRate       float64 // percent of delivered
	ClickRate      float64 // percent of delivered
	SpamRate       float64 // percent of sent
	HourlyStats    []HourlyStat
}

type SendingStatus string

const (
	SendingActive    SendingStatus = "active"
	SendingWarning   SendingStatus = "warning"
	SendingSuspended SendingStatus = "suspended"
)

type WarningType string

const (
	WarningHighBounce     WarningType = "high_bounce"
	WarningSpamComplaints WarningType = "spam_complaints"
	WarningLowEngagement  WarningType = "low_engagement"
)

// SenderWarning explains why a sender's status is degraded.
type SenderWarning struct {
	Type      WarningType `json:"type"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

// SenderDailyStats is the per-(store, domain, date) rollup, including the
// 0-100 reputation score that gates sending privileges.
type SenderDailyStats struct {
	StoreID         string
	Domain          string
	Date            string
	Sent            int
	Delivered       int
	Bounced         int
	Opened          int
	Clicked         int
	SpamComplaints  int
	Unsubscribes    int
	BounceRate      float64
	OpenRate        float64
	SpamRate        float64
	ReputationScore float64
	SendingStatus   SendingStatus
	Warnings        []SenderWarning
}

type ReputationStatus string

const (
	ReputationExcellent ReputationStatus = "excellent"
	ReputationGood      ReputationStatus = "good"
	ReputationFair      ReputationStatus = "fair"
	ReputationPoor      ReputationStatus = "poor"
	ReputationCritical  ReputationStatus = "critical"
)

// DomainReputation is the current-state summary kept on the domain itself,
// recomputed from a trailing 7-day window of daily analytics.
type DomainReputation struct {
	Score       int
	Status      ReputationStatus
	LastUpdated time.Time
}

type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

type AlertType string

const (
	AlertHighBounceRate AlertType = "high_bounce_rate"
	AlertSpamComplaints AlertType = "spam_complaints"
	AlertReputationDrop AlertType = "reputation_drop"
)

// DomainAlert is an append-only health notification.
type DomainAlert struct {
	ID        string
	Domain    string
	Severity  AlertSeverity
	Type      AlertType
	Message   string
	Details   string
	CreatedAt time.Time
	Resolved  bool
}

type EmailLogStatus string

const (
	StatusSent   EmailLogStatus = "sent"
	StatusFailed EmailLogStatus = "failed"
)

// EmailLog records one confirmation-email attempt, win or lose.
type EmailLog struct {
	TransactionID  string
	RecipientEmail string
	Subject        string
	Status         EmailLogStatus
	ErrorMessage   sql.NullString
}
