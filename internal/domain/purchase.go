package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// Business errors shared between the repositories, services and handlers.
var (
	ErrAlreadyPurchased = errors.New("user already has access to this product")
	ErrProductNotFound  = errors.New("product not found or not published")
	ErrPurchaseNotFound = errors.New("purchase not found")
)

type ProductType string

const (
	ProductDigital      ProductType = "digital_product"
	ProductCourse       ProductType = "course"
	ProductBundle       ProductType = "bundle"
	ProductCoaching     ProductType = "coaching"
	ProductSubscription ProductType = "subscription"
)

// Valid reports whether t is one of the known product categories.
func (t ProductType) Valid() bool {
	switch t {
	case ProductDigital, ProductCourse, ProductBundle, ProductCoaching, ProductSubscription:
		return true
	}
	return false
}

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseFailed    PurchaseStatus = "failed"
	PurchaseRefunded  PurchaseStatus = "refunded"
)

// Purchase is the durable record of a completed transaction. At most one
// completed purchase may exist per (UserID, ProductID) pair; the partial
// unique index in the purchases table enforces this even when two deliveries
// of the same payment event race past the application-level check.
type Purchase struct {
	ID             string
	UserID         string
	ProductID      string
	StoreID        string
	ProductType    ProductType
	Amount         int64 // integer minor units (cents)
	Currency       string
	PaymentMethod  string
	TransactionID  string
	Status         PurchaseStatus
	AccessGranted  bool
	DownloadCount  int
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// Product is the purchasable catalog entry referenced by checkout metadata.
type Product struct {
	ID         string
	StoreID    string
	Title      string
	Type       ProductType
	PriceCents int64
	Published  bool
}

// WebhookEvent is the payment provider's event envelope. Data.Object is left
// raw because its shape depends on the event type.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSession is the object carried by checkout.session.completed events.
type CheckoutSession struct {
	ID              string            `json:"id"`
	Mode            string            `json:"mode"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	PaymentIntent   string            `json:"payment_intent"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails CustomerDetails   `json:"customer_details"`
}

// CustomerDetails is the provider-supplied contact fallback used when
// checkout metadata omits the buyer's email or name.
type CustomerDetails struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// RefundCharge is the object carried by charge.refunded events.
type RefundCharge struct {
	ID             string `json:"id"`
	PaymentIntent  string `json:"payment_intent"`
	AmountRefunded int64  `json:"amount_refunded"`
	Currency       string `json:"currency"`
}

// CheckoutInfo is the validated, typed view of a checkout session's metadata
// bag. It is produced once at the boundary by the validator; downstream code
// never re-parses metadata.
type CheckoutInfo struct {
	UserID        string
	ProductID     string
	ProductType   ProductType
	Amount        int64 // cents
	Currency      string
	ProductTitle  string
	CustomerEmail string
	CustomerName  string
	TransactionID string
}
