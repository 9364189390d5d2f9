package validator

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"fulfillment-service/internal/domain"
)

var (
	ErrMissingUserID      = errors.New("metadata is missing userId")
	ErrMissingProductID   = errors.New("metadata is missing productId")
	ErrMissingAmount      = errors.New("metadata is missing amount")
	ErrInvalidAmount      = errors.New("amount must be a positive integer of cents")
	ErrUnknownProductType = errors.New("unknown product type")
	ErrInvalidEmailFormat = errors.New("invalid email format")

	ErrEmptyDomain       = errors.New("email event domain is empty")
	ErrEmptyRecipient    = errors.New("email event recipient is empty")
	ErrUnknownEventType  = errors.New("unknown email event type")
	ErrUnknownBounceType = errors.New("unknown bounce type")
	ErrMissingTimestamp  = errors.New("email event timestamp is missing")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmailFormat
	}
	return nil
}

// CheckoutInfoFromSession validates the metadata bag of a checkout session
// and extracts a typed CheckoutInfo. Validation happens once here, at the
// boundary; a returned error means the event is malformed and unrecoverable,
// so the caller logs it and acknowledges without mutating anything.
func CheckoutInfoFromSession(s domain.CheckoutSession) (domain.CheckoutInfo, error) {
	md := s.Metadata

	userID := strings.TrimSpace(md["userId"])
	if userID == "" {
		return domain.CheckoutInfo{}, ErrMissingUserID
	}

	productID := strings.TrimSpace(md["productId"])
	if productID == "" {
		return domain.CheckoutInfo{}, ErrMissingProductID
	}

	productType := domain.ProductType(md["productType"])
	if !productType.Valid() {
		return domain.CheckoutInfo{}, ErrUnknownProductType
	}

	rawAmount := strings.TrimSpace(md["amount"])
	if rawAmount == "" {
		return domain.CheckoutInfo{}, ErrMissingAmount
	}
	amount, err := strconv.ParseInt(rawAmount, 10, 64)
	if err != nil || amount <= 0 {
		return domain.CheckoutInfo{}, ErrInvalidAmount
	}

	// Contact details: metadata wins, provider customer details are the fallback.
	customerEmail := strings.TrimSpace(md["customerEmail"])
	if customerEmail == "" {
		customerEmail = strings.TrimSpace(s.CustomerDetails.Email)
	}
	if customerEmail != "" {
		if err := ValidateEmail(customerEmail); err != nil {
			return domain.CheckoutInfo{}, err
		}
	}
	customerName := strings.TrimSpace(md["customerName"])
	if customerName == "" {
		customerName = strings.TrimSpace(s.CustomerDetails.Name)
	}

	currency := strings.TrimSpace(md["currency"])
	if currency == "" {
		currency = s.Currency
	}
	if currency == "" {
		currency = "USD"
	}

	return domain.CheckoutInfo{
		UserID:        userID,
		ProductID:     productID,
		ProductType:   productType,
		Amount:        amount,
		Currency:      currency,
		ProductTitle:  strings.TrimSpace(md["productTitle"]),
		CustomerEmail: customerEmail,
		CustomerName:  customerName,
		TransactionID: s.PaymentIntent,
	}, nil
}

// ValidateEmailEvent checks a delivery-lifecycle event before it is appended
// to the event log.
func ValidateEmailEvent(ev domain.EmailEvent) error {
	if strings.TrimSpace(ev.Domain) == "" {
		return ErrEmptyDomain
	}
	if strings.TrimSpace(ev.RecipientEmail) == "" {
		return ErrEmptyRecipient
	}
	if !ev.EventType.Valid() {
		return ErrUnknownEventType
	}
	if ev.EventType == domain.EventBounced && ev.BounceType != domain.BounceHard && ev.BounceType != domain.BounceSoft {
		return ErrUnknownBounceType
	}
	if ev.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}
