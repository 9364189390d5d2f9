package validator

import (
	"errors"
	"testing"
	"time"

	"fulfillment-service/internal/domain"
)

func validSession() domain.CheckoutSession {
	return domain.CheckoutSession{
		ID:            "cs_123",
		Mode:          "payment",
		AmountTotal:   1499,
		Currency:      "usd",
		PaymentIntent: "pi_123",
		Metadata: map[string]string{
			"userId":        "u1",
			"productId":     "p1",
			"productType":   "course",
			"amount":        "1499",
			"productTitle":  "Mixing Basics",
			"customerEmail": "buyer@example.com",
			"customerName":  "Sam Buyer",
		},
		CustomerDetails: domain.CustomerDetails{Email: "fallback@example.com", Name: "Fallback Name"},
	}
}

func TestCheckoutInfoFromSession(t *testing.T) {
	info, err := CheckoutInfoFromSession(validSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.UserID != "u1" || info.ProductID != "p1" {
		t.Errorf("unexpected identities: %+v", info)
	}
	if info.ProductType != domain.ProductCourse {
		t.Errorf("product type = %q, want course", info.ProductType)
	}
	if info.Amount != 1499 {
		t.Errorf("amount = %d, want 1499", info.Amount)
	}
	if info.CustomerEmail != "buyer@example.com" {
		t.Errorf("metadata email should win, got %q", info.CustomerEmail)
	}
	if info.TransactionID != "pi_123" {
		t.Errorf("transaction id = %q, want pi_123", info.TransactionID)
	}
}

func TestCheckoutInfoFallbacks(t *testing.T) {
	s := validSession()
	delete(s.Metadata, "customerEmail")
	delete(s.Metadata, "customerName")

	info, err := CheckoutInfoFromSession(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.CustomerEmail != "fallback@example.com" {
		t.Errorf("email fallback = %q, want provider customer details", info.CustomerEmail)
	}
	if info.CustomerName != "Fallback Name" {
		t.Errorf("name fallback = %q", info.CustomerName)
	}

	// Currency falls back metadata -> session -> USD.
	s = validSession()
	s.Metadata["currency"] = "eur"
	info, _ = CheckoutInfoFromSession(s)
	if info.Currency != "eur" {
		t.Errorf("currency = %q, want eur", info.Currency)
	}
	s = validSession()
	s.Currency = ""
	info, _ = CheckoutInfoFromSession(s)
	if info.Currency != "USD" {
		t.Errorf("currency default = %q, want USD", info.Currency)
	}
}

func TestCheckoutInfoValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *domain.CheckoutSession)
		wantErr error
	}{
		{"missing user id", func(s *domain.CheckoutSession) { delete(s.Metadata, "userId") }, ErrMissingUserID},
		{"blank user id", func(s *domain.CheckoutSession) { s.Metadata["userId"] = "  " }, ErrMissingUserID},
		{"missing product id", func(s *domain.CheckoutSession) { delete(s.Metadata, "productId") }, ErrMissingProductID},
		{"unknown product type", func(s *domain.CheckoutSession) { s.Metadata["productType"] = "nft" }, ErrUnknownProductType},
		{"missing amount", func(s *domain.CheckoutSession) { delete(s.Metadata, "amount") }, ErrMissingAmount},
		{"non-numeric amount", func(s *domain.CheckoutSession) { s.Metadata["amount"] = "14.99" }, ErrInvalidAmount},
		{"negative amount", func(s *domain.CheckoutSession) { s.Metadata["amount"] = "-1" }, ErrInvalidAmount},
		{"bad email", func(s *domain.CheckoutSession) { s.Metadata["customerEmail"] = "not-an-email" }, ErrInvalidEmailFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSession()
			tt.mutate(&s)
			_, err := CheckoutInfoFromSession(s)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEmailEvent(t *testing.T) {
	valid := domain.EmailEvent{
		Domain:         "mail.example.com",
		StoreID:        "store1",
		RecipientEmail: "r@example.com",
		EventType:      domain.EventBounced,
		BounceType:     domain.BounceHard,
		Timestamp:      time.Now(),
	}
	if err := ValidateEmailEvent(valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(ev *domain.EmailEvent)
		wantErr error
	}{
		{"empty domain", func(ev *domain.EmailEvent) { ev.Domain = "" }, ErrEmptyDomain},
		{"empty recipient", func(ev *domain.EmailEvent) { ev.RecipientEmail = "" }, ErrEmptyRecipient},
		{"unknown event type", func(ev *domain.EmailEvent) { ev.EventType = "forwarded" }, ErrUnknownEventType},
		{"bounce without type", func(ev *domain.EmailEvent) { ev.BounceType = "" }, ErrUnknownBounceType},
		{"zero timestamp", func(ev *domain.EmailEvent) { ev.Timestamp = time.Time{} }, ErrMissingTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := valid
			tt.mutate(&ev)
			if err := ValidateEmailEvent(ev); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
