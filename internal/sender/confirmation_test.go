package sender

import (
	"strings"
	"testing"

	"fulfillment-service/internal/domain"
)

func TestConfirmationSubjectPerCategory(t *testing.T) {
	tests := []struct {
		productType domain.ProductType
		wantPrefix  string
	}{
		{domain.ProductDigital, "Your purchase:"},
		{domain.ProductCourse, "You're enrolled:"},
		{domain.ProductBundle, "Your bundle is ready:"},
		{domain.ProductCoaching, "Coaching booked:"},
		{domain.ProductSubscription, "Subscription confirmed:"},
	}
	for _, tt := range tests {
		t.Run(string(tt.productType), func(t *testing.T) {
			c := PurchaseConfirmation{ProductTitle: "Drum Kit Vol. 1", ProductType: tt.productType}
			if got := c.Subject(); !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("subject = %q, want prefix %q", got, tt.wantPrefix)
			}
		})
	}
}

func TestConfirmationBodyRendersDecimalAmount(t *testing.T) {
	c := PurchaseConfirmation{
		CustomerName: "Sam",
		ProductTitle: "Mixing Basics",
		ProductType:  domain.ProductCourse,
		Amount:       1499,
		Currency:     "usd",
	}
	body := c.Body()
	if !strings.Contains(body, "14.99 USD") {
		t.Errorf("body should contain decimal amount, got:\n%s", body)
	}
	if !strings.Contains(body, "Hi Sam,") {
		t.Errorf("body should greet the customer, got:\n%s", body)
	}

	c.Amount = 999
	if !strings.Contains(c.Body(), "9.99 USD") {
		t.Errorf("999 cents should render as 9.99")
	}
}

func TestConfirmationBodyFallbackName(t *testing.T) {
	c := PurchaseConfirmation{ProductTitle: "X", ProductType: domain.ProductCourse}
	if !strings.Contains(c.Body(), "Hi Student,") {
		t.Errorf("course fallback name should be Student, got:\n%s", c.Body())
	}
	c.ProductType = domain.ProductDigital
	if !strings.Contains(c.Body(), "Hi Customer,") {
		t.Errorf("digital fallback name should be Customer")
	}
}
