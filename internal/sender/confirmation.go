package sender

import (
	"fmt"

	"fulfillment-service/internal/domain"
)

// PurchaseConfirmation is the typed payload for a purchase confirmation
// email. Amounts arrive as integer cents and are rendered as decimal
// currency only here.
type PurchaseConfirmation struct {
	CustomerEmail string
	CustomerName  string
	ProductTitle  string
	ProductType   domain.ProductType
	Amount        int64
	Currency      string
}

// Subject returns the per-category subject line.
func (c PurchaseConfirmation) Subject() string {
	switch c.ProductType {
	case domain.ProductCourse:
		return fmt.Sprintf("You're enrolled: %s", c.ProductTitle)
	case domain.ProductBundle:
		return fmt.Sprintf("Your bundle is ready: %s", c.ProductTitle)
	case domain.ProductCoaching:
		return fmt.Sprintf("Coaching booked: %s", c.ProductTitle)
	case domain.ProductSubscription:
		return fmt.Sprintf("Subscription confirmed: %s", c.ProductTitle)
	default:
		return fmt.Sprintf("Your purchase: %s", c.ProductTitle)
	}
}

// Body returns the plain-text body with the amount in decimal units.
func (c PurchaseConfirmation) Body() string {
	name := c.CustomerName
	if name == "" {
		name = fallbackName(c.ProductType)
	}

	var action string
	switch c.ProductType {
	case domain.ProductCourse:
		action = "You now have full access to the course."
	case domain.ProductBundle:
		action = "All items in the bundle are available in your library."
	case domain.ProductCoaching:
		action = "Your coaching session details will follow shortly."
	case domain.ProductSubscription:
		action = "Your subscription is now active."
	default:
		action = "Your download is available in your library."
	}

	return fmt.Sprintf(
		"Hi %s,\n\nThanks for your purchase of %q.\nAmount: %s\n\n%s\n",
		name, c.ProductTitle, domain.FormatMoney(c.Amount, c.Currency), action,
	)
}

func fallbackName(t domain.ProductType) string {
	switch t {
	case domain.ProductCourse:
		return "Student"
	case domain.ProductSubscription:
		return "Member"
	default:
		return "Customer"
	}
}
