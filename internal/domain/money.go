package domain

import (
	"fmt"
	"strings"
)

// FormatAmount converts integer minor units to a decimal string with two
// places: 1499 -> "14.99", 999 -> "9.99". Amounts are stored as cents
// everywhere; this is display-only.
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// FormatMoney renders an amount with its uppercased currency code,
// e.g. (1499, "usd") -> "14.99 USD".
func FormatMoney(cents int64, currency string) string {
	if currency == "" {
		currency = "USD"
	}
	return FormatAmount(cents) + " " + strings.ToUpper(currency)
}
