package domain

import "testing"

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name  string
		cents int64
		want  string
	}{
		{"typical price", 1499, "14.99"},
		{"under ten", 999, "9.99"},
		{"whole units", 5000, "50.00"},
		{"single cent", 1, "0.01"},
		{"zero", 0, "0.00"},
		{"negative", -250, "-2.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatAmount(tt.cents); got != tt.want {
				t.Errorf("FormatAmount(%d) = %q, want %q", tt.cents, got, tt.want)
			}
		})
	}
}

func TestFormatMoney(t *testing.T) {
	if got := FormatMoney(1499, "usd"); got != "14.99 USD" {
		t.Errorf("FormatMoney(1499, usd) = %q, want %q", got, "14.99 USD")
	}
	if got := FormatMoney(999, ""); got != "9.99 USD" {
		t.Errorf("FormatMoney with empty currency = %q, want %q", got, "9.99 USD")
	}
}

func TestProductTypeValid(t *testing.T) {
	for _, valid := range []ProductType{ProductDigital, ProductCourse, ProductBundle, ProductCoaching, ProductSubscription} {
		if !valid.Valid() {
			t.Errorf("expected %q to be valid", valid)
		}
	}
	if ProductType("beat_lease").Valid() {
		t.Error("expected unknown product type to be invalid")
	}
	if ProductType("").Valid() {
		t.Error("expected empty product type to be invalid")
	}
}
