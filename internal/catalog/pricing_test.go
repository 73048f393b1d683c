package catalog

import (
	"strings"
	"testing"

	"github.com/valenciashop/valencia/internal/money"
)

const validPricingYAML = `
currency: usd
tax_rate: "0.08"
shipping:
  flat_rate: "5.00"
  free_over_subtotal: "100.00"
`

func TestParsePricing(t *testing.T) {
	t.Parallel()

	pricing, err := ParsePricing([]byte(validPricingYAML))
	if err != nil {
		t.Fatalf("ParsePricing: %v", err)
	}
	if pricing.Currency != "usd" {
		t.Errorf("Currency = %q, want usd", pricing.Currency)
	}
	if !pricing.TaxRate.Equal(money.MustFromString("0.08")) {
		t.Errorf("TaxRate = %s, want 0.08", pricing.TaxRate)
	}
	if !pricing.ShippingFlatRate.Equal(money.MustFromString("5.00")) {
		t.Errorf("ShippingFlatRate = %s, want 5.00", pricing.ShippingFlatRate)
	}
}

func TestParsePricingRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "missing currency",
			yaml:    "tax_rate: \"0.08\"\nshipping:\n  flat_rate: \"5.00\"\n",
			wantMsg: "currency",
		},
		{
			name:    "tax rate above one",
			yaml:    "currency: usd\ntax_rate: \"1.5\"\nshipping:\n  flat_rate: \"5.00\"\n",
			wantMsg: "tax_rate",
		},
		{
			name:    "negative flat rate",
			yaml:    "currency: usd\ntax_rate: \"0.08\"\nshipping:\n  flat_rate: \"-1\"\n",
			wantMsg: "flat_rate",
		},
		{
			name:    "garbage yaml",
			yaml:    "currency: [",
			wantMsg: "parse",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParsePricing([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestPricingTaxRounds(t *testing.T) {
	t.Parallel()

	pricing, err := ParsePricing([]byte(validPricingYAML))
	if err != nil {
		t.Fatalf("ParsePricing: %v", err)
	}

	// 59.98 * 0.08 = 4.7984, rounds to currency precision.
	tax := pricing.Tax(money.MustFromString("59.98"))
	if !tax.Equal(money.MustFromString("4.80")) {
		t.Fatalf("Tax(59.98) = %s, want 4.80", tax)
	}
}

func TestPricingShippingThreshold(t *testing.T) {
	t.Parallel()

	pricing, err := ParsePricing([]byte(validPricingYAML))
	if err != nil {
		t.Fatalf("ParsePricing: %v", err)
	}

	if got := pricing.Shipping(money.MustFromString("59.98")); !got.Equal(money.MustFromString("5.00")) {
		t.Fatalf("Shipping(59.98) = %s, want 5.00", got)
	}
	if got := pricing.Shipping(money.MustFromString("100.00")); !got.IsZero() {
		t.Fatalf("Shipping(100.00) = %s, want 0", got)
	}
}
