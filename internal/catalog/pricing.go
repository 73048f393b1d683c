package catalog

// Package catalog supplies product snapshots and the storefront pricing
// policy used to derive order totals.

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/valenciashop/valencia/internal/money"
)

type pricingFile struct {
	Currency string       `yaml:"currency"`
	TaxRate  string       `yaml:"tax_rate"`
	Shipping shippingFile `yaml:"shipping"`
}

type shippingFile struct {
	FlatRate         string `yaml:"flat_rate"`
	FreeOverSubtotal string `yaml:"free_over_subtotal"`
}

// Pricing is the validated pricing policy: currency, tax rate and shipping
// rules. Discounts are not part of it; an externally-validated discount is
// folded into the subtotal by the checkout caller.
type Pricing struct {
	Currency         string
	TaxRate          decimal.Decimal
	ShippingFlatRate decimal.Decimal
	// FreeShippingOver disables shipping cost at or above this subtotal;
	// zero means the threshold is off.
	FreeShippingOver decimal.Decimal
}

func LoadPricing(path string) (*Pricing, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing file: %w", err)
	}
	return ParsePricing(content)
}

func ParsePricing(content []byte) (*Pricing, error) {
	var file pricingFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pricing YAML: %w", err)
	}

	if file.Currency == "" {
		return nil, fmt.Errorf("pricing currency is required")
	}

	taxRate, err := money.FromString(file.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("pricing tax_rate: %w", err)
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("pricing tax_rate must be between 0 and 1, got %s", taxRate)
	}

	flatRate, err := money.FromString(file.Shipping.FlatRate)
	if err != nil {
		return nil, fmt.Errorf("pricing shipping.flat_rate: %w", err)
	}
	if flatRate.IsNegative() {
		return nil, fmt.Errorf("pricing shipping.flat_rate must not be negative")
	}

	freeOver := decimal.Zero
	if file.Shipping.FreeOverSubtotal != "" {
		freeOver, err = money.FromString(file.Shipping.FreeOverSubtotal)
		if err != nil {
			return nil, fmt.Errorf("pricing shipping.free_over_subtotal: %w", err)
		}
		if freeOver.IsNegative() {
			return nil, fmt.Errorf("pricing shipping.free_over_subtotal must not be negative")
		}
	}

	return &Pricing{
		Currency:         file.Currency,
		TaxRate:          taxRate,
		ShippingFlatRate: flatRate,
		FreeShippingOver: freeOver,
	}, nil
}

// Tax returns the tax on a subtotal, rounded to currency precision.
func (p *Pricing) Tax(subtotal decimal.Decimal) decimal.Decimal {
	return money.RoundCurrency(subtotal.Mul(p.TaxRate))
}

// Shipping returns the shipping cost for a subtotal.
func (p *Pricing) Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if !p.FreeShippingOver.IsZero() && subtotal.GreaterThanOrEqual(p.FreeShippingOver) {
		return decimal.Zero
	}
	return p.ShippingFlatRate
}
