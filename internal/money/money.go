// Package money provides exact decimal amounts for prices and totals.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is an exact decimal monetary value. All price arithmetic in the
// system goes through decimals; floats never touch money.
type Amount = decimal.Decimal

func Zero() Amount {
	return decimal.Zero
}

func FromString(value string) (Amount, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}

// MustFromString is for constants and tests only.
func MustFromString(value string) Amount {
	return decimal.RequireFromString(value)
}

// Line returns unitPrice * quantity.
func Line(unitPrice Amount, quantity int) Amount {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

func Sum(amounts ...Amount) Amount {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// RoundCurrency rounds to two decimal places, the storage precision for
// every monetary column.
func RoundCurrency(amount Amount) Amount {
	return amount.Round(2)
}

// Cents converts an amount to integer cents for gateways that only accept
// minor units.
func Cents(amount Amount) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
