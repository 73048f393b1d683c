package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ChangeType string

const (
	ChangeRestock    ChangeType = "restock"
	ChangeAdjustment ChangeType = "adjustment"
	ChangeDamaged    ChangeType = "damaged"
	ChangeReturn     ChangeType = "return"
	ChangeSale       ChangeType = "sale"
)

func (c ChangeType) Valid() bool {
	switch c {
	case ChangeRestock, ChangeAdjustment, ChangeDamaged, ChangeReturn, ChangeSale:
		return true
	}
	return false
}

// RequiresReason is true for every change type except sale; admin-driven
// changes must carry a human-readable reason.
func (c ChangeType) RequiresReason() bool {
	return c != ChangeSale
}

// ClampsAtZero is true for change types whose decrements floor at zero
// instead of failing. Sale decrements never clamp: a sale that would take
// stock negative is rejected outright so concurrent checkouts cannot
// oversell.
func (c ChangeType) ClampsAtZero() bool {
	return c != ChangeSale
}

// InsufficientStockError reports a sale decrement that would take a
// variant's stock below zero. Nothing is persisted when it is returned.
type InsufficientStockError struct {
	VariantID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s: requested %d, available %d", e.VariantID, e.Requested, e.Available)
}

// ProductVariant carries the stock counter. Stock is mutated exclusively
// through the inventory ledger; no other code path writes it.
type ProductVariant struct {
	ID            uuid.UUID `json:"id"`
	ProductID     uuid.UUID `json:"product_id"`
	SKU           string    `json:"sku"`
	Size          string    `json:"size,omitempty"`
	Color         string    `json:"color,omitempty"`
	StockQuantity int       `json:"stock_quantity"`
	IsAvailable   bool      `json:"is_available"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Denormalized for listings.
	ProductName string `json:"product_name,omitempty"`
}

// InventoryLogEntry is an append-only audit record. It is written in the
// same transaction as the stock change it describes and never updated or
// deleted afterwards.
type InventoryLogEntry struct {
	ID               int64      `json:"id"`
	VariantID        uuid.UUID  `json:"variant_id"`
	ChangeType       ChangeType `json:"change_type"`
	QuantityChange   int        `json:"quantity_change"`
	PreviousQuantity int        `json:"previous_quantity"`
	NewQuantity      int        `json:"new_quantity"`
	Reason           string     `json:"reason,omitempty"`
	CreatedBy        string     `json:"created_by,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`

	// Denormalized for display.
	SKU         string `json:"sku,omitempty"`
	ProductName string `json:"product_name,omitempty"`
}
