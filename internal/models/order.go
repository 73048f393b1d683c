package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusPaid       OrderStatus = "paid"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodOnline         PaymentMethod = "online"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// statusTransitions is the single authority on legal status changes.
// cancelled and refunded have no outgoing edges.
var statusTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusPaid, StatusCancelled},
	StatusPaid:       {StatusShipped, StatusRefunded},
	StatusShipped:    {StatusDelivered, StatusRefunded},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

func (s OrderStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InvalidStatusTransitionError reports an edge missing from the transition
// table. The order is left unchanged when it is returned.
type InvalidStatusTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition: %s -> %s", e.From, e.To)
}

// OrderTotalMismatchError reports a recorded total that disagrees with
// subtotal + tax + shipping. Orders are never persisted in this state.
type OrderTotalMismatchError struct {
	Computed decimal.Decimal
	Recorded decimal.Decimal
}

func (e *OrderTotalMismatchError) Error() string {
	return fmt.Sprintf("order total mismatch: computed %s, recorded %s", e.Computed, e.Recorded)
}

// OrderItem is a line within an order. Product name and unit price are
// snapshots taken at order time; later catalog edits do not touch them.
type OrderItem struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     uuid.UUID       `json:"order_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// Order is one purchase transaction together with its line items. It is
// created atomically with its items and payment, mutated only through
// status transitions, and never deleted in normal operation.
type Order struct {
	ID                uuid.UUID       `json:"id"`
	OrderNumber       string          `json:"order_number"`
	UserID            uuid.UUID       `json:"user_id"`
	Status            OrderStatus     `json:"status"`
	Items             []OrderItem     `json:"items"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Tax               decimal.Decimal `json:"tax"`
	ShippingCost      decimal.Decimal `json:"shipping_cost"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	ShippingAddressID uuid.UUID       `json:"shipping_address_id"`
	BillingAddressID  uuid.UUID       `json:"billing_address_id"`
	PaymentMethod     PaymentMethod   `json:"payment_method,omitempty"`
	PaidAt            time.Time       `json:"paid_at"`
	ShippedAt         time.Time       `json:"shipped_at"`
	DeliveredAt       time.Time       `json:"delivered_at"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsPaid is true once paidAt is stamped or the status implies payment.
func (o *Order) IsPaid() bool {
	if !o.PaidAt.IsZero() {
		return true
	}
	switch o.Status {
	case StatusPaid, StatusShipped, StatusDelivered:
		return true
	}
	return false
}

func (o *Order) CanCancel() bool {
	return o.Status == StatusPending || o.Status == StatusProcessing
}

func (o *Order) CanRefund() bool {
	switch o.Status {
	case StatusPaid, StatusShipped, StatusDelivered:
		return true
	}
	return false
}

// IsFinalState reports delivered or cancelled. Refunded also has no outgoing
// transitions but is intentionally not counted here; callers depend on the
// narrower set.
func (o *Order) IsFinalState() bool {
	return o.Status == StatusDelivered || o.Status == StatusCancelled
}

func (o *Order) TotalItems() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// ValidateTotal recomputes subtotal + tax + shipping and compares it to the
// recorded total. The comparison is exact; there is no epsilon.
func (o *Order) ValidateTotal() error {
	computed := o.Subtotal.Add(o.Tax).Add(o.ShippingCost)
	if !computed.Equal(o.TotalAmount) {
		return &OrderTotalMismatchError{Computed: computed, Recorded: o.TotalAmount}
	}
	return nil
}

// ApplyTransition moves the order to next if the transition table allows it.
// Reaching shipped or delivered stamps the matching timestamp once; a
// timestamp already set is never overwritten. updatedAt always refreshes.
func (o *Order) ApplyTransition(next OrderStatus, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return &InvalidStatusTransitionError{From: o.Status, To: next}
	}

	o.Status = next
	switch next {
	case StatusShipped:
		if o.ShippedAt.IsZero() {
			o.ShippedAt = now
		}
	case StatusDelivered:
		if o.DeliveredAt.IsZero() {
			o.DeliveredAt = now
		}
	}
	o.UpdatedAt = now
	return nil
}
