package models

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var allStatuses = []OrderStatus{
	StatusPending, StatusProcessing, StatusPaid, StatusShipped,
	StatusDelivered, StatusCancelled, StatusRefunded,
}

func legalEdges() map[OrderStatus][]OrderStatus {
	return map[OrderStatus][]OrderStatus{
		StatusPending:    {StatusProcessing, StatusCancelled},
		StatusProcessing: {StatusPaid, StatusCancelled},
		StatusPaid:       {StatusShipped, StatusRefunded},
		StatusShipped:    {StatusDelivered, StatusRefunded},
		StatusDelivered:  {StatusRefunded},
		StatusCancelled:  {},
		StatusRefunded:   {},
	}
}

func TestCanTransitionToExhaustive(t *testing.T) {
	t.Parallel()

	edges := legalEdges()
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := false
			for _, allowed := range edges[from] {
				if allowed == to {
					want = true
				}
			}
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestApplyTransitionRejectsIllegalEdges(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	edges := legalEdges()
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			legal := false
			for _, allowed := range edges[from] {
				if allowed == to {
					legal = true
				}
			}
			if legal {
				continue
			}

			order := &Order{Status: from, UpdatedAt: now.Add(-time.Hour)}
			err := order.ApplyTransition(to, now)

			var transitionErr *InvalidStatusTransitionError
			if !errors.As(err, &transitionErr) {
				t.Fatalf("ApplyTransition(%s -> %s) error = %v, want InvalidStatusTransitionError", from, to, err)
			}
			if transitionErr.From != from || transitionErr.To != to {
				t.Errorf("error names %s -> %s, want %s -> %s", transitionErr.From, transitionErr.To, from, to)
			}
			if order.Status != from {
				t.Errorf("status mutated to %s after rejected transition", order.Status)
			}
			if !order.ShippedAt.IsZero() || !order.DeliveredAt.IsZero() {
				t.Error("timestamps stamped after rejected transition")
			}
			if !order.UpdatedAt.Equal(now.Add(-time.Hour)) {
				t.Error("updatedAt refreshed after rejected transition")
			}
		}
	}
}

func TestApplyTransitionStampsTimestamps(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	order := &Order{Status: StatusPaid}
	if err := order.ApplyTransition(StatusShipped, now); err != nil {
		t.Fatalf("paid -> shipped: %v", err)
	}
	if !order.ShippedAt.Equal(now) {
		t.Fatalf("shippedAt = %v, want %v", order.ShippedAt, now)
	}
	if !order.UpdatedAt.Equal(now) {
		t.Fatalf("updatedAt = %v, want %v", order.UpdatedAt, now)
	}

	later := now.Add(2 * time.Hour)
	if err := order.ApplyTransition(StatusDelivered, later); err != nil {
		t.Fatalf("shipped -> delivered: %v", err)
	}
	if !order.DeliveredAt.Equal(later) {
		t.Fatalf("deliveredAt = %v, want %v", order.DeliveredAt, later)
	}
	if !order.ShippedAt.Equal(now) {
		t.Fatalf("shippedAt moved to %v after delivery", order.ShippedAt)
	}
}

func TestApplyTransitionTimestampsAreSticky(t *testing.T) {
	t.Parallel()

	// Not reachable through the current table, but the rule must hold if the
	// table is ever extended: an already-stamped timestamp stays put.
	stamped := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	now := stamped.Add(48 * time.Hour)
	order := &Order{Status: StatusPaid, ShippedAt: stamped}

	if err := order.ApplyTransition(StatusShipped, now); err != nil {
		t.Fatalf("paid -> shipped: %v", err)
	}
	if !order.ShippedAt.Equal(stamped) {
		t.Fatalf("shippedAt moved from %v to %v", stamped, order.ShippedAt)
	}
	if !order.UpdatedAt.Equal(now) {
		t.Fatalf("updatedAt = %v, want %v", order.UpdatedAt, now)
	}
}

func TestDerivedPredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    OrderStatus
		canCancel bool
		canRefund bool
		isFinal   bool
		isPaid    bool
	}{
		{StatusPending, true, false, false, false},
		{StatusProcessing, true, false, false, false},
		{StatusPaid, false, true, false, true},
		{StatusShipped, false, true, false, true},
		{StatusDelivered, false, true, true, true},
		{StatusCancelled, false, false, true, false},
		{StatusRefunded, false, false, false, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(string(tc.status), func(t *testing.T) {
			t.Parallel()

			order := &Order{Status: tc.status}
			if got := order.CanCancel(); got != tc.canCancel {
				t.Errorf("CanCancel() = %v, want %v", got, tc.canCancel)
			}
			if got := order.CanRefund(); got != tc.canRefund {
				t.Errorf("CanRefund() = %v, want %v", got, tc.canRefund)
			}
			if got := order.IsFinalState(); got != tc.isFinal {
				t.Errorf("IsFinalState() = %v, want %v", got, tc.isFinal)
			}
			if got := order.IsPaid(); got != tc.isPaid {
				t.Errorf("IsPaid() = %v, want %v", got, tc.isPaid)
			}
		})
	}
}

func TestIsPaidFromTimestamp(t *testing.T) {
	t.Parallel()

	order := &Order{Status: StatusPending, PaidAt: time.Now()}
	if !order.IsPaid() {
		t.Fatal("IsPaid() = false with paidAt set")
	}
}

func TestValidateTotal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subtotal string
		tax      string
		shipping string
		total    string
		wantErr  bool
	}{
		{"exact match", "59.98", "4.80", "5.00", "69.78", false},
		{"zero everything", "0", "0", "0", "0", false},
		{"differing scale still equal", "59.98", "4.8", "5", "69.78", false},
		{"off by a cent", "59.98", "4.80", "5.00", "69.79", true},
		{"client inflated total", "59.98", "4.80", "5.00", "100.00", true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			order := &Order{
				Subtotal:     decimal.RequireFromString(tc.subtotal),
				Tax:          decimal.RequireFromString(tc.tax),
				ShippingCost: decimal.RequireFromString(tc.shipping),
				TotalAmount:  decimal.RequireFromString(tc.total),
			}
			err := order.ValidateTotal()
			if tc.wantErr {
				var mismatch *OrderTotalMismatchError
				if !errors.As(err, &mismatch) {
					t.Fatalf("ValidateTotal() = %v, want OrderTotalMismatchError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateTotal() = %v, want nil", err)
			}
		})
	}
}

func TestTotalItems(t *testing.T) {
	t.Parallel()

	order := &Order{Items: []OrderItem{{Quantity: 1}, {Quantity: 3}, {Quantity: 2}}}
	if got := order.TotalItems(); got != 6 {
		t.Fatalf("TotalItems() = %d, want 6", got)
	}
	if got := (&Order{}).TotalItems(); got != 0 {
		t.Fatalf("TotalItems() on empty order = %d, want 0", got)
	}
}
