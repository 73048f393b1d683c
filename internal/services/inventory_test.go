package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/valenciashop/valencia/internal/db"
	"github.com/valenciashop/valencia/internal/models"
)

type fakeInventoryStore struct {
	quantity int
	last     *models.InventoryLogEntry
}

func (f *fakeInventoryStore) RecordChange(_ context.Context, variantID uuid.UUID, delta int, changeType models.ChangeType, reason, actor string) (*models.InventoryLogEntry, error) {
	previous := f.quantity
	f.quantity += delta
	if f.quantity < 0 && changeType.ClampsAtZero() {
		f.quantity = 0
	}
	f.last = &models.InventoryLogEntry{
		VariantID:        variantID,
		ChangeType:       changeType,
		QuantityChange:   f.quantity - previous,
		PreviousQuantity: previous,
		NewQuantity:      f.quantity,
		Reason:           reason,
		CreatedBy:        actor,
	}
	return f.last, nil
}

func (f *fakeInventoryStore) SetAbsolute(_ context.Context, variantID uuid.UUID, quantity int, changeType models.ChangeType, reason, actor string) (*models.InventoryLogEntry, error) {
	previous := f.quantity
	f.quantity = quantity
	f.last = &models.InventoryLogEntry{
		VariantID:        variantID,
		ChangeType:       changeType,
		QuantityChange:   quantity - previous,
		PreviousQuantity: previous,
		NewQuantity:      quantity,
		Reason:           reason,
		CreatedBy:        actor,
	}
	return f.last, nil
}

func (f *fakeInventoryStore) Logs(context.Context, db.LogFilter) ([]*models.InventoryLogEntry, error) {
	return nil, nil
}

func (f *fakeInventoryStore) LowStock(context.Context, int) ([]*models.ProductVariant, error) {
	return nil, nil
}

func (f *fakeInventoryStore) ListAll(context.Context) ([]*models.ProductVariant, error) {
	return nil, nil
}

func (f *fakeInventoryStore) GetVariant(context.Context, uuid.UUID) (*models.ProductVariant, error) {
	return nil, db.ErrVariantNotFound
}

func TestAdjustValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   AdjustInput
		wantErr error
	}{
		{
			name:  "restock with reason",
			input: AdjustInput{Delta: 10, ChangeType: models.ChangeRestock, Reason: "weekly delivery"},
		},
		{
			name:  "damaged write-off",
			input: AdjustInput{Delta: -2, ChangeType: models.ChangeDamaged, Reason: "water damage"},
		},
		{
			name:    "reason required",
			input:   AdjustInput{Delta: 10, ChangeType: models.ChangeRestock},
			wantErr: ErrReasonRequired,
		},
		{
			name:    "sale is not manual",
			input:   AdjustInput{Delta: -1, ChangeType: models.ChangeSale, Reason: "oops"},
			wantErr: ErrSaleNotManual,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := &fakeInventoryStore{quantity: 20}
			svc := NewInventoryService(store, slog.Default())
			tc.input.VariantID = uuid.New()

			entry, err := svc.Adjust(context.Background(), tc.input)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Adjust() error = %v, want %v", err, tc.wantErr)
				}
				if store.last != nil {
					t.Error("a rejected adjustment reached the store")
				}
				return
			}
			if err != nil {
				t.Fatalf("Adjust() error = %v", err)
			}
			if entry.QuantityChange != tc.input.Delta {
				t.Errorf("QuantityChange = %d, want %d", entry.QuantityChange, tc.input.Delta)
			}
		})
	}
}

func TestAdjustRejectsUnknownTypeAndZeroDelta(t *testing.T) {
	t.Parallel()

	store := &fakeInventoryStore{quantity: 20}
	svc := NewInventoryService(store, slog.Default())

	if _, err := svc.Adjust(context.Background(), AdjustInput{
		VariantID: uuid.New(), Delta: 1, ChangeType: models.ChangeType("mystery"), Reason: "x",
	}); err == nil {
		t.Error("Adjust() error = nil, want rejection for unknown change type")
	}

	if _, err := svc.Adjust(context.Background(), AdjustInput{
		VariantID: uuid.New(), Delta: 0, ChangeType: models.ChangeRestock, Reason: "x",
	}); err == nil {
		t.Error("Adjust() error = nil, want rejection for zero delta")
	}
}

func TestSetStock(t *testing.T) {
	t.Parallel()

	store := &fakeInventoryStore{quantity: 7}
	svc := NewInventoryService(store, slog.Default())

	entry, err := svc.SetStock(context.Background(), SetInput{
		VariantID: uuid.New(),
		Quantity:  12,
		Reason:    "annual count",
		Actor:     "admin@valencia",
	})
	if err != nil {
		t.Fatalf("SetStock() error = %v", err)
	}
	if entry.ChangeType != models.ChangeAdjustment {
		t.Errorf("ChangeType = %s, want adjustment", entry.ChangeType)
	}
	if entry.QuantityChange != 5 {
		t.Errorf("QuantityChange = %d, want derived delta 5", entry.QuantityChange)
	}
	if entry.NewQuantity != 12 {
		t.Errorf("NewQuantity = %d, want 12", entry.NewQuantity)
	}
}

func TestSetStockRequiresReason(t *testing.T) {
	t.Parallel()

	store := &fakeInventoryStore{quantity: 7}
	svc := NewInventoryService(store, slog.Default())

	if _, err := svc.SetStock(context.Background(), SetInput{VariantID: uuid.New(), Quantity: 3}); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("SetStock() error = %v, want ErrReasonRequired", err)
	}
}

func TestLowStockDefaultThreshold(t *testing.T) {
	t.Parallel()

	svc := NewInventoryService(&fakeInventoryStore{}, slog.Default())
	if _, err := svc.LowStock(context.Background(), 0); err != nil {
		t.Fatalf("LowStock() error = %v", err)
	}
}
