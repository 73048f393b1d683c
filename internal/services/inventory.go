package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/valenciashop/valencia/internal/db"
	"github.com/valenciashop/valencia/internal/models"
	"github.com/valenciashop/valencia/internal/observability"
)

var ErrReasonRequired = errors.New("a reason is required for manual stock changes")
var ErrSaleNotManual = errors.New("sale changes are recorded by checkout, not by hand")

// DefaultLowStockThreshold is used when a low-stock query does not name one.
const DefaultLowStockThreshold = 5

// InventoryService is the admin surface over the stock ledger. Sale
// decrements never enter through here; they are recorded by checkout
// inside the order transaction.
type InventoryService struct {
	store  inventoryStore
	logger *slog.Logger
}

type inventoryStore interface {
	RecordChange(ctx context.Context, variantID uuid.UUID, delta int, changeType models.ChangeType, reason, actor string) (*models.InventoryLogEntry, error)
	SetAbsolute(ctx context.Context, variantID uuid.UUID, quantity int, changeType models.ChangeType, reason, actor string) (*models.InventoryLogEntry, error)
	Logs(ctx context.Context, filter db.LogFilter) ([]*models.InventoryLogEntry, error)
	LowStock(ctx context.Context, threshold int) ([]*models.ProductVariant, error)
	ListAll(ctx context.Context) ([]*models.ProductVariant, error)
	GetVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error)
}

func NewInventoryService(store inventoryStore, logger *slog.Logger) *InventoryService {
	return &InventoryService{store: store, logger: logger}
}

// AdjustInput is one manual ledger entry: a signed delta with a named
// change type, a reason, and the admin who made it.
type AdjustInput struct {
	VariantID  uuid.UUID         `json:"variant_id"`
	Delta      int               `json:"delta"`
	ChangeType models.ChangeType `json:"change_type"`
	Reason     string            `json:"reason"`
	Actor      string            `json:"-"`
}

// Adjust applies a manual delta. Only the admin change types are accepted,
// and each requires a reason for the audit trail.
func (s *InventoryService) Adjust(ctx context.Context, input AdjustInput) (*models.InventoryLogEntry, error) {
	span := sentry.StartSpan(
		ctx,
		"service.inventory.adjust",
		sentry.WithOpName("service.inventory"),
		sentry.WithDescription("Adjust"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	if err := validateManualChange(input.ChangeType, input.Reason); err != nil {
		return nil, err
	}
	if input.Delta == 0 {
		return nil, fmt.Errorf("stock delta must not be zero")
	}

	entry, err := s.store.RecordChange(ctx, input.VariantID, input.Delta, input.ChangeType, input.Reason, input.Actor)
	if err != nil {
		return nil, err
	}

	observability.MeterFromContext(ctx).Count("inventory.adjusted", 1, sentry.WithAttributes(
		attribute.String("change_type", string(input.ChangeType)),
	))
	s.logger.Info("stock adjusted",
		"variant_id", input.VariantID,
		"change_type", input.ChangeType,
		"requested", input.Delta,
		"applied", entry.QuantityChange,
		"new_quantity", entry.NewQuantity,
		"actor", input.Actor,
	)
	return entry, nil
}

// SetInput names an absolute target quantity, used for physical counts.
type SetInput struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
	Actor     string    `json:"-"`
}

// SetStock moves a variant to an exact quantity, logged as an adjustment
// with the derived delta.
func (s *InventoryService) SetStock(ctx context.Context, input SetInput) (*models.InventoryLogEntry, error) {
	span := sentry.StartSpan(
		ctx,
		"service.inventory.set_stock",
		sentry.WithOpName("service.inventory"),
		sentry.WithDescription("SetStock"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	if input.Reason == "" {
		return nil, ErrReasonRequired
	}

	entry, err := s.store.SetAbsolute(ctx, input.VariantID, input.Quantity, models.ChangeAdjustment, input.Reason, input.Actor)
	if err != nil {
		return nil, err
	}

	observability.MeterFromContext(ctx).Count("inventory.adjusted", 1, sentry.WithAttributes(
		attribute.String("change_type", "adjustment"),
	))
	s.logger.Info("stock set",
		"variant_id", input.VariantID,
		"quantity", input.Quantity,
		"previous", entry.PreviousQuantity,
		"actor", input.Actor,
	)
	return entry, nil
}

func validateManualChange(changeType models.ChangeType, reason string) error {
	if changeType == models.ChangeSale {
		return ErrSaleNotManual
	}
	if !changeType.Valid() {
		return fmt.Errorf("unknown inventory change type: %s", changeType)
	}
	if changeType.RequiresReason() && reason == "" {
		return ErrReasonRequired
	}
	return nil
}

func (s *InventoryService) Logs(ctx context.Context, filter db.LogFilter) ([]*models.InventoryLogEntry, error) {
	return s.store.Logs(ctx, filter)
}

func (s *InventoryService) LowStock(ctx context.Context, threshold int) ([]*models.ProductVariant, error) {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return s.store.LowStock(ctx, threshold)
}

func (s *InventoryService) ListAll(ctx context.Context) ([]*models.ProductVariant, error) {
	return s.store.ListAll(ctx)
}

func (s *InventoryService) GetVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	return s.store.GetVariant(ctx, variantID)
}
