package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/valenciashop/valencia/internal/db"
	"github.com/valenciashop/valencia/internal/logging"
	"github.com/valenciashop/valencia/internal/models"
	"github.com/valenciashop/valencia/internal/observability"
)

// OrderService advances orders through their lifecycle and records gateway
// verdicts. Transition legality is decided by the aggregate; this layer
// adds persistence and notifications.
type OrderService struct {
	store    orderStore
	notifier OrderNotifier
	logger   *slog.Logger
}

type orderStore interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filter db.OrderFilter) ([]*models.Order, error)
	Count(ctx context.Context, filter db.OrderFilter) (int, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, next models.OrderStatus) (*models.Order, error)
	UpdatePayment(ctx context.Context, orderID uuid.UUID, status models.PaymentStatus, transactionID string) error
	GetPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
}

func NewOrderService(store orderStore, notifier OrderNotifier, logger *slog.Logger) *OrderService {
	if notifier == nil {
		notifier = noopOrderNotifier{}
	}
	return &OrderService{store: store, notifier: notifier, logger: logger}
}

func (s *OrderService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.store.GetByID(ctx, orderID)
}

func (s *OrderService) GetPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	return s.store.GetPayment(ctx, orderID)
}

func (s *OrderService) List(ctx context.Context, filter db.OrderFilter) ([]*models.Order, int, error) {
	orders, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus applies one transition and fires the matching notification.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, next models.OrderStatus) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.update_status",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("UpdateStatus"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	meter := observability.MeterFromContext(ctx)

	order, err := s.store.UpdateStatus(ctx, orderID, next)
	if err != nil {
		meter.Count("order.status.rejected", 1, sentry.WithAttributes(
			attribute.String("requested", string(next)),
		))
		return nil, err
	}
	meter.Count("order.status.updated", 1, sentry.WithAttributes(
		attribute.String("status", string(next)),
	))

	if next == models.StatusShipped {
		s.notifyShipped(order)
	}
	return order, nil
}

// ConfirmPayment records the gateway's asynchronous verdict. Success
// advances pending orders through processing to paid; failure marks the
// payment row and leaves the order pending for a retry.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID uuid.UUID, transactionID string, succeeded bool) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.confirm_payment",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("ConfirmPayment"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !succeeded {
		if err := s.store.UpdatePayment(ctx, orderID, models.PaymentStatusFailed, transactionID); err != nil {
			return nil, fmt.Errorf("failed to record payment failure: %w", err)
		}
		meter.Count("payment.failed", 1)
		logger.Info("payment failed, order stays pending", "order_id", orderID, "transaction_id", transactionID)
		return order, nil
	}

	// The transition table has no pending -> paid edge; a confirmed payment
	// walks pending -> processing -> paid.
	if order.Status == models.StatusPending {
		if order, err = s.store.UpdateStatus(ctx, orderID, models.StatusProcessing); err != nil {
			return nil, err
		}
	}
	if order.Status == models.StatusProcessing {
		if order, err = s.store.UpdateStatus(ctx, orderID, models.StatusPaid); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdatePayment(ctx, orderID, models.PaymentStatusSucceeded, transactionID); err != nil {
		return nil, fmt.Errorf("failed to record payment success: %w", err)
	}
	meter.Count("payment.succeeded", 1)

	s.notifyConfirmed(order)
	return order, nil
}

func (s *OrderService) notifyShipped(order *models.Order) {
	go func() {
		if err := s.notifier.OrderShipped(context.Background(), order); err != nil {
			s.logger.Warn("failed to send shipment notification", "error", err, "order_id", order.ID)
		}
	}()
}

func (s *OrderService) notifyConfirmed(order *models.Order) {
	go func() {
		if err := s.notifier.OrderConfirmation(context.Background(), order); err != nil {
			s.logger.Warn("failed to send order confirmation", "error", err, "order_id", order.ID)
		}
	}()
}
