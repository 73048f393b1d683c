package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/valenciashop/valencia/internal/email"
	"github.com/valenciashop/valencia/internal/models"
)

// OrderNotifier observes order milestones. Implementations must never block
// or fail an order: notification errors are logged and dropped.
type OrderNotifier interface {
	OrderConfirmation(ctx context.Context, order *models.Order) error
	OrderShipped(ctx context.Context, order *models.Order) error
}

type noopOrderNotifier struct{}

func (noopOrderNotifier) OrderConfirmation(context.Context, *models.Order) error { return nil }
func (noopOrderNotifier) OrderShipped(context.Context, *models.Order) error      { return nil }

type recipientLookup interface {
	EmailForUser(ctx context.Context, userID uuid.UUID) (string, error)
}

// EmailOrderNotifier sends order confirmation and shipment emails through
// the configured email provider.
type EmailOrderNotifier struct {
	provider   email.Provider
	recipients recipientLookup
	logger     *slog.Logger
}

func NewEmailOrderNotifier(provider email.Provider, recipients recipientLookup, logger *slog.Logger) *EmailOrderNotifier {
	return &EmailOrderNotifier{provider: provider, recipients: recipients, logger: logger}
}

func (n *EmailOrderNotifier) OrderConfirmation(ctx context.Context, order *models.Order) error {
	to, err := n.recipients.EmailForUser(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}

	return n.provider.SendEmail(ctx, &email.Email{
		To:      to,
		Subject: fmt.Sprintf("Order %s confirmed", order.OrderNumber),
		Text: fmt.Sprintf("Thanks for your order!\n\nOrder %s\nItems: %d\nTotal: %s\n\nWe'll let you know when it ships.",
			order.OrderNumber, order.TotalItems(), order.TotalAmount),
	})
}

func (n *EmailOrderNotifier) OrderShipped(ctx context.Context, order *models.Order) error {
	to, err := n.recipients.EmailForUser(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}

	return n.provider.SendEmail(ctx, &email.Email{
		To:      to,
		Subject: fmt.Sprintf("Order %s shipped", order.OrderNumber),
		Text:    fmt.Sprintf("Your order %s is on its way.", order.OrderNumber),
	})
}
