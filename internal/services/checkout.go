package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/valenciashop/valencia/internal/catalog"
	"github.com/valenciashop/valencia/internal/db"
	"github.com/valenciashop/valencia/internal/gateway"
	"github.com/valenciashop/valencia/internal/logging"
	"github.com/valenciashop/valencia/internal/models"
	"github.com/valenciashop/valencia/internal/money"
	"github.com/valenciashop/valencia/internal/observability"
)

var ErrAddressNotOwned = errors.New("address does not belong to the requesting user")
var ErrGatewayUnavailable = errors.New("online payments are not configured")
var ErrInvalidDiscount = errors.New("discount must be between zero and the subtotal")

// CheckoutService turns a validated cart into a consistent order: every
// sale decrement and the order, item and payment rows commit in one
// transaction, or none of them do.
type CheckoutService struct {
	store     checkoutStore
	products  productCatalog
	customers addressResolver
	gateway   paymentGateway
	pricing   *catalog.Pricing
	notifier  OrderNotifier
	validate  *validator.Validate
	logger    *slog.Logger
}

type checkoutStore interface {
	CreateWithStock(ctx context.Context, order *models.Order, decrements []db.StockDecrement, currency string) (*models.Order, error)
	UpdatePayment(ctx context.Context, orderID uuid.UUID, status models.PaymentStatus, transactionID string) error
}

type productCatalog interface {
	Product(ctx context.Context, productID uuid.UUID) (*catalog.ProductSnapshot, error)
	VerifyVariant(ctx context.Context, productID, variantID uuid.UUID) error
}

type addressResolver interface {
	AddressBelongsToUser(ctx context.Context, addressID, userID uuid.UUID) (bool, error)
}

type paymentGateway interface {
	CreateCheckoutSession(ctx context.Context, params gateway.CheckoutParams) (*gateway.Session, error)
}

func NewCheckoutService(store checkoutStore, products productCatalog, customers addressResolver, gw paymentGateway, pricing *catalog.Pricing, notifier OrderNotifier, logger *slog.Logger) *CheckoutService {
	if notifier == nil {
		notifier = noopOrderNotifier{}
	}
	return &CheckoutService{
		store:     store,
		products:  products,
		customers: customers,
		gateway:   gw,
		pricing:   pricing,
		notifier:  notifier,
		validate:  validator.New(),
		logger:    logger,
	}
}

type CheckoutLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

type CheckoutInput struct {
	UserID            uuid.UUID            `json:"user_id" validate:"required"`
	ShippingAddressID uuid.UUID            `json:"shipping_address_id" validate:"required"`
	BillingAddressID  uuid.UUID            `json:"billing_address_id"`
	PaymentMethod     models.PaymentMethod `json:"payment_method" validate:"required,oneof=online cash_on_delivery"`
	// Discount is externally validated by the coupon collaborator and is
	// folded into the subtotal here; client totals are never trusted.
	Discount decimal.Decimal `json:"discount"`
	Lines    []CheckoutLine  `json:"lines" validate:"required,min=1,dive"`
}

type CheckoutResult struct {
	Order *models.Order `json:"order"`
	// PaymentURL is set for the online flow; the customer completes payment
	// there while the order stays pending.
	PaymentURL string `json:"payment_url,omitempty"`
}

func (s *CheckoutService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// PlaceOrder runs both checkout flows; they share everything up to the
// final gateway handoff.
func (s *CheckoutService) PlaceOrder(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.checkout.place_order",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("PlaceOrder"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("payment_method", string(input.PaymentMethod)))
	meter.Count("checkout.received", 1)

	if err := s.validate.Struct(input); err != nil {
		meter.Count("checkout.rejected", 1, sentry.WithAttributes(attribute.String("reason", "invalid_input")))
		return nil, fmt.Errorf("invalid checkout input: %w", err)
	}
	if input.PaymentMethod == models.PaymentMethodOnline && s.gateway == nil {
		meter.Count("checkout.rejected", 1, sentry.WithAttributes(attribute.String("reason", "gateway_unavailable")))
		return nil, ErrGatewayUnavailable
	}
	if input.BillingAddressID == uuid.Nil {
		input.BillingAddressID = input.ShippingAddressID
	}

	if err := s.verifyAddresses(ctx, input); err != nil {
		meter.Count("checkout.rejected", 1, sentry.WithAttributes(attribute.String("reason", "address_not_owned")))
		return nil, err
	}

	items, decrements, subtotal, err := s.priceLines(ctx, input.Lines)
	if err != nil {
		meter.Count("checkout.rejected", 1, sentry.WithAttributes(attribute.String("reason", "pricing_failed")))
		return nil, err
	}

	if input.Discount.IsNegative() || input.Discount.GreaterThan(subtotal) {
		meter.Count("checkout.rejected", 1, sentry.WithAttributes(attribute.String("reason", "invalid_discount")))
		return nil, ErrInvalidDiscount
	}
	subtotal = subtotal.Sub(input.Discount)

	tax := s.pricing.Tax(subtotal)
	shipping := s.pricing.Shipping(subtotal)

	order := &models.Order{
		UserID:            input.UserID,
		Status:            models.StatusPending,
		Items:             items,
		Subtotal:          subtotal,
		Tax:               tax,
		ShippingCost:      shipping,
		TotalAmount:       money.Sum(subtotal, tax, shipping),
		ShippingAddressID: input.ShippingAddressID,
		BillingAddressID:  input.BillingAddressID,
		PaymentMethod:     input.PaymentMethod,
	}

	created, err := s.store.CreateWithStock(ctx, order, decrements, s.pricing.Currency)
	if err != nil {
		var stockErr *models.InsufficientStockError
		if errors.As(err, &stockErr) {
			meter.Count("checkout.insufficient_stock", 1)
			return nil, fmt.Errorf("checkout aborted: %w", err)
		}
		meter.Count("checkout.failed", 1, sentry.WithAttributes(attribute.String("reason", "order_create_failed")))
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	meter.Count("order.created", 1)

	result := &CheckoutResult{Order: created}

	if input.PaymentMethod == models.PaymentMethodCashOnDelivery {
		s.notifyConfirmation(created)
		meter.Count("checkout.succeeded", 1)
		return result, nil
	}

	// Online flow: the order and its stock reservation are already
	// committed. A gateway hiccup is an operational problem, not a
	// rollback; the customer can be re-issued a payment link.
	session, err := s.gateway.CreateCheckoutSession(ctx, s.sessionParams(created))
	if err != nil {
		meter.Count("checkout.session_failed", 1)
		logger.Error("failed to create payment session", "error", err, "order_id", created.ID, "order_number", created.OrderNumber)
		return result, nil
	}
	if err := s.store.UpdatePayment(ctx, created.ID, models.PaymentStatusPending, session.ID); err != nil {
		logger.Error("failed to record payment session", "error", err, "order_id", created.ID)
	}

	result.PaymentURL = session.URL
	meter.Count("checkout.succeeded", 1)
	return result, nil
}

func (s *CheckoutService) verifyAddresses(ctx context.Context, input CheckoutInput) error {
	for _, addressID := range []uuid.UUID{input.ShippingAddressID, input.BillingAddressID} {
		owned, err := s.customers.AddressBelongsToUser(ctx, addressID, input.UserID)
		if err != nil {
			return fmt.Errorf("failed to verify address: %w", err)
		}
		if !owned {
			return fmt.Errorf("%w: %s", ErrAddressNotOwned, addressID)
		}
		if input.BillingAddressID == input.ShippingAddressID {
			break
		}
	}
	return nil
}

// priceLines snapshots name and price per line from the catalog and merges
// sale decrements per variant, so two lines for the same variant produce
// one ledger entry.
func (s *CheckoutService) priceLines(ctx context.Context, lines []CheckoutLine) ([]models.OrderItem, []db.StockDecrement, decimal.Decimal, error) {
	items := make([]models.OrderItem, 0, len(lines))
	var decrements []db.StockDecrement
	decrementIdx := make(map[uuid.UUID]int)
	subtotal := decimal.Zero

	for _, line := range lines {
		snapshot, err := s.products.Product(ctx, line.ProductID)
		if err != nil {
			return nil, nil, decimal.Zero, fmt.Errorf("failed to price line for product %s: %w", line.ProductID, err)
		}
		if err := s.products.VerifyVariant(ctx, line.ProductID, line.VariantID); err != nil {
			return nil, nil, decimal.Zero, err
		}

		lineTotal := money.Line(snapshot.Price, line.Quantity)
		items = append(items, models.OrderItem{
			ProductID:   line.ProductID,
			ProductName: snapshot.Name,
			Quantity:    line.Quantity,
			UnitPrice:   snapshot.Price,
			TotalPrice:  lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)

		if i, ok := decrementIdx[line.VariantID]; ok {
			decrements[i].Quantity += line.Quantity
		} else {
			decrementIdx[line.VariantID] = len(decrements)
			decrements = append(decrements, db.StockDecrement{VariantID: line.VariantID, Quantity: line.Quantity})
		}
	}

	return items, decrements, subtotal, nil
}

func (s *CheckoutService) sessionParams(order *models.Order) gateway.CheckoutParams {
	lines := make([]gateway.LineItem, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, gateway.LineItem{
			Name:           item.ProductName,
			UnitAmountCent: money.Cents(item.UnitPrice),
			Quantity:       int64(item.Quantity),
		})
	}
	return gateway.CheckoutParams{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Currency:      s.pricing.Currency,
		Lines:         lines,
		TaxCents:      money.Cents(order.Tax),
		ShippingCents: money.Cents(order.ShippingCost),
	}
}

func (s *CheckoutService) notifyConfirmation(order *models.Order) {
	go func() {
		ctx := context.Background()
		if err := s.notifier.OrderConfirmation(ctx, order); err != nil {
			s.logger.Warn("failed to send order confirmation", "error", err, "order_id", order.ID)
		}
	}()
}
