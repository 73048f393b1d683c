// Package gateway wraps the online payment provider. Only the online
// checkout flow touches it; the gateway's asynchronous confirmation arrives
// later and is recorded by the order service.
package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
)

// Client creates hosted checkout sessions for orders awaiting online
// payment.
type Client struct {
	client     *stripe.Client
	successURL string
	cancelURL  string
}

func NewClient(secretKey, successURL, cancelURL string) *Client {
	return &Client{
		client:     stripe.NewClient(secretKey),
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

type LineItem struct {
	Name           string
	UnitAmountCent int64
	Quantity       int64
}

type CheckoutParams struct {
	OrderID       uuid.UUID
	OrderNumber   string
	Currency      string
	Lines         []LineItem
	TaxCents      int64
	ShippingCents int64
}

// Session is the redirect reference handed back to the customer.
type Session struct {
	ID  string
	URL string
}

// CreateCheckoutSession builds a payment session for an already-persisted
// order. The order stays pending until the gateway confirms asynchronously.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*Session, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if len(params.Lines) == 0 {
		return nil, fmt.Errorf("at least one line item is required")
	}

	lineItems := make([]*stripe.CheckoutSessionCreateLineItemParams, 0, len(params.Lines)+1)
	for _, line := range params.Lines {
		quantity := line.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency: stripe.String(params.Currency),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Name),
				},
				UnitAmount: stripe.Int64(line.UnitAmountCent),
			},
			Quantity: stripe.Int64(quantity),
		})
	}
	if params.TaxCents > 0 {
		lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency: stripe.String(params.Currency),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String("Tax"),
				},
				UnitAmount: stripe.Int64(params.TaxCents),
			},
			Quantity: stripe.Int64(1),
		})
	}

	sessionParams := &stripe.CheckoutSessionCreateParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(c.successURL),
		CancelURL:          stripe.String(c.cancelURL),
		LineItems:          lineItems,
		Metadata: map[string]string{
			"order_id":     params.OrderID.String(),
			"order_number": params.OrderNumber,
		},
	}
	if params.ShippingCents > 0 {
		sessionParams.ShippingOptions = []*stripe.CheckoutSessionCreateShippingOptionParams{
			{
				ShippingRateData: &stripe.CheckoutSessionCreateShippingOptionShippingRateDataParams{
					DisplayName: stripe.String("Shipping"),
					Type:        stripe.String(string(stripe.ShippingRateTypeFixedAmount)),
					FixedAmount: &stripe.CheckoutSessionCreateShippingOptionShippingRateDataFixedAmountParams{
						Amount:   stripe.Int64(params.ShippingCents),
						Currency: stripe.String(params.Currency),
					},
				},
			},
		}
	}

	sess, err := c.client.V1CheckoutSessions.Create(ctx, sessionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &Session{ID: sess.ID, URL: sess.URL}, nil
}
