package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"

	"github.com/inkwave/commerce-api/internal/models"
)

// StripeGateway initiates card payments via Stripe Checkout.
type StripeGateway struct {
	baseURL string
	logger  *slog.Logger
}

// NewStripeGateway creates a Stripe gateway. The secret key is process-global
// in stripe-go, so it is set once here.
func NewStripeGateway(secretKey, baseURL string, logger *slog.Logger) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{baseURL: baseURL, logger: logger}
}

func (g *StripeGateway) Initiate(ctx context.Context, order *models.Order, description string) (*InitiateResult, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		Mode:   stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("usd"),
					UnitAmount: stripe.Int64(order.TotalCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(fmt.Sprintf("%s/purchase/complete?order_id=%s", g.baseURL, order.ID)),
		CancelURL:  stripe.String(fmt.Sprintf("%s/purchase/cancelled?order_id=%s", g.baseURL, order.ID)),
	}
	params.AddMetadata("order_id", order.ID)
	params.AddMetadata("user_id", order.UserID)
	// Mirror onto the PaymentIntent so charge events carry the order id too.
	params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
		Metadata: map[string]string{"order_id": order.ID, "user_id": order.UserID},
	}

	sess, err := session.New(params)
	if err != nil {
		g.logger.Error("stripe checkout session failed", "order_id", order.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	return &InitiateResult{
		ExternalTxID: sess.ID,
		PaymentURL:   sess.URL,
	}, nil
}
