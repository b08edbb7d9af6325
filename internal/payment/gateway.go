// Package payment integrates the external payment gateways. Gateways only
// initiate payments; settlement always arrives through signed webhooks.
package payment

import (
	"context"
	"errors"

	"github.com/inkwave/commerce-api/internal/models"
)

// ErrGatewayUnavailable is returned when a gateway is not configured or the
// initiation call failed. The order must not be persisted in that case.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// InitiateResult is what a gateway hands back for a new payment.
type InitiateResult struct {
	// ExternalTxID is the gateway's id for this payment. It becomes the
	// idempotency key for settlement callbacks.
	ExternalTxID string
	// PaymentURL is where the user completes the payment.
	PaymentURL string
}

// Gateway initiates an external payment for an order.
type Gateway interface {
	Initiate(ctx context.Context, order *models.Order, description string) (*InitiateResult, error)
}
