package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/inkwave/commerce-api/internal/config"
	"github.com/inkwave/commerce-api/internal/service"
)

// StripeWebhookHandler handles Stripe webhook events.
type StripeWebhookHandler struct {
	cfg      *config.Config
	orderSvc *service.OrderService
	logger   *slog.Logger
}

// NewStripeWebhookHandler creates a new Stripe webhook handler.
func NewStripeWebhookHandler(cfg *config.Config, orderSvc *service.OrderService, logger *slog.Logger) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		cfg:      cfg,
		orderSvc: orderSvc,
		logger:   logger,
	}
}

// HandleWebhook processes incoming Stripe webhooks. This is a raw HTTP
// handler because signature verification needs the exact request bytes.
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodySize = 65536 // 64KB

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sigHeader, h.cfg.StripeWebhookSecret)
	if err != nil {
		h.logger.Error("failed to verify webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	if err := h.handleEvent(r.Context(), event); err != nil {
		h.logger.Error("failed to handle webhook event", "type", event.Type, "error", err)
		if isPermanentSettlementError(err) {
			// Retrying a bad reference cannot succeed; ack so Stripe stops.
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "settlement failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleEvent routes events to appropriate handlers.
func (h *StripeWebhookHandler) handleEvent(ctx context.Context, event stripe.Event) error {
	h.logger.Info("received Stripe webhook", "type", event.Type, "id", event.ID)

	switch event.Type {
	case "checkout.session.completed":
		return h.handleCheckoutComplete(ctx, event)

	case "checkout.session.expired":
		return h.handleCheckoutExpired(ctx, event)

	case "charge.refunded":
		return h.handleChargeRefunded(ctx, event)

	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		return nil
	}
}

// handleCheckoutComplete settles the order named in the session metadata.
func (h *StripeWebhookHandler) handleCheckoutComplete(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	orderID, ok := session.Metadata["order_id"]
	if !ok || orderID == "" {
		h.logger.Warn("checkout session missing order_id", "session_id", session.ID)
		return nil
	}

	if err := h.orderSvc.MarkCompleted(ctx, orderID, session.ID, "stripe"); err != nil {
		return fmt.Errorf("failed to settle order: %w", err)
	}

	h.logger.Info("order settled", "order_id", orderID, "session_id", session.ID)
	return nil
}

// handleCheckoutExpired fails the order when the Checkout session lapses
// unpaid, releasing any voucher hold early.
func (h *StripeWebhookHandler) handleCheckoutExpired(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	orderID, ok := session.Metadata["order_id"]
	if !ok || orderID == "" {
		return nil
	}

	if err := h.orderSvc.MarkFailed(ctx, orderID, service.FailureExpired, "stripe"); err != nil {
		return fmt.Errorf("failed to expire order: %w", err)
	}
	return nil
}

// handleChargeRefunded claws back the coins granted for the refunded
// payment. The charge inherits the order_id metadata from the payment
// intent set at checkout creation.
func (h *StripeWebhookHandler) handleChargeRefunded(ctx context.Context, event stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return fmt.Errorf("failed to unmarshal charge: %w", err)
	}

	orderID, ok := charge.Metadata["order_id"]
	if !ok || orderID == "" {
		h.logger.Warn("refunded charge missing order_id", "charge_id", charge.ID)
		return nil
	}

	if err := h.orderSvc.RefundOrder(ctx, orderID, "stripe"); err != nil {
		return fmt.Errorf("failed to process refund: %w", err)
	}

	h.logger.Info("refund processed", "order_id", orderID, "charge_id", charge.ID)
	return nil
}
