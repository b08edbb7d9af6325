package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/inkwave/commerce-api/internal/config"
	"github.com/inkwave/commerce-api/internal/payment"
	"github.com/inkwave/commerce-api/internal/service"
)

// CoinpayWebhookHandler handles CoinPay settlement callbacks.
type CoinpayWebhookHandler struct {
	cfg      *config.Config
	orderSvc *service.OrderService
	logger   *slog.Logger
}

// NewCoinpayWebhookHandler creates a new CoinPay webhook handler.
func NewCoinpayWebhookHandler(cfg *config.Config, orderSvc *service.OrderService, logger *slog.Logger) *CoinpayWebhookHandler {
	return &CoinpayWebhookHandler{
		cfg:      cfg,
		orderSvc: orderSvc,
		logger:   logger,
	}
}

// CoinpayCallback is the callback body CoinPay posts on settlement.
type CoinpayCallback struct {
	TransactionID string `json:"transaction_id"`
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
}

// HandleWebhook processes incoming CoinPay callbacks. The body is verified
// against an HMAC signature over the raw payload.
func (h *CoinpayWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodySize = 65536 // 64KB

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	sig := r.Header.Get("X-Coinpay-Signature")
	if !payment.VerifySignature(h.cfg.CoinpayCallbackKey, payload, sig) {
		h.logger.Error("failed to verify webhook signature")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var callback CoinpayCallback
	if err := json.Unmarshal(payload, &callback); err != nil {
		h.logger.Error("failed to parse webhook payload", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := h.handleCallback(r.Context(), &callback); err != nil {
		h.logger.Error("failed to handle callback",
			"order_id", callback.OrderID,
			"status", callback.Status,
			"error", err,
		)
		if isPermanentSettlementError(err) {
			// Retrying a bad reference cannot succeed; ack so CoinPay stops.
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "settlement failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleCallback routes the callback by settlement status.
func (h *CoinpayWebhookHandler) handleCallback(ctx context.Context, cb *CoinpayCallback) error {
	h.logger.Info("received CoinPay callback",
		"order_id", cb.OrderID,
		"transaction_id", cb.TransactionID,
		"status", cb.Status,
	)

	switch cb.Status {
	case "completed":
		return h.orderSvc.MarkCompleted(ctx, cb.OrderID, cb.TransactionID, "coinpay")

	case "failed":
		return h.orderSvc.MarkFailed(ctx, cb.OrderID, service.FailureGateway, "coinpay")

	case "cancelled":
		return h.orderSvc.MarkFailed(ctx, cb.OrderID, service.FailureUserCancelled, "coinpay")

	case "refunded":
		return h.orderSvc.HandleRefund(ctx, cb.TransactionID, "coinpay")

	default:
		// Statuses this service does not settle on are acked so the
		// gateway does not redeliver them forever.
		h.logger.Warn("ignoring unknown callback status", "status", cb.Status)
		return nil
	}
}
