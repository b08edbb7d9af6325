package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	svix "github.com/svix/svix-webhooks/go"

	"github.com/inkwave/commerce-api/internal/config"
	"github.com/inkwave/commerce-api/internal/service"
)

// AccountWebhookHandler handles account-platform webhook events: signup
// bonus grants on user creation and commerce-data erasure on deletion.
type AccountWebhookHandler struct {
	cfg        *config.Config
	accountSvc *service.AccountService
	logger     *slog.Logger
}

// NewAccountWebhookHandler creates a new account webhook handler.
func NewAccountWebhookHandler(cfg *config.Config, accountSvc *service.AccountService, logger *slog.Logger) *AccountWebhookHandler {
	return &AccountWebhookHandler{
		cfg:        cfg,
		accountSvc: accountSvc,
		logger:     logger,
	}
}

// AccountWebhookEvent represents an account platform event.
type AccountWebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// AccountUserData is the user payload carried by account events.
type AccountUserData struct {
	ID string `json:"id"`
}

// HandleWebhook processes incoming account webhooks, verified with Svix
// signatures.
func (h *AccountWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodySize = 65536 // 64KB

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	headers := http.Header{}
	headers.Set("svix-id", r.Header.Get("svix-id"))
	headers.Set("svix-timestamp", r.Header.Get("svix-timestamp"))
	headers.Set("svix-signature", r.Header.Get("svix-signature"))

	wh, err := svix.NewWebhook(h.cfg.AccountWebhookSecret)
	if err != nil {
		h.logger.Error("failed to create webhook verifier", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := wh.Verify(payload, headers); err != nil {
		h.logger.Error("failed to verify webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var event AccountWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("failed to parse webhook event", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := h.handleEvent(r.Context(), &event); err != nil {
		h.logger.Error("failed to handle webhook event", "type", event.Type, "error", err)
		// Return 200 to stop retries; the failure is logged.
		w.WriteHeader(http.StatusOK)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleEvent routes account events.
func (h *AccountWebhookHandler) handleEvent(ctx context.Context, event *AccountWebhookEvent) error {
	h.logger.Info("received account webhook", "type", event.Type)

	var user AccountUserData
	if err := json.Unmarshal(event.Data, &user); err != nil {
		return err
	}
	if user.ID == "" {
		h.logger.Warn("account event missing user id", "type", event.Type)
		return nil
	}

	switch event.Type {
	case "user.created":
		return h.accountSvc.HandleUserCreated(ctx, user.ID)

	case "user.deleted":
		return h.accountSvc.HandleUserDeleted(ctx, user.ID)

	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		return nil
	}
}
