package handlers

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/inkwave/commerce-api/internal/config"
	"github.com/inkwave/commerce-api/internal/payment"
)

func newCoinpayHandler(key []byte) *CoinpayWebhookHandler {
	cfg := &config.Config{CoinpayCallbackKey: key}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCoinpayWebhookHandler(cfg, nil, logger)
}

func postCallback(t *testing.T, h *CoinpayWebhookHandler, body []byte, sig string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/coinpay", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set("X-Coinpay-Signature", sig)
	}
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)
	return rec
}

func TestCoinpayWebhookRejectsMissingSignature(t *testing.T) {
	h := newCoinpayHandler([]byte("callback-key"))
	body := []byte(`{"transaction_id":"tx_1","order_id":"ord_1","status":"completed"}`)

	rec := postCallback(t, h, body, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCoinpayWebhookRejectsBadSignature(t *testing.T) {
	h := newCoinpayHandler([]byte("callback-key"))
	body := []byte(`{"transaction_id":"tx_1","order_id":"ord_1","status":"completed"}`)
	sig := payment.Sign([]byte("wrong-key"), body)

	rec := postCallback(t, h, body, sig)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCoinpayWebhookRejectsTamperedBody(t *testing.T) {
	key := []byte("callback-key")
	h := newCoinpayHandler(key)
	sig := payment.Sign(key, []byte(`{"transaction_id":"tx_1","order_id":"ord_1","status":"completed"}`))
	tampered := []byte(`{"transaction_id":"tx_1","order_id":"ord_1","status":"refunded"}`)

	rec := postCallback(t, h, tampered, sig)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCoinpayWebhookRejectsInvalidJSON(t *testing.T) {
	key := []byte("callback-key")
	h := newCoinpayHandler(key)
	body := []byte("not json")
	sig := payment.Sign(key, body)

	rec := postCallback(t, h, body, sig)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCoinpayWebhookUnknownStatusStillAcks(t *testing.T) {
	key := []byte("callback-key")
	h := newCoinpayHandler(key)
	body := []byte(`{"transaction_id":"tx_1","order_id":"ord_1","status":"weird"}`)
	sig := payment.Sign(key, body)

	// Business-level failures must not trigger gateway retries.
	rec := postCallback(t, h, body, sig)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
