package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inkwave/commerce-api/internal/models"
)

func testOrder() *models.Order {
	return &models.Order{
		ID:            "order_1",
		UserID:        "user_1",
		Kind:          models.OrderKindCoins,
		PackageID:     "coins_reader",
		TotalCents:    499,
		PaymentMethod: models.PayMethodCrypto,
		Status:        models.OrderPending,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestCoinpayInitiate(t *testing.T) {
	key := []byte("request-key")

	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transactions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotSig = r.Header.Get("X-Coinpay-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"transaction_id": "cp_tx_42",
			"payment_url":    "https://pay.coinpay.test/cp_tx_42",
		})
	}))
	defer srv.Close()

	g := NewCoinpayGateway(srv.URL, "merchant_1", key, "https://inkwave.example", slog.Default())
	result, err := g.Initiate(context.Background(), testOrder(), "500 coins")
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if result.ExternalTxID != "cp_tx_42" {
		t.Errorf("expected cp_tx_42, got %s", result.ExternalTxID)
	}
	if result.PaymentURL != "https://pay.coinpay.test/cp_tx_42" {
		t.Errorf("unexpected payment url %s", result.PaymentURL)
	}

	// The request must be signed over the exact bytes sent.
	if !VerifySignature(key, gotBody, gotSig) {
		t.Error("request signature did not verify")
	}

	var req coinpayCreateRequest
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("bad request body: %v", err)
	}
	if req.MerchantID != "merchant_1" || req.OrderID != "order_1" || req.AmountCents != 499 {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestCoinpayInitiateRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "merchant suspended", http.StatusForbidden)
	}))
	defer srv.Close()

	g := NewCoinpayGateway(srv.URL, "merchant_1", []byte("key"), "https://inkwave.example", slog.Default())
	_, err := g.Initiate(context.Background(), testOrder(), "500 coins")
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	key := []byte("k1")
	payload := []byte(`{"a":1}`)

	sig := Sign(key, payload)
	if !VerifySignature(key, payload, sig) {
		t.Error("expected signature to verify")
	}
	if VerifySignature([]byte("k2"), payload, sig) {
		t.Error("signature verified under wrong key")
	}
	if VerifySignature(key, []byte(`{"a":2}`), sig) {
		t.Error("signature verified over different payload")
	}
	if VerifySignature(key, payload, "zz-not-hex") {
		t.Error("garbage signature verified")
	}
}
