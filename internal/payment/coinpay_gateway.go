package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/inkwave/commerce-api/internal/models"
)

// CoinpayGateway initiates crypto payments against the CoinPay processor.
// Requests are JSON bodies signed with HMAC-SHA256 over the raw payload;
// CoinPay verifies the signature with the shared request key.
type CoinpayGateway struct {
	apiURL     string
	merchantID string
	requestKey []byte
	baseURL    string
	client     *http.Client
	logger     *slog.Logger
}

// NewCoinpayGateway creates a CoinPay gateway.
func NewCoinpayGateway(apiURL, merchantID string, requestKey []byte, baseURL string, logger *slog.Logger) *CoinpayGateway {
	return &CoinpayGateway{
		apiURL:     apiURL,
		merchantID: merchantID,
		requestKey: requestKey,
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

type coinpayCreateRequest struct {
	MerchantID  string `json:"merchant_id"`
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	SuccessURL  string `json:"success_url"`
	CancelURL   string `json:"cancel_url"`
}

type coinpayCreateResponse struct {
	TransactionID string `json:"transaction_id"`
	PaymentURL    string `json:"payment_url"`
}

func (g *CoinpayGateway) Initiate(ctx context.Context, order *models.Order, description string) (*InitiateResult, error) {
	body, err := json.Marshal(coinpayCreateRequest{
		MerchantID:  g.merchantID,
		OrderID:     order.ID,
		AmountCents: order.TotalCents,
		Currency:    "USD",
		Description: description,
		SuccessURL:  fmt.Sprintf("%s/purchase/complete?order_id=%s", g.baseURL, order.ID),
		CancelURL:   fmt.Sprintf("%s/purchase/cancelled?order_id=%s", g.baseURL, order.ID),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+"/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Coinpay-Merchant", g.merchantID)
	req.Header.Set("X-Coinpay-Signature", Sign(g.requestKey, body))

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("coinpay request failed", "order_id", order.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		g.logger.Error("coinpay rejected transaction", "order_id", order.ID, "status", resp.StatusCode, "body", string(snippet))
		return nil, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var created coinpayCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
	}
	if created.TransactionID == "" || created.PaymentURL == "" {
		return nil, fmt.Errorf("%w: incomplete response", ErrGatewayUnavailable)
	}

	return &InitiateResult{
		ExternalTxID: created.TransactionID,
		PaymentURL:   created.PaymentURL,
	}, nil
}

// Sign computes the hex HMAC-SHA256 of payload under key. Shared between the
// outgoing request path and callback verification.
func Sign(key, payload []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether sig is a valid signature over payload.
// Comparison is constant-time.
func VerifySignature(key, payload []byte, sig string) bool {
	expected, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expected)
}
