package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"

	"github.com/inkwave/commerce-api/internal/service"
)

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"insufficient balance", service.ErrInsufficientBalance, http.StatusPaymentRequired},
		{"invalid amount", service.ErrInvalidAmount, http.StatusBadRequest},
		{"unknown package", service.ErrUnknownPackage, http.StatusNotFound},
		{"order not found", service.ErrOrderNotFound, http.StatusNotFound},
		{"not cancellable", service.ErrNotCancellable, http.StatusConflict},
		{"duplicate payment", service.ErrDuplicatePayment, http.StatusConflict},
		{"cash only package", service.ErrCoinPriceUnavailable, http.StatusConflict},
		{"gateway down", service.ErrGatewayUnavailable, http.StatusBadGateway},
		{"unknown error", errors.New("something broke"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapServiceError(tt.err)
			var statusErr huma.StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected StatusError, got %T", err)
			}
			if statusErr.GetStatus() != tt.wantStatus {
				t.Errorf("status = %d, want %d", statusErr.GetStatus(), tt.wantStatus)
			}
		})
	}
}

func TestMapServiceErrorVoucherRejected(t *testing.T) {
	eval := &service.Evaluation{Valid: false, Outcome: service.EvalExpired}
	err := mapServiceError(&service.VoucherRejectedError{Evaluation: eval})

	var voucherErr *VoucherError
	if !errors.As(err, &voucherErr) {
		t.Fatalf("expected VoucherError, got %T", err)
	}
	if voucherErr.GetStatus() != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", voucherErr.GetStatus())
	}
	if voucherErr.Evaluation != eval {
		t.Error("evaluation not carried through")
	}
}

func TestMapServiceErrorHidesInternals(t *testing.T) {
	err := mapServiceError(errors.New("dsn postgres://secret@host"))
	if got := err.Error(); got != "internal error" {
		t.Errorf("detail = %q, want generic message", got)
	}
}

func TestIsPermanentSettlementError(t *testing.T) {
	if !isPermanentSettlementError(service.ErrOrderNotFound) {
		t.Error("unknown order must not be retried by the gateway")
	}
	if !isPermanentSettlementError(fmt.Errorf("settle: %w", service.ErrSettlementMismatch)) {
		t.Error("mismatched settlement must not be retried by the gateway")
	}
	if isPermanentSettlementError(errors.New("database is locked")) {
		t.Error("transient failures must surface as retryable")
	}
}
