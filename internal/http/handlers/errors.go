package handlers

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/inkwave/commerce-api/internal/service"
)

// VoucherError carries the evaluation of a rejected voucher so clients can
// show the exact reason. Implements huma.StatusError.
type VoucherError struct {
	Status     int                 `json:"-"`
	Detail     string              `json:"detail"`
	Evaluation *service.Evaluation `json:"evaluation"`
}

func (e *VoucherError) Error() string {
	return e.Detail
}

func (e *VoucherError) GetStatus() int {
	return e.Status
}

// isPermanentSettlementError reports callback failures a gateway retry can
// never fix. Transient failures get a 5xx so the gateway redelivers the
// event and settlement is retried.
func isPermanentSettlementError(err error) bool {
	return errors.Is(err, service.ErrOrderNotFound) ||
		errors.Is(err, service.ErrSettlementMismatch)
}

// mapServiceError converts domain errors into HTTP errors. Anything not
// recognized becomes a 500 with a generic message; the real error stays in
// the server log.
func mapServiceError(err error) error {
	var rejected *service.VoucherRejectedError
	if errors.As(err, &rejected) {
		return &VoucherError{
			Status:     http.StatusUnprocessableEntity,
			Detail:     "voucher rejected: " + string(rejected.Evaluation.Outcome),
			Evaluation: rejected.Evaluation,
		}
	}

	switch {
	case errors.Is(err, service.ErrInsufficientBalance):
		return huma.NewError(http.StatusPaymentRequired, "insufficient coin balance")
	case errors.Is(err, service.ErrInvalidAmount):
		return huma.Error400BadRequest("coin amount must be positive")
	case errors.Is(err, service.ErrUnknownPackage):
		return huma.Error404NotFound("unknown package")
	case errors.Is(err, service.ErrOrderNotFound):
		return huma.Error404NotFound("order not found")
	case errors.Is(err, service.ErrNotCancellable):
		return huma.Error409Conflict("order is no longer pending")
	case errors.Is(err, service.ErrDuplicatePayment):
		return huma.Error409Conflict("payment already processed")
	case errors.Is(err, service.ErrCoinPriceUnavailable):
		return huma.Error409Conflict("package cannot be bought with coins")
	case errors.Is(err, service.ErrGatewayUnavailable):
		return huma.Error502BadGateway("payment gateway unavailable")
	default:
		return huma.Error500InternalServerError("internal error")
	}
}
