package handlers

import (
	"context"

	"github.com/inkwave/commerce-api/internal/models"
	"github.com/inkwave/commerce-api/internal/service"
)

// VoucherHandler serves voucher evaluation for checkout previews.
type VoucherHandler struct {
	voucherSvc *service.VoucherService
}

// NewVoucherHandler creates a new voucher handler.
func NewVoucherHandler(voucherSvc *service.VoucherService) *VoucherHandler {
	return &VoucherHandler{voucherSvc: voucherSvc}
}

// EvaluateVoucherInput represents a voucher evaluation request.
type EvaluateVoucherInput struct {
	Body struct {
		Code      string `json:"code" minLength:"1" doc:"Voucher code, case-insensitive"`
		Purchase  string `json:"purchase" enum:"coins,membership,ebook" doc:"What the voucher is applied to"`
		BaseCents int64  `json:"base_cents" minimum:"1" doc:"Undiscounted price in cents"`
	}
}

// EvaluateVoucherOutput represents a voucher evaluation response.
type EvaluateVoucherOutput struct {
	Body service.Evaluation
}

// EvaluateVoucher previews a voucher against a purchase without consuming
// anything. Invalid vouchers return 200 with valid=false and the reason.
func (h *VoucherHandler) EvaluateVoucher(ctx context.Context, input *EvaluateVoucherInput) (*EvaluateVoucherOutput, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}

	eval, err := h.voucherSvc.Evaluate(ctx, input.Body.Code, models.PurchaseType(input.Body.Purchase), input.Body.BaseCents)
	if err != nil {
		return nil, mapServiceError(err)
	}

	return &EvaluateVoucherOutput{Body: *eval}, nil
}
