package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/inkwave/commerce-api/internal/models"
	"github.com/inkwave/commerce-api/internal/repository"
	"github.com/inkwave/commerce-api/internal/service"
)

// AdminHandler serves the back-office endpoints. All routes here are
// registered with the admin requirement, enforcement happens in the auth
// middleware.
type AdminHandler struct {
	ledgerSvc  *service.LedgerService
	voucherSvc *service.VoucherService
	catalogSvc *service.CatalogService
	orderSvc   *service.OrderService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(ledgerSvc *service.LedgerService, voucherSvc *service.VoucherService, catalogSvc *service.CatalogService, orderSvc *service.OrderService) *AdminHandler {
	return &AdminHandler{
		ledgerSvc:  ledgerSvc,
		voucherSvc: voucherSvc,
		catalogSvc: catalogSvc,
		orderSvc:   orderSvc,
	}
}

// GrantCoinsInput represents a manual coin grant.
type GrantCoinsInput struct {
	Body struct {
		UserID string `json:"user_id" minLength:"1"`
		Coins  int64  `json:"coins" minimum:"1"`
		Reason string `json:"reason" minLength:"1" doc:"Shown in the user's transaction history"`
	}
}

// GrantCoinsOutput represents the grant response.
type GrantCoinsOutput struct {
	Body struct {
		TransactionID string `json:"transaction_id"`
		CoinBalance   int64  `json:"coin_balance"`
	}
}

// GrantCoins credits coins to a user outside the normal purchase flow,
// for support compensation and promotions.
func (h *AdminHandler) GrantCoins(ctx context.Context, input *GrantCoinsInput) (*GrantCoinsOutput, error) {
	entry, err := h.ledgerSvc.AdminGrant(ctx, input.Body.UserID, input.Body.Coins, input.Body.Reason)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &GrantCoinsOutput{}
	out.Body.TransactionID = entry.ID
	out.Body.CoinBalance = entry.BalanceAfter
	return out, nil
}

// GetStatsOutput represents the platform stats response.
type GetStatsOutput struct {
	Body struct {
		Ledger repository.LedgerStats `json:"ledger"`
		Orders map[string]int         `json:"orders"`
	}
}

// GetStats returns ledger aggregates and order counts by status.
func (h *AdminHandler) GetStats(ctx context.Context, input *struct{}) (*GetStatsOutput, error) {
	stats, err := h.ledgerSvc.GetStats(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}
	counts, err := h.orderSvc.CountByStatus(ctx)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &GetStatsOutput{}
	out.Body.Ledger = *stats
	out.Body.Orders = make(map[string]int, len(counts))
	for status, n := range counts {
		out.Body.Orders[string(status)] = n
	}
	return out, nil
}

// ReconcileUserInput represents a balance reconciliation request.
type ReconcileUserInput struct {
	UserID string `path:"user_id"`
}

// ReconcileUserOutput represents the reconciliation report.
type ReconcileUserOutput struct {
	Body struct {
		UserID   string `json:"user_id"`
		Stored   int64  `json:"stored"`
		Derived  int64  `json:"derived"`
		Balanced bool   `json:"balanced"`
	}
}

// ReconcileUser compares a user's stored balance against the sum of their
// ledger entries.
func (h *AdminHandler) ReconcileUser(ctx context.Context, input *ReconcileUserInput) (*ReconcileUserOutput, error) {
	stored, derived, err := h.ledgerSvc.Reconcile(ctx, input.UserID)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &ReconcileUserOutput{}
	out.Body.UserID = input.UserID
	out.Body.Stored = stored
	out.Body.Derived = derived
	out.Body.Balanced = stored == derived
	return out, nil
}

// ListVouchersInput represents the voucher list request.
type ListVouchersInput struct {
	IncludeInactive bool `query:"include_inactive" default:"false"`
}

// ListVouchersOutput represents the voucher list response.
type ListVouchersOutput struct {
	Body struct {
		Vouchers []*models.Voucher `json:"vouchers"`
	}
}

// ListVouchers returns configured vouchers.
func (h *AdminHandler) ListVouchers(ctx context.Context, input *ListVouchersInput) (*ListVouchersOutput, error) {
	vouchers, err := h.voucherSvc.List(ctx, input.IncludeInactive)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &ListVouchersOutput{}
	out.Body.Vouchers = vouchers
	return out, nil
}

// UpsertVoucherInput represents a voucher create-or-update.
type UpsertVoucherInput struct {
	Body struct {
		Code          string     `json:"code" minLength:"1"`
		DiscountType  string     `json:"discount_type" enum:"percent,fixed"`
		DiscountValue int64      `json:"discount_value" minimum:"1"`
		AppliesTo     []string   `json:"applies_to" minItems:"1" doc:"Purchase types the code covers: coins, membership, ebook"`
		MinAmount     *int64     `json:"min_amount,omitempty" doc:"Minimum base price in cents"`
		MaxUses       *int64     `json:"max_uses,omitempty"`
		ExpiresAt     *time.Time `json:"expires_at,omitempty"`
		Active        bool       `json:"active" default:"true"`
	}
}

// UpsertVoucherOutput represents the voucher upsert response.
type UpsertVoucherOutput struct {
	Body models.Voucher
}

// UpsertVoucher creates or replaces a voucher. Codes are normalized to
// uppercase; the used count of an existing code is preserved.
func (h *AdminHandler) UpsertVoucher(ctx context.Context, input *UpsertVoucherInput) (*UpsertVoucherOutput, error) {
	applies := make([]models.PurchaseType, 0, len(input.Body.AppliesTo))
	for _, t := range input.Body.AppliesTo {
		applies = append(applies, models.PurchaseType(t))
	}

	voucher := &models.Voucher{
		Code:          input.Body.Code,
		DiscountType:  models.DiscountType(input.Body.DiscountType),
		DiscountValue: input.Body.DiscountValue,
		AppliesTo:     applies,
		MinAmount:     input.Body.MinAmount,
		MaxUses:       input.Body.MaxUses,
		ExpiresAt:     input.Body.ExpiresAt,
		Active:        input.Body.Active,
	}
	if err := h.voucherSvc.Upsert(ctx, voucher); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	return &UpsertVoucherOutput{Body: *voucher}, nil
}

// DeleteVoucherInput represents a voucher deletion.
type DeleteVoucherInput struct {
	Code string `path:"code"`
}

// DeleteVoucher removes a voucher. Committed reservations keep their
// redemption history.
func (h *AdminHandler) DeleteVoucher(ctx context.Context, input *DeleteVoucherInput) (*struct{}, error) {
	if err := h.voucherSvc.Delete(ctx, input.Code); err != nil {
		return nil, mapServiceError(err)
	}
	return &struct{}{}, nil
}

// UpsertCoinPackageInput represents a coin package create-or-update.
type UpsertCoinPackageInput struct {
	Body struct {
		ID                string `json:"id" minLength:"1"`
		Name              string `json:"name" minLength:"1"`
		Coins             int64  `json:"coins" minimum:"1"`
		BonusCoins        int64  `json:"bonus_coins,omitempty" minimum:"0"`
		PriceCents        int64  `json:"price_cents" minimum:"1"`
		GimmickPriceCents *int64 `json:"gimmick_price_cents,omitempty"`
		DiscountPercent   int64  `json:"discount_percent,omitempty" minimum:"0" maximum:"100"`
		Active            bool   `json:"active" default:"true"`
	}
}

// UpsertCoinPackageOutput represents the coin package upsert response.
type UpsertCoinPackageOutput struct {
	Body CoinPackageDTO
}

// UpsertCoinPackage creates or replaces a coin package in the store catalog.
func (h *AdminHandler) UpsertCoinPackage(ctx context.Context, input *UpsertCoinPackageInput) (*UpsertCoinPackageOutput, error) {
	pkg := &models.CoinPackage{
		ID:                input.Body.ID,
		Name:              input.Body.Name,
		Coins:             input.Body.Coins,
		BonusCoins:        input.Body.BonusCoins,
		PriceCents:        input.Body.PriceCents,
		GimmickPriceCents: input.Body.GimmickPriceCents,
		DiscountPercent:   input.Body.DiscountPercent,
		Active:            input.Body.Active,
	}
	if err := h.catalogSvc.UpsertCoinPackage(ctx, pkg); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	return &UpsertCoinPackageOutput{Body: toCoinPackageDTO(pkg)}, nil
}

// UpsertMembershipPackageInput represents a membership package create-or-update.
type UpsertMembershipPackageInput struct {
	Body struct {
		ID                string `json:"id" minLength:"1"`
		Name              string `json:"name" minLength:"1"`
		Tier              string `json:"tier" minLength:"1"`
		DurationDays      int64  `json:"duration_days" minimum:"1"`
		BonusCoins        int64  `json:"bonus_coins,omitempty" minimum:"0"`
		PriceCents        int64  `json:"price_cents" minimum:"1"`
		PriceCoins        int64  `json:"price_coins,omitempty" minimum:"0" doc:"Zero makes the package cash-only"`
		GimmickPriceCents *int64 `json:"gimmick_price_cents,omitempty"`
		DiscountPercent   int64  `json:"discount_percent,omitempty" minimum:"0" maximum:"100"`
		Active            bool   `json:"active" default:"true"`
	}
}

// UpsertMembershipPackageOutput represents the membership package upsert response.
type UpsertMembershipPackageOutput struct {
	Body MembershipPackageDTO
}

// UpsertMembershipPackage creates or replaces a membership package.
func (h *AdminHandler) UpsertMembershipPackage(ctx context.Context, input *UpsertMembershipPackageInput) (*UpsertMembershipPackageOutput, error) {
	pkg := &models.MembershipPackage{
		ID:                input.Body.ID,
		Name:              input.Body.Name,
		Tier:              input.Body.Tier,
		DurationDays:      input.Body.DurationDays,
		BonusCoins:        input.Body.BonusCoins,
		PriceCents:        input.Body.PriceCents,
		PriceCoins:        input.Body.PriceCoins,
		GimmickPriceCents: input.Body.GimmickPriceCents,
		DiscountPercent:   input.Body.DiscountPercent,
		Active:            input.Body.Active,
	}
	if err := h.catalogSvc.UpsertMembershipPackage(ctx, pkg); err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	return &UpsertMembershipPackageOutput{Body: toMembershipPackageDTO(pkg)}, nil
}
