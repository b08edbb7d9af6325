package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/inkwave/commerce-api/internal/metrics"
	"github.com/inkwave/commerce-api/internal/models"
	"github.com/inkwave/commerce-api/internal/repository"
)

// EvalOutcome classifies a voucher evaluation.
type EvalOutcome string

const (
	EvalOK            EvalOutcome = "ok"
	EvalNotFound      EvalOutcome = "not_found"
	EvalInactive      EvalOutcome = "inactive"
	EvalExpired       EvalOutcome = "expired"
	EvalUsageExceeded EvalOutcome = "usage_exceeded"
	EvalNotApplicable EvalOutcome = "not_applicable"
	EvalBelowMinimum  EvalOutcome = "below_minimum"
)

// Evaluation is the result of applying a voucher to a purchase amount.
type Evaluation struct {
	Valid         bool        `json:"valid"`
	Outcome       EvalOutcome `json:"outcome"`
	Code          string      `json:"code"`
	BaseCents     int64       `json:"base_cents"`
	DiscountCents int64       `json:"discount_cents"`
	TotalCents    int64       `json:"total_cents"`
}

// VoucherService evaluates and redeems vouchers. Redemption is two-phase:
// a hold is taken when an order is created, and the use is only consumed
// when the payment settles.
type VoucherService struct {
	repos          *repository.Repositories
	reservationTTL time.Duration
	logger         *slog.Logger
}

// NewVoucherService creates a new voucher service.
func NewVoucherService(repos *repository.Repositories, reservationTTL time.Duration, logger *slog.Logger) *VoucherService {
	return &VoucherService{repos: repos, reservationTTL: reservationTTL, logger: logger}
}

// NormalizeCode uppercases and trims a user-supplied voucher code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluate applies a voucher to a purchase without consuming anything.
// Checks run in a fixed order so the user always sees the most actionable
// failure: existence, active, expiry, usage, applicability, minimum.
func (s *VoucherService) Evaluate(ctx context.Context, code string, purchase models.PurchaseType, baseCents int64) (*Evaluation, error) {
	eval, _, err := s.evaluate(ctx, code, purchase, baseCents)
	return eval, err
}

// evaluate is Evaluate plus the loaded voucher, for callers that need it.
func (s *VoucherService) evaluate(ctx context.Context, code string, purchase models.PurchaseType, baseCents int64) (*Evaluation, *models.Voucher, error) {
	code = NormalizeCode(code)
	eval := &Evaluation{
		Code:       code,
		BaseCents:  baseCents,
		TotalCents: baseCents,
	}

	voucher, err := s.repos.Voucher.GetByCode(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up voucher: %w", err)
	}

	outcome := classify(voucher, purchase, baseCents, time.Now().UTC())
	eval.Outcome = outcome
	metrics.VoucherEvaluations.WithLabelValues(string(outcome)).Inc()
	if outcome != EvalOK {
		return eval, voucher, nil
	}

	eval.Valid = true
	eval.DiscountCents = discountCents(voucher, baseCents)
	eval.TotalCents = baseCents - eval.DiscountCents
	return eval, voucher, nil
}

func classify(v *models.Voucher, purchase models.PurchaseType, baseCents int64, now time.Time) EvalOutcome {
	switch {
	case v == nil:
		return EvalNotFound
	case !v.Active:
		return EvalInactive
	case v.ExpiresAt != nil && now.After(*v.ExpiresAt):
		return EvalExpired
	case v.MaxUses != nil && v.UsedCount >= *v.MaxUses:
		return EvalUsageExceeded
	case !v.AppliesToType(purchase):
		return EvalNotApplicable
	case v.MinAmount != nil && baseCents < *v.MinAmount:
		return EvalBelowMinimum
	default:
		return EvalOK
	}
}

// discountCents computes the discount for a voucher on a base amount.
// Percent discounts round half-up to the nearest cent; fixed discounts
// never exceed the base amount.
func discountCents(v *models.Voucher, baseCents int64) int64 {
	switch v.DiscountType {
	case models.DiscountPercent:
		d := decimal.NewFromInt(baseCents).
			Mul(decimal.NewFromInt(v.DiscountValue)).
			Div(decimal.NewFromInt(100)).
			Round(0)
		discount := d.IntPart()
		if discount > baseCents {
			discount = baseCents
		}
		return discount
	case models.DiscountFixed:
		if v.DiscountValue > baseCents {
			return baseCents
		}
		return v.DiscountValue
	default:
		return 0
	}
}

// Reserve evaluates a voucher and, when valid, takes a hold on one use.
// The hold expires after the reservation TTL unless committed. Outstanding
// holds count against max_uses so concurrent checkouts cannot be quoted
// more discounts than can settle.
func (s *VoucherService) Reserve(ctx context.Context, userID, code string, purchase models.PurchaseType, baseCents int64) (*Evaluation, *models.VoucherReservation, error) {
	eval, voucher, err := s.evaluate(ctx, code, purchase, baseCents)
	if err != nil {
		return nil, nil, err
	}
	if !eval.Valid {
		return eval, nil, nil
	}

	now := time.Now().UTC()
	if voucher.MaxUses != nil {
		held, err := s.repos.Voucher.CountActiveReservations(ctx, eval.Code, now)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to count voucher holds: %w", err)
		}
		if voucher.UsedCount+held >= *voucher.MaxUses {
			eval.Valid = false
			eval.Outcome = EvalUsageExceeded
			eval.DiscountCents = 0
			eval.TotalCents = baseCents
			return eval, nil, nil
		}
	}

	res := &models.VoucherReservation{
		ID:        ulid.Make().String(),
		Code:      eval.Code,
		UserID:    userID,
		Status:    models.ReservationHeld,
		ExpiresAt: now.Add(s.reservationTTL),
		CreatedAt: now,
	}
	if err := s.repos.Voucher.CreateReservation(ctx, res); err != nil {
		return nil, nil, fmt.Errorf("failed to reserve voucher: %w", err)
	}

	s.logger.Info("voucher reserved", "code", eval.Code, "user_id", userID, "reservation_id", res.ID)
	return eval, res, nil
}

// AttachOrder links a reservation to the order that will consume it.
func (s *VoucherService) AttachOrder(ctx context.Context, reservationID, orderID string) error {
	return s.repos.Voucher.AttachOrder(ctx, reservationID, orderID)
}

// Commit consumes a held reservation when its order settles. Committing an
// already-settled reservation is a no-op so replayed callbacks are safe.
func (s *VoucherService) Commit(ctx context.Context, reservationID string) error {
	ok, err := s.repos.Voucher.CommitReservation(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	if !ok {
		s.logger.Warn("voucher reservation not committed", "reservation_id", reservationID)
	}
	return nil
}

// Release returns a held reservation to the pool when its order fails or is
// cancelled. Releasing a settled reservation is a no-op.
func (s *VoucherService) Release(ctx context.Context, reservationID string) error {
	ok, err := s.repos.Voucher.ReleaseReservation(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	if ok {
		s.logger.Info("voucher reservation released", "reservation_id", reservationID)
	}
	return nil
}

// ExpireReservations releases holds whose TTL lapsed. Called by the sweeper.
func (s *VoucherService) ExpireReservations(ctx context.Context) (int64, error) {
	return s.repos.Voucher.ExpireReservations(ctx, time.Now().UTC())
}

// Upsert creates or updates a voucher definition (admin surface).
func (s *VoucherService) Upsert(ctx context.Context, voucher *models.Voucher) error {
	voucher.Code = NormalizeCode(voucher.Code)
	if voucher.Code == "" {
		return errors.New("voucher code is required")
	}
	if voucher.DiscountType != models.DiscountPercent && voucher.DiscountType != models.DiscountFixed {
		return fmt.Errorf("invalid discount type %q", voucher.DiscountType)
	}
	if voucher.DiscountValue <= 0 {
		return errors.New("discount value must be positive")
	}
	if voucher.DiscountType == models.DiscountPercent && voucher.DiscountValue > 100 {
		return errors.New("percent discount cannot exceed 100")
	}
	if len(voucher.AppliesTo) == 0 {
		return errors.New("voucher must apply to at least one purchase type")
	}

	now := time.Now().UTC()
	if voucher.CreatedAt.IsZero() {
		voucher.CreatedAt = now
	}
	voucher.UpdatedAt = now
	return s.repos.Voucher.Upsert(ctx, voucher)
}

// List returns voucher definitions (admin surface).
func (s *VoucherService) List(ctx context.Context, includeInactive bool) ([]*models.Voucher, error) {
	return s.repos.Voucher.List(ctx, includeInactive)
}

// Delete removes a voucher definition (admin surface).
func (s *VoucherService) Delete(ctx context.Context, code string) error {
	return s.repos.Voucher.Delete(ctx, NormalizeCode(code))
}
