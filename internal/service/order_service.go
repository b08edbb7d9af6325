package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	appconfig "github.com/inkwave/commerce-api/internal/config"
	"github.com/inkwave/commerce-api/internal/metrics"
	"github.com/inkwave/commerce-api/internal/models"
	"github.com/inkwave/commerce-api/internal/payment"
	"github.com/inkwave/commerce-api/internal/repository"
)

const (
	gatewayCard   = "card"
	gatewayCrypto = "crypto"
)

// Failure codes recorded on orders that leave pending without completing.
const (
	FailureGateway       = "gateway_failed"
	FailureExpired       = "expired"
	FailureUserCancelled = "user_cancelled"
	FailureDelivery      = "delivery_failed"
)

var (
	// ErrOrderNotFound indicates an unknown or foreign order id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrNotCancellable indicates a cancel on an order that already settled.
	ErrNotCancellable = errors.New("order is not pending")

	// ErrGatewayUnavailable mirrors payment.ErrGatewayUnavailable for handlers.
	ErrGatewayUnavailable = payment.ErrGatewayUnavailable

	// ErrSettlementMismatch indicates a settlement callback whose external tx
	// id does not match the one already recorded for the order. This is an
	// anomaly worth alerting on, never a silent overwrite.
	ErrSettlementMismatch = errors.New("settlement does not match recorded payment")

	// ErrCoinPriceUnavailable indicates a coin-funded purchase of a package
	// that is cash-only.
	ErrCoinPriceUnavailable = errors.New("package cannot be bought with coins")
)

// VoucherRejectedError carries the evaluation of a voucher that failed during
// order creation, so the client can show the exact reason.
type VoucherRejectedError struct {
	Evaluation *Evaluation
}

func (e *VoucherRejectedError) Error() string {
	return fmt.Sprintf("voucher rejected: %s", e.Evaluation.Outcome)
}

// OrderService owns the order state machine. Orders are created pending with
// the payment already initiated at the gateway; signed webhooks settle them
// into exactly one terminal state.
type OrderService struct {
	cfg        *appconfig.Config
	repos      *repository.Repositories
	ledger     *LedgerService
	voucher    *VoucherService
	membership *MembershipService
	gateways   map[string]payment.Gateway
	logger     *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(cfg *appconfig.Config, repos *repository.Repositories, ledger *LedgerService,
	voucher *VoucherService, membership *MembershipService, gateways map[string]payment.Gateway,
	logger *slog.Logger) *OrderService {
	return &OrderService{
		cfg:        cfg,
		repos:      repos,
		ledger:     ledger,
		voucher:    voucher,
		membership: membership,
		gateways:   gateways,
		logger:     logger,
	}
}

// CreateOrderRequest describes a new purchase.
type CreateOrderRequest struct {
	UserID        string
	Kind          models.OrderKind
	PackageID     string
	VoucherCode   string
	PaymentMethod models.PaymentMethod
}

// resolvedPackage is what Create needs to know about any purchasable package.
type resolvedPackage struct {
	baseCents   int64
	priceCoins  int64
	purchase    models.PurchaseType
	description string
	membership  *models.MembershipPackage
}

func (s *OrderService) resolvePackage(ctx context.Context, kind models.OrderKind, packageID string) (*resolvedPackage, error) {
	switch kind {
	case models.OrderKindCoins:
		pkg, err := s.repos.Package.GetCoinPackage(ctx, packageID)
		if err != nil {
			return nil, err
		}
		if pkg == nil || !pkg.Active {
			return nil, ErrUnknownPackage
		}
		return &resolvedPackage{
			baseCents:   pkg.PriceCents,
			purchase:    models.PurchaseCoins,
			description: fmt.Sprintf("%s (%d coins)", pkg.Name, pkg.Coins+pkg.BonusCoins),
		}, nil
	case models.OrderKindMembership:
		pkg, err := s.repos.Package.GetMembershipPackage(ctx, packageID)
		if err != nil {
			return nil, err
		}
		if pkg == nil || !pkg.Active {
			return nil, ErrUnknownPackage
		}
		return &resolvedPackage{
			baseCents:   pkg.PriceCents,
			priceCoins:  pkg.PriceCoins,
			purchase:    models.PurchaseMembership,
			description: pkg.Name,
			membership:  pkg,
		}, nil
	default:
		return nil, fmt.Errorf("invalid order kind %q", kind)
	}
}

// Create builds and persists a new order. For gateway orders the payment is
// initiated first; an order is only stored once the gateway accepted it, so
// there are no half-created orders pointing at nothing. Coin-funded
// membership purchases settle synchronously.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	resolved, err := s.resolvePackage(ctx, req.Kind, req.PackageID)
	if err != nil {
		return nil, err
	}

	if req.Kind == models.OrderKindMembership && req.PaymentMethod == models.PayMethodInternal {
		if req.VoucherCode != "" {
			// Vouchers discount cash prices; a coin-funded purchase has none.
			return nil, &VoucherRejectedError{Evaluation: &Evaluation{
				Code:    NormalizeCode(req.VoucherCode),
				Outcome: EvalNotApplicable,
			}}
		}
		return s.createCoinFundedMembership(ctx, req, resolved)
	}

	gatewayName := ""
	switch req.PaymentMethod {
	case models.PayMethodCard:
		gatewayName = gatewayCard
	case models.PayMethodCrypto:
		gatewayName = gatewayCrypto
	default:
		return nil, fmt.Errorf("invalid payment method %q", req.PaymentMethod)
	}
	gateway, ok := s.gateways[gatewayName]
	if !ok {
		return nil, ErrGatewayUnavailable
	}

	order := &models.Order{
		ID:            ulid.Make().String(),
		UserID:        req.UserID,
		Kind:          req.Kind,
		PackageID:     req.PackageID,
		BaseCents:     resolved.baseCents,
		TotalCents:    resolved.baseCents,
		PaymentMethod: req.PaymentMethod,
		Status:        models.OrderPending,
		CreatedAt:     time.Now().UTC(),
	}

	var reservation *models.VoucherReservation
	if req.VoucherCode != "" {
		eval, res, err := s.voucher.Reserve(ctx, req.UserID, req.VoucherCode, resolved.purchase, resolved.baseCents)
		if err != nil {
			return nil, err
		}
		if !eval.Valid {
			return nil, &VoucherRejectedError{Evaluation: eval}
		}
		reservation = res
		order.VoucherCode = &eval.Code
		order.VoucherReservationID = &res.ID
		order.DiscountCents = eval.DiscountCents
		order.TotalCents = eval.TotalCents
	}

	result, err := gateway.Initiate(ctx, order, resolved.description)
	if err != nil {
		if reservation != nil {
			_ = s.voucher.Release(ctx, reservation.ID)
		}
		return nil, err
	}
	order.ExternalTxID = &result.ExternalTxID
	order.PaymentURL = &result.PaymentURL

	if err := s.repos.Order.Create(ctx, order); err != nil {
		if reservation != nil {
			_ = s.voucher.Release(ctx, reservation.ID)
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	if reservation != nil {
		if err := s.voucher.AttachOrder(ctx, reservation.ID, order.ID); err != nil {
			s.logger.Error("failed to attach reservation to order", "order_id", order.ID, "error", err)
		}
	}

	metrics.OrdersCreated.WithLabelValues(string(order.Kind), string(order.PaymentMethod)).Inc()
	s.logger.Info("order created",
		"order_id", order.ID,
		"user_id", order.UserID,
		"kind", order.Kind,
		"total_cents", order.TotalCents,
		"external_tx_id", result.ExternalTxID,
	)
	return order, nil
}

// createCoinFundedMembership settles a membership bought with coins in one
// flow: debit, extend, completed order. No gateway is involved. A failure
// after the debit credits the coins back so the user is never left charged
// without the membership.
func (s *OrderService) createCoinFundedMembership(ctx context.Context, req CreateOrderRequest, resolved *resolvedPackage) (*models.Order, error) {
	if resolved.priceCoins <= 0 {
		return nil, ErrCoinPriceUnavailable
	}

	order := &models.Order{
		ID:            ulid.Make().String(),
		UserID:        req.UserID,
		Kind:          models.OrderKindMembership,
		PackageID:     req.PackageID,
		PaymentMethod: models.PayMethodInternal,
		Status:        models.OrderPending,
		CreatedAt:     time.Now().UTC(),
	}

	_, err := s.ledger.Debit(ctx, DebitRequest{
		UserID:      req.UserID,
		Kind:        models.TxKindMembershipCoins,
		Coins:       resolved.priceCoins,
		OrderID:     &order.ID,
		Description: fmt.Sprintf("Membership: %s", resolved.description),
	})
	if err != nil {
		return nil, err
	}

	if err := s.repos.Order.Create(ctx, order); err != nil {
		s.reverseCoinDebit(ctx, order.ID, req.UserID, resolved.priceCoins, resolved.description)
		return nil, fmt.Errorf("failed to record membership order: %w", err)
	}

	if _, err := s.membership.ExtendFromPackage(ctx, req.UserID, resolved.membership, &order.ID); err != nil {
		s.reverseCoinDebit(ctx, order.ID, req.UserID, resolved.priceCoins, resolved.description)
		if _, terr := s.repos.Order.Transition(ctx, order.ID, models.OrderFailed, FailureDelivery, nil); terr != nil {
			s.logger.Error("failed to fail membership order", "order_id", order.ID, "error", terr)
		}
		return nil, err
	}

	completedAt := time.Now().UTC()
	if _, err := s.repos.Order.Transition(ctx, order.ID, models.OrderCompleted, "", &completedAt); err != nil {
		return nil, fmt.Errorf("failed to complete membership order: %w", err)
	}
	order.Status = models.OrderCompleted
	order.CompletedAt = &completedAt

	metrics.OrdersCreated.WithLabelValues(string(order.Kind), string(order.PaymentMethod)).Inc()
	metrics.OrdersSettled.WithLabelValues(string(models.OrderCompleted)).Inc()
	return order, nil
}

// reverseCoinDebit returns coins taken for a purchase that could not be
// delivered. Keyed on the order id so it can run at most once.
func (s *OrderService) reverseCoinDebit(ctx context.Context, orderID, userID string, coins int64, description string) {
	reversalKey := orderID + "_reversal"
	_, err := s.ledger.Credit(ctx, CreditRequest{
		UserID:       userID,
		Kind:         models.TxKindBonus,
		Coins:        coins,
		ExternalTxID: &reversalKey,
		OrderID:      &orderID,
		Description:  fmt.Sprintf("Reversal: %s", description),
	})
	if err != nil && !errors.Is(err, ErrDuplicatePayment) {
		s.logger.Error("failed to reverse coin debit",
			"order_id", orderID,
			"user_id", userID,
			"coins", coins,
			"error", err,
		)
	}
}

// Get returns an order if it belongs to the user.
func (s *OrderService) Get(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.repos.Order.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// List returns a user's orders newest-first.
func (s *OrderService) List(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repos.Order.ListByUser(ctx, userID, limit, offset)
}

// PollSeconds is the retry hint returned to clients polling order status.
func (s *OrderService) PollSeconds() int {
	return s.cfg.OrderPollSeconds
}

// Cancel moves a user's pending order to cancelled and releases any voucher
// hold. The payment may still complete at the gateway afterwards; the
// settlement callback will then find a terminal order and no-op.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	ok, err := s.repos.Order.Transition(ctx, order.ID, models.OrderCancelled, FailureUserCancelled, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	if !ok {
		return nil, ErrNotCancellable
	}
	s.releaseReservation(ctx, order)

	metrics.OrdersSettled.WithLabelValues(string(models.OrderCancelled)).Inc()
	s.logger.Info("order cancelled", "order_id", order.ID, "user_id", userID)
	return s.repos.Order.GetByID(ctx, order.ID)
}

// MarkCompleted settles an order after the gateway confirmed payment.
// Delivery runs first and the order only flips to completed once it landed,
// so a failed credit or extension leaves the order pending for the gateway's
// redelivery instead of losing the paid coins. Replayed callbacks with the
// same external tx id are no-ops; a callback carrying a different external
// tx id than the recorded one is rejected.
func (s *OrderService) MarkCompleted(ctx context.Context, orderID, externalTxID, source string) error {
	order, err := s.repos.Order.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil && externalTxID != "" {
		// Some gateways only echo their own transaction reference.
		order, err = s.repos.Order.GetByExternalTxID(ctx, externalTxID)
		if err != nil {
			return fmt.Errorf("failed to load order: %w", err)
		}
	}
	if order == nil {
		return ErrOrderNotFound
	}

	if order.ExternalTxID != nil && externalTxID != "" && *order.ExternalTxID != externalTxID {
		s.logger.Error("settlement external tx id mismatch",
			"order_id", order.ID,
			"recorded", *order.ExternalTxID,
			"callback", externalTxID,
			"source", source,
		)
		return ErrSettlementMismatch
	}

	if order.Status != models.OrderPending {
		metrics.WebhookReplays.WithLabelValues(source).Inc()
		s.logger.Info("settlement replay ignored", "order_id", order.ID, "source", source)
		return nil
	}

	if order.ExternalTxID == nil && externalTxID != "" {
		paymentURL := ""
		if order.PaymentURL != nil {
			paymentURL = *order.PaymentURL
		}
		if err := s.repos.Order.SetExternalTxID(ctx, order.ID, externalTxID, paymentURL); err != nil {
			return fmt.Errorf("failed to record external tx id: %w", err)
		}
		order.ExternalTxID = &externalTxID
	}

	if err := s.fulfill(ctx, order, externalTxID); err != nil {
		s.logger.Error("order fulfillment failed", "order_id", order.ID, "error", err)
		return err
	}

	ok, err := s.repos.Order.Transition(ctx, order.ID, models.OrderCompleted, "", ptrTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to complete order: %w", err)
	}
	if !ok {
		// A concurrent callback won the transition; the delivery above was
		// deduplicated by the ledger's UNIQUE external tx id.
		metrics.WebhookReplays.WithLabelValues(source).Inc()
		return nil
	}

	if order.VoucherReservationID != nil {
		if err := s.voucher.Commit(ctx, *order.VoucherReservationID); err != nil {
			s.logger.Error("failed to commit voucher", "order_id", order.ID, "error", err)
		}
	}

	metrics.OrdersSettled.WithLabelValues(string(models.OrderCompleted)).Inc()
	s.logger.Info("order completed", "order_id", order.ID, "user_id", order.UserID, "source", source)
	return nil
}

// fulfill delivers what the order bought.
func (s *OrderService) fulfill(ctx context.Context, order *models.Order, externalTxID string) error {
	extID := order.ExternalTxID
	if extID == nil && externalTxID != "" {
		extID = &externalTxID
	}

	switch order.Kind {
	case models.OrderKindCoins:
		pkg, err := s.repos.Package.GetCoinPackage(ctx, order.PackageID)
		if err != nil {
			return err
		}
		if pkg == nil {
			return ErrUnknownPackage
		}
		_, err = s.ledger.Credit(ctx, CreditRequest{
			UserID:        order.UserID,
			Kind:          models.TxKindCoinPurchase,
			Coins:         pkg.Coins,
			PaymentMethod: order.PaymentMethod,
			ExternalTxID:  extID,
			OrderID:       &order.ID,
			Description:   fmt.Sprintf("Coin purchase: %s", pkg.Name),
		})
		if err != nil && !errors.Is(err, ErrDuplicatePayment) {
			return err
		}
		if pkg.BonusCoins > 0 {
			// Keyed separately so a retried delivery that died between the
			// two credits still grants the bonus exactly once.
			bonusReq := CreditRequest{
				UserID:      order.UserID,
				Kind:        models.TxKindBonus,
				Coins:       pkg.BonusCoins,
				OrderID:     &order.ID,
				Description: fmt.Sprintf("Bonus coins: %s", pkg.Name),
			}
			if extID != nil {
				bonusKey := *extID + "_bonus"
				bonusReq.ExternalTxID = &bonusKey
			}
			if _, err := s.ledger.Credit(ctx, bonusReq); err != nil && !errors.Is(err, ErrDuplicatePayment) {
				return err
			}
		}
		return nil

	case models.OrderKindMembership:
		pkg, err := s.repos.Package.GetMembershipPackage(ctx, order.PackageID)
		if err != nil {
			return err
		}
		if pkg == nil {
			return ErrUnknownPackage
		}
		if _, err := s.membership.ExtendFromPackage(ctx, order.UserID, pkg, &order.ID); err != nil {
			return err
		}
		// Zero-coin marker so the purchase shows in the membership history
		// bucket; the package bonus is credited by ExtendFromPackage.
		entry := &models.CoinTransaction{
			ID:            ulid.Make().String(),
			UserID:        order.UserID,
			Kind:          models.TxKindMembershipCash,
			Coins:         0,
			PaymentMethod: order.PaymentMethod,
			ExternalTxID:  extID,
			OrderID:       &order.ID,
			Description:   fmt.Sprintf("Membership: %s", pkg.Name),
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.repos.Balance.Apply(ctx, entry); err != nil && !repository.IsDuplicateKeyError(err) {
			return err
		}
		return nil

	default:
		return fmt.Errorf("invalid order kind %q", order.Kind)
	}
}

// MarkFailed settles an order as failed after the gateway reported the
// payment dead. Replays on settled orders are no-ops.
func (s *OrderService) MarkFailed(ctx context.Context, orderID, failureCode, source string) error {
	order, err := s.repos.Order.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if failureCode == "" {
		failureCode = FailureGateway
	}

	ok, err := s.repos.Order.Transition(ctx, order.ID, models.OrderFailed, failureCode, nil)
	if err != nil {
		return fmt.Errorf("failed to fail order: %w", err)
	}
	if !ok {
		metrics.WebhookReplays.WithLabelValues(source).Inc()
		return nil
	}
	s.releaseReservation(ctx, order)

	metrics.OrdersSettled.WithLabelValues(string(models.OrderFailed)).Inc()
	s.logger.Info("order failed", "order_id", order.ID, "failure_code", failureCode, "source", source)
	return nil
}

// HandleRefund claws back coins after the gateway refunded a payment. The
// clawback is keyed on the original external tx id so replays are no-ops;
// it never drives the balance negative, a partial clawback is recorded when
// the user already spent some of the coins.
func (s *OrderService) HandleRefund(ctx context.Context, externalTxID, source string) error {
	original, err := s.ledger.GetByExternalTxID(ctx, externalTxID)
	if err != nil {
		return fmt.Errorf("failed to look up refunded payment: %w", err)
	}
	if original == nil {
		s.logger.Warn("refund for unknown payment", "external_tx_id", externalTxID, "source", source)
		return nil
	}
	if original.Coins <= 0 {
		return nil
	}

	balance, err := s.ledger.GetBalance(ctx, original.UserID)
	if err != nil {
		return err
	}
	clawback := original.Coins
	if balance.CoinBalance < clawback {
		clawback = balance.CoinBalance
		s.logger.Warn("partial refund clawback",
			"user_id", original.UserID,
			"refunded_coins", original.Coins,
			"clawed_back", clawback,
		)
	}
	if clawback == 0 {
		return nil
	}

	refundID := externalTxID + "_refund"
	_, err = s.ledger.Debit(ctx, DebitRequest{
		UserID:        original.UserID,
		Kind:          models.TxKindRefund,
		Coins:         clawback,
		PaymentMethod: original.PaymentMethod,
		ExternalTxID:  &refundID,
		OrderID:       original.OrderID,
		Description:   fmt.Sprintf("Refund of payment %s", externalTxID),
	})
	if errors.Is(err, ErrDuplicatePayment) {
		metrics.WebhookReplays.WithLabelValues(source).Inc()
		return nil
	}
	return err
}

// RefundOrder claws back a settled order by id. Used by gateways whose refund
// events do not carry the original transaction id.
func (s *OrderService) RefundOrder(ctx context.Context, orderID, source string) error {
	order, err := s.repos.Order.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if order.ExternalTxID == nil {
		s.logger.Warn("refund for order without payment", "order_id", orderID, "source", source)
		return nil
	}
	return s.HandleRefund(ctx, *order.ExternalTxID, source)
}

// SweepStale fails pending orders older than the configured age and releases
// lapsed voucher holds. Called periodically by the worker.
func (s *OrderService) SweepStale(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.MaxPendingAge)
	stale, err := s.repos.Order.ListStalePending(ctx, cutoff, 100)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale orders: %w", err)
	}

	swept := 0
	for _, order := range stale {
		ok, err := s.repos.Order.Transition(ctx, order.ID, models.OrderFailed, FailureExpired, nil)
		if err != nil {
			s.logger.Error("failed to sweep order", "order_id", order.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}
		s.releaseReservation(ctx, order)
		metrics.StaleOrdersSwept.Inc()
		metrics.OrdersSettled.WithLabelValues(string(models.OrderFailed)).Inc()
		swept++
	}

	released, err := s.voucher.ExpireReservations(ctx)
	if err != nil {
		s.logger.Error("failed to expire voucher holds", "error", err)
	} else if released > 0 {
		s.logger.Info("expired voucher holds released", "count", released)
	}

	return swept, nil
}

// CountByStatus returns order counts for the admin dashboard.
func (s *OrderService) CountByStatus(ctx context.Context) (map[models.OrderStatus]int, error) {
	return s.repos.Order.CountByStatus(ctx)
}

func (s *OrderService) releaseReservation(ctx context.Context, order *models.Order) {
	if order.VoucherReservationID == nil {
		return
	}
	if err := s.voucher.Release(ctx, *order.VoucherReservationID); err != nil {
		s.logger.Error("failed to release voucher hold", "order_id", order.ID, "error", err)
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
