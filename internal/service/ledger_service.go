package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/inkwave/commerce-api/internal/metrics"
	"github.com/inkwave/commerce-api/internal/models"
	"github.com/inkwave/commerce-api/internal/repository"
)

var (
	// ErrInsufficientBalance indicates the user doesn't have enough coins.
	ErrInsufficientBalance = errors.New("insufficient coin balance")

	// ErrDuplicatePayment indicates an external payment id was already processed.
	ErrDuplicatePayment = errors.New("duplicate payment - already processed")

	// ErrInvalidAmount indicates a non-positive coin amount.
	ErrInvalidAmount = errors.New("coin amount must be positive")
)

// LedgerService owns the coin ledger. Every balance change goes through
// Credit or Debit so the ledger stays the source of truth.
type LedgerService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(repos *repository.Repositories, logger *slog.Logger) *LedgerService {
	return &LedgerService{repos: repos, logger: logger}
}

// CreditRequest describes a coin credit.
type CreditRequest struct {
	UserID        string
	Kind          models.TransactionKind
	Coins         int64
	PaymentMethod models.PaymentMethod
	ExternalTxID  *string
	OrderID       *string
	Description   string
}

// DebitRequest describes a coin debit.
type DebitRequest struct {
	UserID        string
	Kind          models.TransactionKind
	Coins         int64
	PaymentMethod models.PaymentMethod
	ExternalTxID  *string
	ContentRef    *string
	OrderID       *string
	Description   string
}

// GetBalance retrieves a user's current balance. Users with no ledger
// activity get a zero balance rather than a not-found.
func (s *LedgerService) GetBalance(ctx context.Context, userID string) (*models.UserBalance, error) {
	balance, err := s.repos.Balance.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance == nil {
		return &models.UserBalance{UserID: userID, UpdatedAt: time.Now().UTC()}, nil
	}
	return balance, nil
}

// HasSufficientBalance reports whether the user can cover a coin amount.
// Read-only check for sibling services; the actual debit still races safely.
func (s *LedgerService) HasSufficientBalance(ctx context.Context, userID string, coins int64) (bool, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance.CoinBalance >= coins, nil
}

// Credit adds coins to a user's balance. When req.ExternalTxID is set and was
// already processed the credit is refused with ErrDuplicatePayment and the
// balance is untouched.
func (s *LedgerService) Credit(ctx context.Context, req CreditRequest) (*models.CoinTransaction, error) {
	if req.Coins <= 0 {
		return nil, ErrInvalidAmount
	}
	if !req.Kind.Valid() || !req.Kind.IsCredit() {
		return nil, fmt.Errorf("invalid credit kind %q", req.Kind)
	}

	method := req.PaymentMethod
	if method == "" {
		method = models.PayMethodInternal
	}

	entry := &models.CoinTransaction{
		ID:            ulid.Make().String(),
		UserID:        req.UserID,
		Kind:          req.Kind,
		Coins:         req.Coins,
		PaymentMethod: method,
		ExternalTxID:  req.ExternalTxID,
		OrderID:       req.OrderID,
		Description:   req.Description,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.repos.Balance.Apply(ctx, entry); err != nil {
		if repository.IsDuplicateKeyError(err) {
			s.logger.Info("duplicate payment ignored", "user_id", req.UserID, "external_tx_id", req.ExternalTxID)
			return nil, ErrDuplicatePayment
		}
		return nil, fmt.Errorf("failed to apply credit: %w", err)
	}

	metrics.CoinsCredited.WithLabelValues(string(req.Kind)).Add(float64(req.Coins))
	s.logger.Info("coins credited",
		"user_id", req.UserID,
		"kind", req.Kind,
		"coins", req.Coins,
		"balance_after", entry.BalanceAfter,
	)
	return entry, nil
}

// Debit removes coins from a user's balance. Fails with
// ErrInsufficientBalance when the balance does not cover the amount; the
// ledger is untouched in that case.
func (s *LedgerService) Debit(ctx context.Context, req DebitRequest) (*models.CoinTransaction, error) {
	if req.Coins <= 0 {
		return nil, ErrInvalidAmount
	}
	if !req.Kind.Valid() || req.Kind.IsCredit() {
		return nil, fmt.Errorf("invalid debit kind %q", req.Kind)
	}

	method := req.PaymentMethod
	if method == "" {
		method = models.PayMethodInternal
	}

	entry := &models.CoinTransaction{
		ID:            ulid.Make().String(),
		UserID:        req.UserID,
		Kind:          req.Kind,
		Coins:         -req.Coins,
		PaymentMethod: method,
		ExternalTxID:  req.ExternalTxID,
		ContentRef:    req.ContentRef,
		OrderID:       req.OrderID,
		Description:   req.Description,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.repos.Balance.Apply(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			metrics.InsufficientBalance.Inc()
			return nil, ErrInsufficientBalance
		}
		if repository.IsDuplicateKeyError(err) {
			s.logger.Info("duplicate debit ignored", "user_id", req.UserID, "external_tx_id", req.ExternalTxID)
			return nil, ErrDuplicatePayment
		}
		return nil, fmt.Errorf("failed to apply debit: %w", err)
	}

	metrics.CoinsDebited.WithLabelValues(string(req.Kind)).Add(float64(req.Coins))
	s.logger.Info("coins debited",
		"user_id", req.UserID,
		"kind", req.Kind,
		"coins", req.Coins,
		"balance_after", entry.BalanceAfter,
	)
	return entry, nil
}

// PurchaseContent debits coins for a chapter unlock or ebook purchase.
// The debit is keyed to the content so the dashboard can show what was bought.
func (s *LedgerService) PurchaseContent(ctx context.Context, userID string, purchase models.PurchaseType, contentRef string, coins int64) (*models.CoinTransaction, error) {
	var kind models.TransactionKind
	var what string
	switch purchase {
	case models.PurchaseEbook:
		kind = models.TxKindEbookPurchase
		what = "Ebook"
	default:
		kind = models.TxKindChapterPurchase
		what = "Chapter"
	}
	return s.Debit(ctx, DebitRequest{
		UserID:      userID,
		Kind:        kind,
		Coins:       coins,
		ContentRef:  &contentRef,
		Description: fmt.Sprintf("%s %s", what, contentRef),
	})
}

// GetHistory retrieves a user's transaction history for a dashboard bucket.
func (s *LedgerService) GetHistory(ctx context.Context, userID string, bucket models.HistoryBucket, limit, offset int) ([]*models.CoinTransaction, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	kinds := bucket.Kinds()

	entries, err := s.repos.Balance.ListByUser(ctx, userID, kinds, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	total, err := s.repos.Balance.CountByUser(ctx, userID, kinds)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return entries, total, nil
}

// GetByExternalTxID looks up a ledger entry by gateway transaction id.
func (s *LedgerService) GetByExternalTxID(ctx context.Context, externalTxID string) (*models.CoinTransaction, error) {
	return s.repos.Balance.GetByExternalTxID(ctx, externalTxID)
}

// AdminGrant credits coins by operator action.
func (s *LedgerService) AdminGrant(ctx context.Context, userID string, coins int64, reason string) (*models.CoinTransaction, error) {
	if reason == "" {
		reason = "Promotional grant"
	}
	return s.Credit(ctx, CreditRequest{
		UserID:      userID,
		Kind:        models.TxKindAdminGrant,
		Coins:       coins,
		Description: reason,
	})
}

// GetStats returns aggregate ledger numbers for the admin dashboard.
func (s *LedgerService) GetStats(ctx context.Context) (*repository.LedgerStats, error) {
	return s.repos.Balance.GetStats(ctx)
}

// Reconcile verifies that a user's stored balance equals the sum of their
// ledger entries. Returns the two numbers; callers alert when they differ.
func (s *LedgerService) Reconcile(ctx context.Context, userID string) (stored, derived int64, err error) {
	balance, err := s.repos.Balance.Get(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	if balance != nil {
		stored = balance.CoinBalance
	}
	derived, err = s.repos.Balance.SumByUser(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	if stored != derived {
		s.logger.Error("ledger reconciliation mismatch",
			"user_id", userID,
			"stored", stored,
			"derived", derived,
		)
	}
	return stored, derived, nil
}
