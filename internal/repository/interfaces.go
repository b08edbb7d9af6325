// Package repository defines repository interfaces for data access.
// Note: user accounts live in the platform's identity provider; user_id
// values here are opaque references.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/inkwave/commerce-api/internal/models"
)

// ErrInsufficientBalance is returned by Apply when a debit would drive a
// user's coin balance below zero. The ledger row is not written.
var ErrInsufficientBalance = errors.New("insufficient coin balance")

// BalanceRepository defines methods for balance and ledger data access.
// The coin balance is derived state: it must always equal the sum of the
// user's ledger entries, which Apply maintains transactionally.
type BalanceRepository interface {
	Get(ctx context.Context, userID string) (*models.UserBalance, error)
	// Apply atomically writes a ledger entry and moves the balance by
	// entry.Coins. Debits that would go negative fail with
	// ErrInsufficientBalance. On success entry.BalanceAfter is filled in.
	Apply(ctx context.Context, entry *models.CoinTransaction) error
	// GetByExternalTxID looks up a ledger entry by gateway transaction id.
	// Used to detect replayed payment callbacks.
	GetByExternalTxID(ctx context.Context, externalTxID string) (*models.CoinTransaction, error)
	// ListByUser returns ledger entries newest-first, optionally filtered
	// to the given kinds.
	ListByUser(ctx context.Context, userID string, kinds []models.TransactionKind, limit, offset int) ([]*models.CoinTransaction, error)
	CountByUser(ctx context.Context, userID string, kinds []models.TransactionKind) (int, error)
	// SumByUser recomputes the balance from ledger entries. Reconciliation only.
	SumByUser(ctx context.Context, userID string) (int64, error)
	GetStats(ctx context.Context) (*LedgerStats, error)
	// DeleteUserData removes balance and ledger rows for an erased account.
	DeleteUserData(ctx context.Context, userID string) error
}

// LedgerStats is an aggregate view over the whole ledger for admin reporting.
type LedgerStats struct {
	TotalUsers         int   `json:"total_users"`
	TotalTransactions  int   `json:"total_transactions"`
	CoinsInCirculation int64 `json:"coins_in_circulation"`
	LifetimeCredited   int64 `json:"lifetime_credited"`
	LifetimeDebited    int64 `json:"lifetime_debited"`
}

// OrderRepository defines methods for order data access.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByExternalTxID(ctx context.Context, externalTxID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error)
	// SetExternalTxID records the gateway's transaction id once payment
	// has been initiated.
	SetExternalTxID(ctx context.Context, id, externalTxID, paymentURL string) error
	// Transition moves a pending order to a terminal status. Returns false
	// without error when the order was not pending, so concurrent callbacks
	// settle an order exactly once.
	Transition(ctx context.Context, id string, next models.OrderStatus, failureCode string, completedAt *time.Time) (bool, error)
	// ListStalePending returns pending orders created before the cutoff.
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*models.Order, error)
	CountByStatus(ctx context.Context) (map[models.OrderStatus]int, error)
	DeleteUserData(ctx context.Context, userID string) error
}

// VoucherRepository defines methods for voucher and reservation data access.
type VoucherRepository interface {
	Upsert(ctx context.Context, voucher *models.Voucher) error
	GetByCode(ctx context.Context, code string) (*models.Voucher, error)
	List(ctx context.Context, includeInactive bool) ([]*models.Voucher, error)
	Delete(ctx context.Context, code string) error

	CreateReservation(ctx context.Context, res *models.VoucherReservation) error
	GetReservation(ctx context.Context, id string) (*models.VoucherReservation, error)
	// AttachOrder links a held reservation to the order consuming it.
	AttachOrder(ctx context.Context, reservationID, orderID string) error
	// CommitReservation marks a held reservation committed and increments the
	// voucher's used_count, guarded against max_uses. Returns false when the
	// reservation was not held or the voucher is already fully used.
	CommitReservation(ctx context.Context, id string) (bool, error)
	// ReleaseReservation returns a held reservation to the pool. Returns
	// false when the reservation was not held.
	ReleaseReservation(ctx context.Context, id string) (bool, error)
	// CountActiveReservations counts unexpired holds on a voucher code, so
	// reserve-time checks can weigh outstanding holds against max_uses.
	CountActiveReservations(ctx context.Context, code string, now time.Time) (int64, error)
	// ExpireReservations releases held reservations whose hold lapsed.
	ExpireReservations(ctx context.Context, now time.Time) (int64, error)
}

// PackageRepository defines methods for purchasable package data access.
type PackageRepository interface {
	UpsertCoinPackage(ctx context.Context, pkg *models.CoinPackage) error
	GetCoinPackage(ctx context.Context, id string) (*models.CoinPackage, error)
	ListCoinPackages(ctx context.Context, activeOnly bool) ([]*models.CoinPackage, error)

	UpsertMembershipPackage(ctx context.Context, pkg *models.MembershipPackage) error
	GetMembershipPackage(ctx context.Context, id string) (*models.MembershipPackage, error)
	ListMembershipPackages(ctx context.Context, activeOnly bool) ([]*models.MembershipPackage, error)
}

// MembershipRepository defines methods for membership entitlement data access.
type MembershipRepository interface {
	Get(ctx context.Context, userID string) (*models.Membership, error)
	Upsert(ctx context.Context, m *models.Membership) error
	Delete(ctx context.Context, userID string) error
}

// Repositories holds all repository instances.
type Repositories struct {
	Balance    BalanceRepository
	Order      OrderRepository
	Voucher    VoucherRepository
	Package    PackageRepository
	Membership MembershipRepository
}

// NewRepositories creates all repository instances.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Balance:    NewSQLiteBalanceRepository(db),
		Order:      NewSQLiteOrderRepository(db),
		Voucher:    NewSQLiteVoucherRepository(db),
		Package:    NewSQLitePackageRepository(db),
		Membership: NewSQLiteMembershipRepository(db),
	}
}

// IsDuplicateKeyError reports whether err came from a UNIQUE constraint.
// Used to treat replayed external transaction ids as idempotent no-ops.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLITE_CONSTRAINT")
}
