// Package models defines the domain models for the commerce API.
package models

import "time"

// ========================================
// User Balance
// ========================================

// UserBalance tracks a user's coin balance. The balance is only ever mutated
// through ledger entries; CoinBalance must equal the sum of credits minus the
// sum of debits over the user's transaction history.
type UserBalance struct {
	UserID         string    `json:"user_id"`
	CoinBalance    int64     `json:"coin_balance"`
	LifetimeEarned int64     `json:"lifetime_earned"`
	LifetimeSpent  int64     `json:"lifetime_spent"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ========================================
// Coin Transactions (ledger entries)
// ========================================

// TransactionKind classifies a ledger entry. The set is closed: every
// consumer switches over these values instead of comparing ad-hoc strings.
type TransactionKind string

const (
	TxKindCoinPurchase    TransactionKind = "coin_purchase"             // Coins bought with real money
	TxKindSignupBonus     TransactionKind = "signup_bonus"              // One-time bonus on account creation
	TxKindBonus           TransactionKind = "bonus"                     // Package bonus coins
	TxKindAdminGrant      TransactionKind = "admin_grant"               // Operator-issued grant
	TxKindChapterPurchase TransactionKind = "chapter_purchase"          // Chapter unlock
	TxKindEbookPurchase   TransactionKind = "ebook_purchase"            // Ebook purchase
	TxKindMembershipCoins TransactionKind = "membership_purchase_coins" // Membership paid in coins
	TxKindMembershipCash  TransactionKind = "membership_purchase_cash"  // Membership paid via gateway
	TxKindRefund          TransactionKind = "refund"                    // Gateway refund clawback
)

// Valid reports whether k is a known transaction kind.
func (k TransactionKind) Valid() bool {
	switch k {
	case TxKindCoinPurchase, TxKindSignupBonus, TxKindBonus, TxKindAdminGrant,
		TxKindChapterPurchase, TxKindEbookPurchase, TxKindMembershipCoins,
		TxKindMembershipCash, TxKindRefund:
		return true
	}
	return false
}

// IsCredit reports whether entries of this kind add coins to the balance.
// Refund entries claw back coins when the gateway returns the money, so they
// sit on the debit side.
func (k TransactionKind) IsCredit() bool {
	switch k {
	case TxKindCoinPurchase, TxKindSignupBonus, TxKindBonus, TxKindAdminGrant, TxKindMembershipCash:
		return true
	}
	return false
}

// PaymentMethod identifies how a balance-affecting event was funded.
type PaymentMethod string

const (
	PayMethodCard     PaymentMethod = "card"     // External card gateway
	PayMethodCrypto   PaymentMethod = "crypto"   // External crypto gateway
	PayMethodInternal PaymentMethod = "internal" // Coin-funded, no gateway
)

// HistoryBucket is the dashboard filter over transaction history.
type HistoryBucket string

const (
	BucketAll        HistoryBucket = "all"
	BucketCoins      HistoryBucket = "coins"
	BucketMembership HistoryBucket = "membership"
	BucketEbooks     HistoryBucket = "ebooks"
)

// Kinds returns the transaction kinds included in the bucket.
// An empty slice means no kind filter (all).
func (b HistoryBucket) Kinds() []TransactionKind {
	switch b {
	case BucketCoins:
		return []TransactionKind{TxKindCoinPurchase, TxKindSignupBonus, TxKindBonus, TxKindAdminGrant, TxKindChapterPurchase, TxKindRefund}
	case BucketMembership:
		return []TransactionKind{TxKindMembershipCoins, TxKindMembershipCash}
	case BucketEbooks:
		return []TransactionKind{TxKindEbookPurchase}
	default:
		return nil
	}
}

// CoinTransaction is an immutable ledger entry. Coins is the signed effect on
// the user's balance: positive for credits, negative for debits.
type CoinTransaction struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Kind          TransactionKind `json:"kind"`
	Coins         int64           `json:"coins"`
	BalanceAfter  int64           `json:"balance_after"`
	PaymentMethod PaymentMethod   `json:"payment_method"`

	// ExternalTxID is the gateway transaction id. UNIQUE when present; this
	// is the idempotency key that prevents a replayed callback from crediting
	// twice.
	ExternalTxID *string `json:"external_tx_id,omitempty"`
	OrderID      *string `json:"order_id,omitempty"`

	// ContentRef identifies the chapter/ebook for unlock debits.
	ContentRef *string `json:"content_ref,omitempty"`

	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// ========================================
// Orders
// ========================================

// OrderKind distinguishes what an order buys.
type OrderKind string

const (
	OrderKindCoins      OrderKind = "coins"
	OrderKindMembership OrderKind = "membership"
)

// OrderStatus is the order state machine. pending is the only non-terminal
// state; completed, failed and cancelled are absorbing.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderFailed || s == OrderCancelled
}

// CanTransition reports whether the state machine allows moving to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return s == OrderPending && next.Terminal()
}

// Order is an externally-paid (or coin-funded) purchase request.
// Amounts are USD cents for gateway orders and coins for coin-funded ones.
type Order struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      OrderKind `json:"kind"`
	PackageID string    `json:"package_id"`

	VoucherCode          *string `json:"voucher_code,omitempty"`
	VoucherReservationID *string `json:"-"`

	BaseCents     int64         `json:"base_cents"`
	DiscountCents int64         `json:"discount_cents"`
	TotalCents    int64         `json:"total_cents"`
	PaymentMethod PaymentMethod `json:"payment_method"`

	ExternalTxID *string `json:"external_tx_id,omitempty"`
	PaymentURL   *string `json:"payment_url,omitempty"`

	Status      OrderStatus `json:"status"`
	FailureCode string      `json:"failure_code,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// ========================================
// Vouchers
// ========================================

// DiscountType is how a voucher's value is interpreted.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// PurchaseType is the kind of purchase a voucher can apply to.
type PurchaseType string

const (
	PurchaseEbook      PurchaseType = "ebook"
	PurchaseCoins      PurchaseType = "coins"
	PurchaseMembership PurchaseType = "membership"
)

// Voucher is a redeemable discount code. Codes are stored uppercase and
// matched case-insensitively. UsedCount only moves on reservation commit,
// never at evaluation time.
type Voucher struct {
	Code          string         `json:"code"`
	DiscountType  DiscountType   `json:"discount_type"`
	DiscountValue int64          `json:"discount_value"`
	AppliesTo     []PurchaseType `json:"applies_to"`
	MinAmount     *int64         `json:"min_amount,omitempty"`
	MaxUses       *int64         `json:"max_uses,omitempty"`
	UsedCount     int64          `json:"used_count"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
	Active        bool           `json:"active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// AppliesToType reports whether the voucher covers the given purchase type.
func (v *Voucher) AppliesToType(pt PurchaseType) bool {
	for _, t := range v.AppliesTo {
		if t == pt {
			return true
		}
	}
	return false
}

// ReservationStatus tracks the two-phase voucher consumption.
type ReservationStatus string

const (
	ReservationHeld      ReservationStatus = "held"
	ReservationCommitted ReservationStatus = "committed"
	ReservationReleased  ReservationStatus = "released"
)

// VoucherReservation holds a redemption between evaluation and order
// completion so an abandoned checkout never consumes a use.
type VoucherReservation struct {
	ID        string            `json:"id"`
	Code      string            `json:"code"`
	UserID    string            `json:"user_id"`
	OrderID   *string           `json:"order_id,omitempty"`
	Status    ReservationStatus `json:"status"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
}

// ========================================
// Packages
// ========================================

// CoinPackage is a purchasable bundle of coins.
type CoinPackage struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Coins             int64     `json:"coins"`
	BonusCoins        int64     `json:"bonus_coins"`
	PriceCents        int64     `json:"price_cents"`
	GimmickPriceCents *int64    `json:"gimmick_price_cents,omitempty"`
	DiscountPercent   int64     `json:"discount_percent"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// PercentSaved returns the display "percent saved" value. When a gimmick
// (crossed-out) price is present it is the source of truth; otherwise the
// stored discount percentage is used as-is.
func (p *CoinPackage) PercentSaved() int64 {
	return percentSaved(p.GimmickPriceCents, p.PriceCents, p.DiscountPercent)
}

// MembershipPackage is a purchasable premium period. PriceCoins is the
// coin-funded price; zero means the package is cash-only.
type MembershipPackage struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Tier              string    `json:"tier"`
	DurationDays      int64     `json:"duration_days"`
	BonusCoins        int64     `json:"bonus_coins"`
	PriceCents        int64     `json:"price_cents"`
	PriceCoins        int64     `json:"price_coins"`
	GimmickPriceCents *int64    `json:"gimmick_price_cents,omitempty"`
	DiscountPercent   int64     `json:"discount_percent"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// PercentSaved returns the display "percent saved" value for the package.
func (p *MembershipPackage) PercentSaved() int64 {
	return percentSaved(p.GimmickPriceCents, p.PriceCents, p.DiscountPercent)
}

func percentSaved(gimmick *int64, price, stored int64) int64 {
	if gimmick == nil || *gimmick <= 0 {
		return stored
	}
	// round((gimmick - price) / gimmick * 100)
	return ((*gimmick-price)*100 + *gimmick/2) / *gimmick
}

// ========================================
// Memberships
// ========================================

// Membership is a user's premium entitlement. "Is premium" is derived:
// ExpiresAt strictly after now.
type Membership struct {
	UserID    string    `json:"user_id"`
	Tier      string    `json:"tier"`
	ExpiresAt time.Time `json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveAt reports whether the membership grants premium at the given time.
func (m *Membership) ActiveAt(now time.Time) bool {
	return m != nil && m.ExpiresAt.After(now)
}

// ExtendedExpiry returns the expiry after granting days more at time now:
// a still-active membership extends from its current expiry, a lapsed one
// restarts from now.
func (m *Membership) ExtendedExpiry(now time.Time, days int64) time.Time {
	base := now
	if m != nil && m.ExpiresAt.After(now) {
		base = m.ExpiresAt
	}
	return base.AddDate(0, 0, int(days))
}
