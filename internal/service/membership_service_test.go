package service

import (
	"context"
	"testing"
	"time"

	"github.com/inkwave/commerce-api/internal/models"
)

func TestMembershipStatusInactiveByDefault(t *testing.T) {
	env := newTestEnv(t)

	status, err := env.membership.GetStatus(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("get status failed: %v", err)
	}
	if status.Active || status.ExpiresAt != nil {
		t.Errorf("expected inactive status, got %+v", status)
	}
}

func TestExtendStacksOnRemainingTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pkg, err := env.catalog.GetMembershipPackage(ctx, "prem_month")
	if err != nil {
		t.Fatalf("get package failed: %v", err)
	}

	before := time.Now().UTC()
	m, err := env.membership.ExtendFromPackage(ctx, "user_1", pkg, nil)
	if err != nil {
		t.Fatalf("first extend failed: %v", err)
	}
	firstExpiry := m.ExpiresAt
	wantFirst := before.Add(time.Duration(pkg.DurationDays) * 24 * time.Hour)
	if firstExpiry.Before(wantFirst.Add(-time.Minute)) || firstExpiry.After(wantFirst.Add(time.Minute)) {
		t.Errorf("first expiry %v not ~%d days out", firstExpiry, pkg.DurationDays)
	}

	// A second purchase while active extends from the current expiry, not now.
	m, err = env.membership.ExtendFromPackage(ctx, "user_1", pkg, nil)
	if err != nil {
		t.Fatalf("second extend failed: %v", err)
	}
	// The stored expiry is truncated to seconds by RFC3339 storage.
	wantSecond := firstExpiry.Truncate(time.Second).Add(time.Duration(pkg.DurationDays) * 24 * time.Hour)
	if !m.ExpiresAt.Equal(wantSecond) {
		t.Errorf("expected stacked expiry %v, got %v", wantSecond, m.ExpiresAt)
	}

	premium, err := env.membership.IsPremium(ctx, "user_1")
	if err != nil {
		t.Fatalf("is premium failed: %v", err)
	}
	if !premium {
		t.Error("expected premium after extension")
	}
}

func TestExtendAfterExpiryStartsFromNow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Install a membership that lapsed a year ago.
	past := time.Now().UTC().Add(-365 * 24 * time.Hour)
	if err := env.repos.Membership.Upsert(ctx, &models.Membership{
		UserID:    "user_1",
		Tier:      "premium",
		ExpiresAt: past,
		UpdatedAt: past,
	}); err != nil {
		t.Fatalf("seed membership failed: %v", err)
	}

	pkg, err := env.catalog.GetMembershipPackage(ctx, "prem_month")
	if err != nil {
		t.Fatalf("get package failed: %v", err)
	}
	before := time.Now().UTC()
	m, err := env.membership.ExtendFromPackage(ctx, "user_1", pkg, nil)
	if err != nil {
		t.Fatalf("extend failed: %v", err)
	}

	// The lapsed time is gone; the new expiry counts from now.
	want := before.Add(time.Duration(pkg.DurationDays) * 24 * time.Hour)
	if m.ExpiresAt.Before(want.Add(-time.Minute)) || m.ExpiresAt.After(want.Add(time.Minute)) {
		t.Errorf("expected expiry ~%v, got %v", want, m.ExpiresAt)
	}
}

func TestExtendCreditsBundledBonus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pkg, err := env.catalog.GetMembershipPackage(ctx, "prem_quarter")
	if err != nil {
		t.Fatalf("get package failed: %v", err)
	}
	if pkg.BonusCoins == 0 {
		t.Fatal("test package must carry bonus coins")
	}

	if _, err := env.membership.ExtendFromPackage(ctx, "user_1", pkg, nil); err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	balance, err := env.ledger.GetBalance(ctx, "user_1")
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if balance.CoinBalance != pkg.BonusCoins {
		t.Errorf("expected %d bonus coins, got %d", pkg.BonusCoins, balance.CoinBalance)
	}
}
