package service

import (
	"context"
	"errors"
	"testing"

	"github.com/inkwave/commerce-api/internal/models"
)

func TestCreditRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.ledger.Credit(ctx, CreditRequest{UserID: "u1", Kind: models.TxKindBonus, Coins: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero coins, got %v", err)
	}
	if _, err := env.ledger.Credit(ctx, CreditRequest{UserID: "u1", Kind: models.TxKindBonus, Coins: -5}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for negative coins, got %v", err)
	}
	// Debit kinds cannot be credited.
	if _, err := env.ledger.Credit(ctx, CreditRequest{UserID: "u1", Kind: models.TxKindChapterPurchase, Coins: 10}); err == nil {
		t.Error("expected error crediting a debit kind")
	}
	if _, err := env.ledger.Credit(ctx, CreditRequest{UserID: "u1", Kind: "mystery", Coins: 10}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestDebitRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "u1", 1000)

	if _, err := env.ledger.Debit(ctx, DebitRequest{UserID: "u1", Kind: models.TxKindChapterPurchase, Coins: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := env.ledger.Debit(ctx, DebitRequest{UserID: "u1", Kind: models.TxKindBonus, Coins: 10}); err == nil {
		t.Error("expected error debiting a credit kind")
	}
}

func TestPurchaseContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "u1", 100)

	entry, err := env.ledger.PurchaseContent(ctx, "u1", models.PurchaseEbook, "ebook_42", 60)
	if err != nil {
		t.Fatalf("ebook purchase failed: %v", err)
	}
	if entry.Kind != models.TxKindEbookPurchase {
		t.Errorf("expected ebook kind, got %s", entry.Kind)
	}
	if entry.ContentRef == nil || *entry.ContentRef != "ebook_42" {
		t.Error("expected content ref on the ledger entry")
	}
	if entry.BalanceAfter != 40 {
		t.Errorf("expected balance 40, got %d", entry.BalanceAfter)
	}

	// Anything that is not an ebook is a chapter unlock.
	entry, err = env.ledger.PurchaseContent(ctx, "u1", models.PurchaseCoins, "ch_7", 10)
	if err != nil {
		t.Fatalf("chapter purchase failed: %v", err)
	}
	if entry.Kind != models.TxKindChapterPurchase {
		t.Errorf("expected chapter kind, got %s", entry.Kind)
	}

	// Overspending fails without touching the ledger.
	if _, err := env.ledger.PurchaseContent(ctx, "u1", models.PurchaseEbook, "ebook_43", 500); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	balance, err := env.ledger.GetBalance(ctx, "u1")
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if balance.CoinBalance != 30 {
		t.Errorf("expected balance 30 after failed purchase, got %d", balance.CoinBalance)
	}
}

func TestGetBalanceUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	balance, err := env.ledger.GetBalance(context.Background(), "never_seen")
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if balance.CoinBalance != 0 || balance.UserID != "never_seen" {
		t.Errorf("expected fresh zero balance, got %+v", balance)
	}
}

func TestHasSufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "u1", 50)

	ok, err := env.ledger.HasSufficientBalance(ctx, "u1", 50)
	if err != nil || !ok {
		t.Errorf("expected 50 coins to cover 50, got ok=%v err=%v", ok, err)
	}
	ok, err = env.ledger.HasSufficientBalance(ctx, "u1", 51)
	if err != nil || ok {
		t.Errorf("expected 50 coins not to cover 51, got ok=%v err=%v", ok, err)
	}
	ok, err = env.ledger.HasSufficientBalance(ctx, "never_seen", 1)
	if err != nil || ok {
		t.Errorf("expected unknown user to have no coins, got ok=%v err=%v", ok, err)
	}
}

func TestGetHistoryClampsPaging(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "u1", 10)

	entries, total, err := env.ledger.GetHistory(ctx, "u1", models.BucketAll, -1, -10)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if total != 1 || len(entries) != 1 {
		t.Errorf("expected one entry, got %d (total %d)", len(entries), total)
	}

	if _, _, err := env.ledger.GetHistory(ctx, "u1", models.BucketAll, 5000, 0); err != nil {
		t.Fatalf("oversized limit must clamp, got error: %v", err)
	}
}

func TestReconcile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, "u1", 300)

	if _, err := env.ledger.Debit(ctx, DebitRequest{
		UserID:      "u1",
		Kind:        models.TxKindChapterPurchase,
		Coins:       120,
		Description: "Chapter ch_1",
	}); err != nil {
		t.Fatalf("debit failed: %v", err)
	}

	stored, derived, err := env.ledger.Reconcile(ctx, "u1")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if stored != 180 || derived != 180 {
		t.Errorf("expected 180/180, got %d/%d", stored, derived)
	}
}
