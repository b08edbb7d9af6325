package repository

import (
	"context"
	"testing"
	"time"

	"github.com/inkwave/commerce-api/internal/models"
)

func TestOrderCreateAndGet(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	order := newTestOrder("user_1", models.OrderPending)
	code := "WELCOME10"
	order.VoucherCode = &code
	order.DiscountCents = 50
	order.TotalCents = 449

	if err := repos.Order.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repos.Order.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected order")
	}
	if got.Status != models.OrderPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
	if got.VoucherCode == nil || *got.VoucherCode != "WELCOME10" {
		t.Error("voucher code not round-tripped")
	}
	if got.TotalCents != 449 {
		t.Errorf("expected total 449, got %d", got.TotalCents)
	}
	if got.CompletedAt != nil {
		t.Error("expected nil completed_at")
	}

	missing, err := repos.Order.GetByID(ctx, "order_nope")
	if err != nil {
		t.Fatalf("get missing failed: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing order")
	}
}

func TestOrderSetExternalTxID(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	order := newTestOrder("user_1", models.OrderPending)
	if err := repos.Order.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repos.Order.SetExternalTxID(ctx, order.ID, "cs_test_123", "https://pay.example/cs_test_123"); err != nil {
		t.Fatalf("set external tx id failed: %v", err)
	}

	got, err := repos.Order.GetByExternalTxID(ctx, "cs_test_123")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got == nil || got.ID != order.ID {
		t.Fatal("expected to find order by external tx id")
	}
	if got.PaymentURL == nil || *got.PaymentURL != "https://pay.example/cs_test_123" {
		t.Error("payment url not stored")
	}
}

func TestOrderTransitionOnce(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	order := newTestOrder("user_1", models.OrderPending)
	if err := repos.Order.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	now := time.Now().UTC()
	ok, err := repos.Order.Transition(ctx, order.ID, models.OrderCompleted, "", &now)
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if !ok {
		t.Fatal("expected first transition to win")
	}

	// A replayed callback tries to settle the same order again.
	ok, err = repos.Order.Transition(ctx, order.ID, models.OrderFailed, "gateway_failed", nil)
	if err != nil {
		t.Fatalf("second transition errored: %v", err)
	}
	if ok {
		t.Fatal("expected second transition to be a no-op")
	}

	got, err := repos.Order.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != models.OrderCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
	if got.FailureCode != "" {
		t.Errorf("expected empty failure code, got %q", got.FailureCode)
	}
}

func TestOrderTransitionFailureCode(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	order := newTestOrder("user_1", models.OrderPending)
	if err := repos.Order.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	ok, err := repos.Order.Transition(ctx, order.ID, models.OrderFailed, "expired", nil)
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if !ok {
		t.Fatal("expected transition to succeed")
	}

	got, _ := repos.Order.GetByID(ctx, order.ID)
	if got.Status != models.OrderFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
	if got.FailureCode != "expired" {
		t.Errorf("expected failure code expired, got %q", got.FailureCode)
	}
}

func TestOrderListStalePending(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	old := newTestOrder("user_1", models.OrderPending)
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	fresh := newTestOrder("user_1", models.OrderPending)
	settled := newTestOrder("user_1", models.OrderPending)
	settled.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)

	for _, o := range []*models.Order{old, fresh, settled} {
		if err := repos.Order.Create(ctx, o); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	if _, err := repos.Order.Transition(ctx, settled.ID, models.OrderCancelled, "user_cancelled", nil); err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	stale, err := repos.Order.ListStalePending(ctx, time.Now().UTC().Add(-24*time.Hour), 100)
	if err != nil {
		t.Fatalf("list stale failed: %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("expected 1 stale order, got %d", len(stale))
	}
	if stale[0].ID != old.ID {
		t.Errorf("expected stale order %s, got %s", old.ID, stale[0].ID)
	}
}

func TestOrderCountByStatus(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	a := newTestOrder("user_1", models.OrderPending)
	b := newTestOrder("user_1", models.OrderPending)
	c := newTestOrder("user_2", models.OrderPending)
	for _, o := range []*models.Order{a, b, c} {
		if err := repos.Order.Create(ctx, o); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	now := time.Now().UTC()
	if _, err := repos.Order.Transition(ctx, a.ID, models.OrderCompleted, "", &now); err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	counts, err := repos.Order.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if counts[models.OrderPending] != 2 {
		t.Errorf("expected 2 pending, got %d", counts[models.OrderPending])
	}
	if counts[models.OrderCompleted] != 1 {
		t.Errorf("expected 1 completed, got %d", counts[models.OrderCompleted])
	}
}

func TestOrderListByUser(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		o := newTestOrder("user_1", models.OrderPending)
		o.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := repos.Order.Create(ctx, o); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	if err := repos.Order.Create(ctx, newTestOrder("user_2", models.OrderPending)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	orders, err := repos.Order.ListByUser(ctx, "user_1", 2, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 2 {
		t.Errorf("expected 2 orders with limit, got %d", len(orders))
	}

	rest, err := repos.Order.ListByUser(ctx, "user_1", 10, 2)
	if err != nil {
		t.Fatalf("list offset failed: %v", err)
	}
	if len(rest) != 1 {
		t.Errorf("expected 1 order at offset 2, got %d", len(rest))
	}
}
