package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	appconfig "github.com/inkwave/commerce-api/internal/config"
	"github.com/inkwave/commerce-api/internal/database/migrations"
	"github.com/inkwave/commerce-api/internal/models"
	"github.com/inkwave/commerce-api/internal/payment"
	"github.com/inkwave/commerce-api/internal/repository"
	_ "github.com/tursodatabase/go-libsql"
)

// fakeGateway records initiations and hands out sequential payment ids.
type fakeGateway struct {
	mu        sync.Mutex
	calls     int
	failNext  bool
	lastOrder *models.Order
}

func (g *fakeGateway) Initiate(ctx context.Context, order *models.Order, description string) (*payment.InitiateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failNext {
		g.failNext = false
		return nil, payment.ErrGatewayUnavailable
	}
	g.calls++
	g.lastOrder = order
	return &payment.InitiateResult{
		ExternalTxID: fmt.Sprintf("ext_tx_%d", g.calls),
		PaymentURL:   fmt.Sprintf("https://pay.test/%d", g.calls),
	}, nil
}

type testEnv struct {
	cfg        *appconfig.Config
	db         *sql.DB
	repos      *repository.Repositories
	gateway    *fakeGateway
	ledger     *LedgerService
	voucher    *VoucherService
	catalog    *CatalogService
	membership *MembershipService
	order      *OrderService
	account    *AccountService
}

// newTestEnv wires services over an in-memory database with the default
// catalog seeded and a fake gateway for both payment methods.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	// Every pooled connection to :memory: opens a distinct database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := &appconfig.Config{
		BaseURL:               "http://localhost:8080",
		SignupBonusCoins:      100,
		VoucherReservationTTL: 30 * time.Minute,
		MaxPendingAge:         24 * time.Hour,
		SweepInterval:         5 * time.Minute,
		OrderPollSeconds:      3,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repos := repository.NewRepositories(db)
	storage, err := NewStorageService(cfg, logger)
	if err != nil {
		t.Fatalf("failed to create storage service: %v", err)
	}

	ledger := NewLedgerService(repos, logger)
	voucher := NewVoucherService(repos, cfg.VoucherReservationTTL, logger)
	catalog := NewCatalogService(cfg, repos, storage, logger)
	membership := NewMembershipService(repos, ledger, logger)

	gateway := &fakeGateway{}
	order := NewOrderService(cfg, repos, ledger, voucher, membership, map[string]payment.Gateway{
		gatewayCard:   gateway,
		gatewayCrypto: gateway,
	}, logger)
	account := NewAccountService(cfg, repos, ledger, logger)

	if err := catalog.SeedDefaults(context.Background()); err != nil {
		t.Fatalf("failed to seed catalog: %v", err)
	}

	return &testEnv{
		cfg:        cfg,
		db:         db,
		repos:      repos,
		gateway:    gateway,
		ledger:     ledger,
		voucher:    voucher,
		catalog:    catalog,
		membership: membership,
		order:      order,
		account:    account,
	}
}

// fund credits a user with spendable coins.
func (e *testEnv) fund(t *testing.T, userID string, coins int64) {
	t.Helper()
	if _, err := e.ledger.AdminGrant(context.Background(), userID, coins, "test funding"); err != nil {
		t.Fatalf("failed to fund %s: %v", userID, err)
	}
}

// envExec runs raw SQL against the test database (used to backdate rows).
func envExec(e *testEnv, query string, args ...any) (sql.Result, error) {
	return e.db.Exec(query, args...)
}

// addVoucher installs a voucher definition.
func (e *testEnv) addVoucher(t *testing.T, v *models.Voucher) {
	t.Helper()
	if err := e.voucher.Upsert(context.Background(), v); err != nil {
		t.Fatalf("failed to add voucher: %v", err)
	}
}
