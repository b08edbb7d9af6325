package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/inkwave/commerce-api/internal/database/migrations"
	"github.com/inkwave/commerce-api/internal/models"
	"github.com/oklog/ulid/v2"
	_ "github.com/tursodatabase/go-libsql"
)

// setupTestDB creates an in-memory SQLite database for testing.
// It runs migrations and returns a database connection that will be cleaned up
// when the test completes.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Every pooled connection to :memory: opens a distinct database, so the
	// whole test must run over a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// setupTestRepos creates all repositories using a test database.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db := setupTestDB(t)
	return NewRepositories(db)
}

func newTestEntry(userID string, kind models.TransactionKind, coins int64) *models.CoinTransaction {
	return &models.CoinTransaction{
		ID:            ulid.Make().String(),
		UserID:        userID,
		Kind:          kind,
		Coins:         coins,
		PaymentMethod: models.PayMethodInternal,
		CreatedAt:     time.Now().UTC(),
	}
}

func newTestOrder(userID string, status models.OrderStatus) *models.Order {
	return &models.Order{
		ID:            ulid.Make().String(),
		UserID:        userID,
		Kind:          models.OrderKindCoins,
		PackageID:     "coins_reader",
		BaseCents:     499,
		TotalCents:    499,
		PaymentMethod: models.PayMethodCard,
		Status:        status,
		CreatedAt:     time.Now().UTC(),
	}
}

func newTestVoucher(code string) *models.Voucher {
	now := time.Now().UTC()
	return &models.Voucher{
		Code:          code,
		DiscountType:  models.DiscountPercent,
		DiscountValue: 10,
		AppliesTo:     []models.PurchaseType{models.PurchaseCoins},
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
