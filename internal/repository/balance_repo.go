package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/inkwave/commerce-api/internal/models"
)

// SQLiteBalanceRepository implements BalanceRepository for SQLite.
type SQLiteBalanceRepository struct {
	db *sql.DB
}

// NewSQLiteBalanceRepository creates a new SQLite balance repository.
func NewSQLiteBalanceRepository(db *sql.DB) *SQLiteBalanceRepository {
	return &SQLiteBalanceRepository{db: db}
}

func (r *SQLiteBalanceRepository) Get(ctx context.Context, userID string) (*models.UserBalance, error) {
	query := `SELECT user_id, coin_balance, lifetime_earned, lifetime_spent, updated_at FROM user_balances WHERE user_id = ?`
	var balance models.UserBalance
	var updatedAt string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&balance.UserID, &balance.CoinBalance, &balance.LifetimeEarned, &balance.LifetimeSpent, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	balance.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &balance, nil
}

// Apply writes a ledger entry and updates the balance in one transaction.
// The debit guard (coin_balance + delta >= 0 in the UPDATE predicate) plus
// the table's CHECK constraint means two concurrent debits racing for the
// last coins serialize: exactly one wins, the other gets
// ErrInsufficientBalance and leaves no ledger row behind.
func (r *SQLiteBalanceRepository) Apply(ctx context.Context, entry *models.CoinTransaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := entry.CreatedAt.UTC().Format(time.RFC3339)

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_balances (user_id, coin_balance, lifetime_earned, lifetime_spent, updated_at) VALUES (?, 0, 0, 0, ?)`,
		entry.UserID, now,
	); err != nil {
		return err
	}

	var result sql.Result
	if entry.Coins >= 0 {
		result, err = tx.ExecContext(ctx,
			`UPDATE user_balances SET coin_balance = coin_balance + ?, lifetime_earned = lifetime_earned + ?, updated_at = ? WHERE user_id = ?`,
			entry.Coins, entry.Coins, now, entry.UserID,
		)
	} else {
		result, err = tx.ExecContext(ctx,
			`UPDATE user_balances SET coin_balance = coin_balance + ?, lifetime_spent = lifetime_spent + ?, updated_at = ? WHERE user_id = ? AND coin_balance + ? >= 0`,
			entry.Coins, -entry.Coins, now, entry.UserID, entry.Coins,
		)
	}
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientBalance
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT coin_balance FROM user_balances WHERE user_id = ?`, entry.UserID,
	).Scan(&entry.BalanceAfter); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO coin_transactions (id, user_id, kind, coins, balance_after, payment_method, external_tx_id, order_id, content_ref, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Kind, entry.Coins, entry.BalanceAfter,
		entry.PaymentMethod, entry.ExternalTxID, entry.OrderID, entry.ContentRef,
		entry.Description, now,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *SQLiteBalanceRepository) GetByExternalTxID(ctx context.Context, externalTxID string) (*models.CoinTransaction, error) {
	query := selectTransactionColumns + ` WHERE external_tx_id = ?`
	row := r.db.QueryRowContext(ctx, query, externalTxID)
	entry, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *SQLiteBalanceRepository) ListByUser(ctx context.Context, userID string, kinds []models.TransactionKind, limit, offset int) ([]*models.CoinTransaction, error) {
	query := selectTransactionColumns + ` WHERE user_id = ?`
	args := []any{userID}
	query, args = appendKindFilter(query, args, kinds)
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.CoinTransaction
	for rows.Next() {
		entry, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *SQLiteBalanceRepository) CountByUser(ctx context.Context, userID string, kinds []models.TransactionKind) (int, error) {
	query := `SELECT COUNT(*) FROM coin_transactions WHERE user_id = ?`
	args := []any{userID}
	query, args = appendKindFilter(query, args, kinds)
	var count int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

func (r *SQLiteBalanceRepository) SumByUser(ctx context.Context, userID string) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(coins), 0) FROM coin_transactions WHERE user_id = ?`, userID,
	).Scan(&sum)
	return sum, err
}

func (r *SQLiteBalanceRepository) GetStats(ctx context.Context) (*LedgerStats, error) {
	var stats LedgerStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(coin_balance), 0), COALESCE(SUM(lifetime_earned), 0), COALESCE(SUM(lifetime_spent), 0)
		FROM user_balances
	`).Scan(&stats.TotalUsers, &stats.CoinsInCirculation, &stats.LifetimeCredited, &stats.LifetimeDebited)
	if err != nil {
		return nil, err
	}
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM coin_transactions`).Scan(&stats.TotalTransactions)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *SQLiteBalanceRepository) DeleteUserData(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM coin_transactions WHERE user_id = ?`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_balances WHERE user_id = ?`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

const selectTransactionColumns = `SELECT id, user_id, kind, coins, balance_after, payment_method, external_tx_id, order_id, content_ref, description, created_at FROM coin_transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.CoinTransaction, error) {
	var entry models.CoinTransaction
	var externalTxID, orderID, contentRef sql.NullString
	var createdAt string
	if err := row.Scan(&entry.ID, &entry.UserID, &entry.Kind, &entry.Coins, &entry.BalanceAfter,
		&entry.PaymentMethod, &externalTxID, &orderID, &contentRef, &entry.Description, &createdAt); err != nil {
		return nil, err
	}
	if externalTxID.Valid {
		entry.ExternalTxID = &externalTxID.String
	}
	if orderID.Valid {
		entry.OrderID = &orderID.String
	}
	if contentRef.Valid {
		entry.ContentRef = &contentRef.String
	}
	entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &entry, nil
}

func appendKindFilter(query string, args []any, kinds []models.TransactionKind) (string, []any) {
	if len(kinds) == 0 {
		return query, args
	}
	placeholders := make([]string, len(kinds))
	for i, kind := range kinds {
		placeholders[i] = "?"
		args = append(args, kind)
	}
	query += fmt.Sprintf(" AND kind IN (%s)", strings.Join(placeholders, ", "))
	return query, args
}
