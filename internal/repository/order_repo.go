package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/inkwave/commerce-api/internal/models"
)

// SQLiteOrderRepository implements OrderRepository for SQLite.
type SQLiteOrderRepository struct {
	db *sql.DB
}

// NewSQLiteOrderRepository creates a new SQLite order repository.
func NewSQLiteOrderRepository(db *sql.DB) *SQLiteOrderRepository {
	return &SQLiteOrderRepository{db: db}
}

const selectOrderColumns = `SELECT id, user_id, kind, package_id, voucher_code, voucher_reservation_id, base_cents, discount_cents, total_cents, payment_method, external_tx_id, payment_url, status, failure_code, created_at, completed_at FROM orders`

func (r *SQLiteOrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `INSERT INTO orders (id, user_id, kind, package_id, voucher_code, voucher_reservation_id, base_cents, discount_cents, total_cents, payment_method, external_tx_id, payment_url, status, failure_code, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var completedAt *string
	if order.CompletedAt != nil {
		s := order.CompletedAt.UTC().Format(time.RFC3339)
		completedAt = &s
	}

	_, err := r.db.ExecContext(ctx, query,
		order.ID, order.UserID, order.Kind, order.PackageID,
		order.VoucherCode, order.VoucherReservationID,
		order.BaseCents, order.DiscountCents, order.TotalCents,
		order.PaymentMethod, order.ExternalTxID, order.PaymentURL,
		order.Status, nullIfEmpty(order.FailureCode),
		order.CreatedAt.UTC().Format(time.RFC3339), completedAt,
	)
	return err
}

func (r *SQLiteOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, selectOrderColumns+` WHERE id = ?`, id)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *SQLiteOrderRepository) GetByExternalTxID(ctx context.Context, externalTxID string) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, selectOrderColumns+` WHERE external_tx_id = ?`, externalTxID)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *SQLiteOrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		selectOrderColumns+` WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (r *SQLiteOrderRepository) SetExternalTxID(ctx context.Context, id, externalTxID, paymentURL string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE orders SET external_tx_id = ?, payment_url = ? WHERE id = ?`,
		externalTxID, paymentURL, id,
	)
	return err
}

// Transition moves a pending order into a terminal status. The WHERE clause
// pins the current status to 'pending' so the first caller wins and any
// replayed callback sees affected == 0.
func (r *SQLiteOrderRepository) Transition(ctx context.Context, id string, next models.OrderStatus, failureCode string, completedAt *time.Time) (bool, error) {
	var completed *string
	if completedAt != nil {
		s := completedAt.UTC().Format(time.RFC3339)
		completed = &s
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, failure_code = ?, completed_at = ? WHERE id = ? AND status = ?`,
		next, nullIfEmpty(failureCode), completed, id, models.OrderPending,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *SQLiteOrderRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		selectOrderColumns+` WHERE status = ? AND created_at < ? ORDER BY created_at ASC LIMIT ?`,
		models.OrderPending, before.UTC().Format(time.RFC3339), limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (r *SQLiteOrderRepository) CountByStatus(ctx context.Context) (map[models.OrderStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[models.OrderStatus]int)
	for rows.Next() {
		var status models.OrderStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *SQLiteOrderRepository) DeleteUserData(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE user_id = ?`, userID)
	return err
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	var voucherCode, reservationID, externalTxID, paymentURL, failureCode, completedAt sql.NullString
	var createdAt string
	if err := row.Scan(&order.ID, &order.UserID, &order.Kind, &order.PackageID,
		&voucherCode, &reservationID,
		&order.BaseCents, &order.DiscountCents, &order.TotalCents,
		&order.PaymentMethod, &externalTxID, &paymentURL,
		&order.Status, &failureCode, &createdAt, &completedAt); err != nil {
		return nil, err
	}
	if voucherCode.Valid {
		order.VoucherCode = &voucherCode.String
	}
	if reservationID.Valid {
		order.VoucherReservationID = &reservationID.String
	}
	if externalTxID.Valid {
		order.ExternalTxID = &externalTxID.String
	}
	if paymentURL.Valid {
		order.PaymentURL = &paymentURL.String
	}
	order.FailureCode = failureCode.String
	order.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if completedAt.Valid {
		t, _ := time.Parse(time.RFC3339, completedAt.String)
		order.CompletedAt = &t
	}
	return &order, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
