package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/inkwave/commerce-api/internal/models"
)

// SQLiteVoucherRepository implements VoucherRepository for SQLite.
type SQLiteVoucherRepository struct {
	db *sql.DB
}

// NewSQLiteVoucherRepository creates a new SQLite voucher repository.
func NewSQLiteVoucherRepository(db *sql.DB) *SQLiteVoucherRepository {
	return &SQLiteVoucherRepository{db: db}
}

func (r *SQLiteVoucherRepository) Upsert(ctx context.Context, voucher *models.Voucher) error {
	appliesTo, err := json.Marshal(voucher.AppliesTo)
	if err != nil {
		return err
	}
	var expiresAt *string
	if voucher.ExpiresAt != nil {
		s := voucher.ExpiresAt.UTC().Format(time.RFC3339)
		expiresAt = &s
	}
	query := `INSERT INTO vouchers (code, discount_type, discount_value, applies_to, max_uses, min_amount, used_count, expires_at, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			discount_type = excluded.discount_type,
			discount_value = excluded.discount_value,
			applies_to = excluded.applies_to,
			max_uses = excluded.max_uses,
			min_amount = excluded.min_amount,
			expires_at = excluded.expires_at,
			active = excluded.active,
			updated_at = excluded.updated_at`
	_, err = r.db.ExecContext(ctx, query,
		voucher.Code, voucher.DiscountType, voucher.DiscountValue, string(appliesTo),
		voucher.MaxUses, voucher.MinAmount, voucher.UsedCount, expiresAt, voucher.Active,
		voucher.CreatedAt.UTC().Format(time.RFC3339), voucher.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

const selectVoucherColumns = `SELECT code, discount_type, discount_value, applies_to, max_uses, min_amount, used_count, expires_at, active, created_at, updated_at FROM vouchers`

func (r *SQLiteVoucherRepository) GetByCode(ctx context.Context, code string) (*models.Voucher, error) {
	row := r.db.QueryRowContext(ctx, selectVoucherColumns+` WHERE code = ?`, code)
	voucher, err := scanVoucher(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return voucher, nil
}

func (r *SQLiteVoucherRepository) List(ctx context.Context, includeInactive bool) ([]*models.Voucher, error) {
	query := selectVoucherColumns
	if !includeInactive {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var vouchers []*models.Voucher
	for rows.Next() {
		voucher, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, voucher)
	}
	return vouchers, rows.Err()
}

func (r *SQLiteVoucherRepository) Delete(ctx context.Context, code string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM vouchers WHERE code = ?`, code)
	return err
}

func (r *SQLiteVoucherRepository) CreateReservation(ctx context.Context, res *models.VoucherReservation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO voucher_reservations (id, code, user_id, order_id, status, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.Code, res.UserID, res.OrderID, res.Status,
		res.ExpiresAt.UTC().Format(time.RFC3339), res.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (r *SQLiteVoucherRepository) GetReservation(ctx context.Context, id string) (*models.VoucherReservation, error) {
	var res models.VoucherReservation
	var orderID sql.NullString
	var expiresAt, createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, code, user_id, order_id, status, expires_at, created_at FROM voucher_reservations WHERE id = ?`, id,
	).Scan(&res.ID, &res.Code, &res.UserID, &orderID, &res.Status, &expiresAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if orderID.Valid {
		res.OrderID = &orderID.String
	}
	res.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
	res.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &res, nil
}

func (r *SQLiteVoucherRepository) AttachOrder(ctx context.Context, reservationID, orderID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE voucher_reservations SET order_id = ? WHERE id = ? AND status = ?`,
		orderID, reservationID, models.ReservationHeld,
	)
	return err
}

// CommitReservation consumes a hold: the reservation flips to committed and
// the voucher's used_count increments, both guarded so a reservation commits
// at most once and used_count never passes max_uses.
func (r *SQLiteVoucherRepository) CommitReservation(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE voucher_reservations SET status = ? WHERE id = ? AND status = ?`,
		models.ReservationCommitted, id, models.ReservationHeld,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE vouchers SET used_count = used_count + 1, updated_at = ?
		 WHERE code = (SELECT code FROM voucher_reservations WHERE id = ?)
		 AND (max_uses IS NULL OR used_count < max_uses)`,
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return false, err
	}
	affected, err = result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		// Voucher exhausted between hold and commit; leave the hold intact.
		return false, nil
	}

	return true, tx.Commit()
}

func (r *SQLiteVoucherRepository) ReleaseReservation(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE voucher_reservations SET status = ? WHERE id = ? AND status = ?`,
		models.ReservationReleased, id, models.ReservationHeld,
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

// CountActiveReservations counts unexpired holds on a voucher code.
func (r *SQLiteVoucherRepository) CountActiveReservations(ctx context.Context, code string, now time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM voucher_reservations WHERE code = ? AND status = ? AND expires_at > ?`,
		code, models.ReservationHeld, now.UTC().Format(time.RFC3339),
	).Scan(&count)
	return count, err
}

func (r *SQLiteVoucherRepository) ExpireReservations(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE voucher_reservations SET status = ? WHERE status = ? AND expires_at < ?`,
		models.ReservationReleased, models.ReservationHeld, now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanVoucher(row rowScanner) (*models.Voucher, error) {
	var voucher models.Voucher
	var appliesTo string
	var maxUses, minAmount sql.NullInt64
	var expiresAt sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&voucher.Code, &voucher.DiscountType, &voucher.DiscountValue,
		&appliesTo, &maxUses, &minAmount, &voucher.UsedCount, &expiresAt,
		&voucher.Active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(appliesTo), &voucher.AppliesTo); err != nil {
		return nil, err
	}
	if maxUses.Valid {
		voucher.MaxUses = &maxUses.Int64
	}
	if minAmount.Valid {
		voucher.MinAmount = &minAmount.Int64
	}
	if expiresAt.Valid {
		t, _ := time.Parse(time.RFC3339, expiresAt.String)
		voucher.ExpiresAt = &t
	}
	voucher.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	voucher.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &voucher, nil
}
