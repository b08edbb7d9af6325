package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/inkwave/commerce-api/internal/models"
)

// SQLiteMembershipRepository implements MembershipRepository for SQLite.
type SQLiteMembershipRepository struct {
	db *sql.DB
}

// NewSQLiteMembershipRepository creates a new SQLite membership repository.
func NewSQLiteMembershipRepository(db *sql.DB) *SQLiteMembershipRepository {
	return &SQLiteMembershipRepository{db: db}
}

func (r *SQLiteMembershipRepository) Get(ctx context.Context, userID string) (*models.Membership, error) {
	var m models.Membership
	var expiresAt, updatedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, tier, expires_at, updated_at FROM memberships WHERE user_id = ?`, userID,
	).Scan(&m.UserID, &m.Tier, &expiresAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt)
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &m, nil
}

func (r *SQLiteMembershipRepository) Upsert(ctx context.Context, m *models.Membership) error {
	query := `INSERT INTO memberships (user_id, tier, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			tier = excluded.tier,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query, m.UserID, m.Tier,
		m.ExpiresAt.UTC().Format(time.RFC3339), m.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

func (r *SQLiteMembershipRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM memberships WHERE user_id = ?`, userID)
	return err
}
