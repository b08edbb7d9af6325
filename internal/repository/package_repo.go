package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/inkwave/commerce-api/internal/models"
)

// SQLitePackageRepository implements PackageRepository for SQLite.
type SQLitePackageRepository struct {
	db *sql.DB
}

// NewSQLitePackageRepository creates a new SQLite package repository.
func NewSQLitePackageRepository(db *sql.DB) *SQLitePackageRepository {
	return &SQLitePackageRepository{db: db}
}

func (r *SQLitePackageRepository) UpsertCoinPackage(ctx context.Context, pkg *models.CoinPackage) error {
	query := `INSERT INTO coin_packages (id, name, coins, bonus_coins, price_cents, gimmick_price_cents, discount_percent, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			coins = excluded.coins,
			bonus_coins = excluded.bonus_coins,
			price_cents = excluded.price_cents,
			gimmick_price_cents = excluded.gimmick_price_cents,
			discount_percent = excluded.discount_percent,
			active = excluded.active,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		pkg.ID, pkg.Name, pkg.Coins, pkg.BonusCoins, pkg.PriceCents,
		pkg.GimmickPriceCents, pkg.DiscountPercent, pkg.Active,
		pkg.CreatedAt.UTC().Format(time.RFC3339), pkg.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

const selectCoinPackageColumns = `SELECT id, name, coins, bonus_coins, price_cents, gimmick_price_cents, discount_percent, active, created_at, updated_at FROM coin_packages`

func (r *SQLitePackageRepository) GetCoinPackage(ctx context.Context, id string) (*models.CoinPackage, error) {
	row := r.db.QueryRowContext(ctx, selectCoinPackageColumns+` WHERE id = ?`, id)
	pkg, err := scanCoinPackage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

func (r *SQLitePackageRepository) ListCoinPackages(ctx context.Context, activeOnly bool) ([]*models.CoinPackage, error) {
	query := selectCoinPackageColumns
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY price_cents ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var pkgs []*models.CoinPackage
	for rows.Next() {
		pkg, err := scanCoinPackage(rows)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, rows.Err()
}

func (r *SQLitePackageRepository) UpsertMembershipPackage(ctx context.Context, pkg *models.MembershipPackage) error {
	query := `INSERT INTO membership_packages (id, name, tier, duration_days, bonus_coins, price_cents, price_coins, gimmick_price_cents, discount_percent, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			tier = excluded.tier,
			duration_days = excluded.duration_days,
			bonus_coins = excluded.bonus_coins,
			price_cents = excluded.price_cents,
			price_coins = excluded.price_coins,
			gimmick_price_cents = excluded.gimmick_price_cents,
			discount_percent = excluded.discount_percent,
			active = excluded.active,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		pkg.ID, pkg.Name, pkg.Tier, pkg.DurationDays, pkg.BonusCoins,
		pkg.PriceCents, pkg.PriceCoins, pkg.GimmickPriceCents, pkg.DiscountPercent,
		pkg.Active, pkg.CreatedAt.UTC().Format(time.RFC3339), pkg.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

const selectMembershipPackageColumns = `SELECT id, name, tier, duration_days, bonus_coins, price_cents, price_coins, gimmick_price_cents, discount_percent, active, created_at, updated_at FROM membership_packages`

func (r *SQLitePackageRepository) GetMembershipPackage(ctx context.Context, id string) (*models.MembershipPackage, error) {
	row := r.db.QueryRowContext(ctx, selectMembershipPackageColumns+` WHERE id = ?`, id)
	pkg, err := scanMembershipPackage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

func (r *SQLitePackageRepository) ListMembershipPackages(ctx context.Context, activeOnly bool) ([]*models.MembershipPackage, error) {
	query := selectMembershipPackageColumns
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY duration_days ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var pkgs []*models.MembershipPackage
	for rows.Next() {
		pkg, err := scanMembershipPackage(rows)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, rows.Err()
}

func scanCoinPackage(row rowScanner) (*models.CoinPackage, error) {
	var pkg models.CoinPackage
	var gimmick sql.NullInt64
	var createdAt, updatedAt string
	if err := row.Scan(&pkg.ID, &pkg.Name, &pkg.Coins, &pkg.BonusCoins, &pkg.PriceCents,
		&gimmick, &pkg.DiscountPercent, &pkg.Active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if gimmick.Valid {
		pkg.GimmickPriceCents = &gimmick.Int64
	}
	pkg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	pkg.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &pkg, nil
}

func scanMembershipPackage(row rowScanner) (*models.MembershipPackage, error) {
	var pkg models.MembershipPackage
	var gimmick sql.NullInt64
	var createdAt, updatedAt string
	if err := row.Scan(&pkg.ID, &pkg.Name, &pkg.Tier, &pkg.DurationDays, &pkg.BonusCoins,
		&pkg.PriceCents, &pkg.PriceCoins, &gimmick, &pkg.DiscountPercent,
		&pkg.Active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if gimmick.Valid {
		pkg.GimmickPriceCents = &gimmick.Int64
	}
	pkg.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	pkg.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &pkg, nil
}
