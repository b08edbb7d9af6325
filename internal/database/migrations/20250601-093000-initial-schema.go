package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250601-093000",
		Description: "Initial commerce schema",
		Up: []string{
			// User balances - one row per user, coin_balance is guarded by a
			// CHECK so no code path can drive it negative.
			// user_id is an identity-provider id (no FK, users live elsewhere)
			`CREATE TABLE IF NOT EXISTS user_balances (
				user_id TEXT PRIMARY KEY,
				coin_balance INTEGER NOT NULL DEFAULT 0 CHECK (coin_balance >= 0),
				lifetime_earned INTEGER NOT NULL DEFAULT 0,
				lifetime_spent INTEGER NOT NULL DEFAULT 0,
				updated_at TEXT NOT NULL
			)`,

			// Coin transactions - the append-only ledger. external_tx_id is
			// UNIQUE: a replayed gateway callback can never credit twice.
			`CREATE TABLE IF NOT EXISTS coin_transactions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				kind TEXT NOT NULL,
				coins INTEGER NOT NULL,
				balance_after INTEGER NOT NULL,
				payment_method TEXT NOT NULL DEFAULT 'internal',
				external_tx_id TEXT UNIQUE,
				order_id TEXT,
				content_ref TEXT,
				description TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_coin_tx_user_id ON coin_transactions(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_coin_tx_user_kind ON coin_transactions(user_id, kind)`,
			`CREATE INDEX IF NOT EXISTS idx_coin_tx_created_at ON coin_transactions(created_at)`,

			// Orders - externally-paid purchase requests
			`CREATE TABLE IF NOT EXISTS orders (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				kind TEXT NOT NULL,
				package_id TEXT NOT NULL,
				voucher_code TEXT,
				voucher_reservation_id TEXT,
				base_cents INTEGER NOT NULL DEFAULT 0,
				discount_cents INTEGER NOT NULL DEFAULT 0,
				total_cents INTEGER NOT NULL DEFAULT 0,
				payment_method TEXT NOT NULL,
				external_tx_id TEXT,
				payment_url TEXT,
				status TEXT NOT NULL DEFAULT 'pending',
				created_at TEXT NOT NULL,
				completed_at TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_orders_external_tx_id ON orders(external_tx_id)`,

			// Vouchers - codes stored uppercase
			`CREATE TABLE IF NOT EXISTS vouchers (
				code TEXT PRIMARY KEY,
				discount_type TEXT NOT NULL,
				discount_value INTEGER NOT NULL,
				applies_to TEXT NOT NULL,
				max_uses INTEGER,
				used_count INTEGER NOT NULL DEFAULT 0,
				expires_at TEXT,
				active INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,

			// Voucher reservations - two-phase redemption holds
			`CREATE TABLE IF NOT EXISTS voucher_reservations (
				id TEXT PRIMARY KEY,
				code TEXT NOT NULL REFERENCES vouchers(code) ON DELETE CASCADE,
				user_id TEXT NOT NULL,
				order_id TEXT,
				status TEXT NOT NULL DEFAULT 'held',
				expires_at TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_voucher_res_status ON voucher_reservations(status, expires_at)`,
			`CREATE INDEX IF NOT EXISTS idx_voucher_res_code ON voucher_reservations(code)`,

			// Coin packages
			`CREATE TABLE IF NOT EXISTS coin_packages (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				coins INTEGER NOT NULL,
				bonus_coins INTEGER NOT NULL DEFAULT 0,
				price_cents INTEGER NOT NULL,
				gimmick_price_cents INTEGER,
				discount_percent INTEGER NOT NULL DEFAULT 0,
				active INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,

			// Membership packages - price_coins 0 means cash-only
			`CREATE TABLE IF NOT EXISTS membership_packages (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				tier TEXT NOT NULL,
				duration_days INTEGER NOT NULL,
				bonus_coins INTEGER NOT NULL DEFAULT 0,
				price_cents INTEGER NOT NULL,
				price_coins INTEGER NOT NULL DEFAULT 0,
				gimmick_price_cents INTEGER,
				discount_percent INTEGER NOT NULL DEFAULT 0,
				active INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,

			// Memberships - premium entitlement per user
			`CREATE TABLE IF NOT EXISTS memberships (
				user_id TEXT PRIMARY KEY,
				tier TEXT NOT NULL,
				expires_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	})
}
