package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250713-141500",
		Description: "Stale-order sweep support",
		Up: []string{
			// The sweeper scans for old pending orders; give it a covering index.
			`CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at)`,

			// Record why an order left pending (gateway_failed, expired, user_cancelled)
			`ALTER TABLE orders ADD COLUMN failure_code TEXT`,
		},
	})
}
