package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250822-101200",
		Description: "Voucher minimum purchase amount",
		Up: []string{
			`ALTER TABLE vouchers ADD COLUMN min_amount INTEGER`,
		},
	})
}
