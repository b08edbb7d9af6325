package config

import (
	"encoding/json"
	"fmt"

	"github.com/inkwave/commerce-api/internal/models"
)

// Catalog is the pricing catalog document: the purchasable coin and
// membership packages. It is seeded from DefaultCatalog and may be replaced
// at runtime by the S3-hosted document or admin upserts.
type Catalog struct {
	Coins       []models.CoinPackage       `json:"coins"`
	Memberships []models.MembershipPackage `json:"memberships"`
}

// DefaultCatalog returns the built-in catalog used when no hosted document
// is configured.
func DefaultCatalog() Catalog {
	gimmick := func(cents int64) *int64 { return &cents }

	return Catalog{
		Coins: []models.CoinPackage{
			{ID: "coins_starter", Name: "Starter Pack", Coins: 100, PriceCents: 99, Active: true},
			{ID: "coins_reader", Name: "Reader Pack", Coins: 500, BonusCoins: 25, PriceCents: 499, Active: true},
			{ID: "coins_binge", Name: "Binge Pack", Coins: 1200, BonusCoins: 100, PriceCents: 999, GimmickPriceCents: gimmick(1199), DiscountPercent: 17, Active: true},
			{ID: "coins_whale", Name: "Collector Pack", Coins: 6500, BonusCoins: 800, PriceCents: 4999, GimmickPriceCents: gimmick(6499), DiscountPercent: 23, Active: true},
		},
		Memberships: []models.MembershipPackage{
			{ID: "prem_month", Name: "Premium Monthly", Tier: "premium", DurationDays: 30, PriceCents: 799, PriceCoins: 800, Active: true},
			{ID: "prem_quarter", Name: "Premium Quarterly", Tier: "premium", DurationDays: 90, BonusCoins: 100, PriceCents: 1999, GimmickPriceCents: gimmick(2397), DiscountPercent: 17, PriceCoins: 2000, Active: true},
			{ID: "prem_year", Name: "Premium Annual", Tier: "premium", DurationDays: 365, BonusCoins: 600, PriceCents: 6999, GimmickPriceCents: gimmick(9588), DiscountPercent: 27, Active: true},
		},
	}
}

// ParseCatalog decodes and validates a catalog JSON document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog document: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks catalog invariants:
//   - positive prices and coin/duration amounts
//   - gimmick price strictly above the real price
//   - stored discount percentage consistent (within one point) with the
//     percentage derived from the gimmick price, which is the display
//     source of truth
func (c *Catalog) Validate() error {
	seen := make(map[string]bool)

	for i := range c.Coins {
		p := &c.Coins[i]
		if p.ID == "" || seen[p.ID] {
			return fmt.Errorf("coin package %d: missing or duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		if p.Coins <= 0 {
			return fmt.Errorf("coin package %s: coins must be positive", p.ID)
		}
		if err := validatePricing(p.ID, p.PriceCents, p.GimmickPriceCents, p.DiscountPercent); err != nil {
			return err
		}
	}

	for i := range c.Memberships {
		p := &c.Memberships[i]
		if p.ID == "" || seen[p.ID] {
			return fmt.Errorf("membership package %d: missing or duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		if p.DurationDays <= 0 {
			return fmt.Errorf("membership package %s: duration_days must be positive", p.ID)
		}
		if p.Tier == "" {
			return fmt.Errorf("membership package %s: tier is required", p.ID)
		}
		if err := validatePricing(p.ID, p.PriceCents, p.GimmickPriceCents, p.DiscountPercent); err != nil {
			return err
		}
	}

	return nil
}

func validatePricing(id string, price int64, gimmick *int64, discount int64) error {
	if price <= 0 {
		return fmt.Errorf("package %s: price_cents must be positive", id)
	}
	if discount < 0 || discount > 100 {
		return fmt.Errorf("package %s: discount_percent out of range", id)
	}
	if gimmick == nil {
		return nil
	}
	if *gimmick <= price {
		return fmt.Errorf("package %s: gimmick_price_cents (%d) must exceed price_cents (%d)", id, *gimmick, price)
	}
	if discount > 0 {
		derived := ((*gimmick-price)*100 + *gimmick/2) / *gimmick
		if diff := derived - discount; diff > 1 || diff < -1 {
			return fmt.Errorf("package %s: discount_percent %d inconsistent with gimmick-derived %d", id, discount, derived)
		}
	}
	return nil
}
