package handlers

import (
	"context"

	"github.com/inkwave/commerce-api/internal/models"
	"github.com/inkwave/commerce-api/internal/service"
)

// CatalogHandler serves the public package catalog.
type CatalogHandler struct {
	catalogSvc *service.CatalogService
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalogSvc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogSvc: catalogSvc}
}

// CoinPackageDTO is a coin package as shown on the store page.
type CoinPackageDTO struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Coins             int64  `json:"coins"`
	BonusCoins        int64  `json:"bonus_coins,omitempty"`
	PriceCents        int64  `json:"price_cents"`
	GimmickPriceCents int64  `json:"gimmick_price_cents,omitempty" doc:"Crossed-out display price"`
	PercentSaved      int64  `json:"percent_saved,omitempty"`
}

// MembershipPackageDTO is a membership package as shown on the store page.
type MembershipPackageDTO struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Tier              string `json:"tier"`
	DurationDays      int64  `json:"duration_days"`
	BonusCoins        int64  `json:"bonus_coins,omitempty"`
	PriceCents        int64  `json:"price_cents"`
	PriceCoins        int64  `json:"price_coins,omitempty" doc:"Coin-funded price; zero means cash-only"`
	GimmickPriceCents int64  `json:"gimmick_price_cents,omitempty" doc:"Crossed-out display price"`
	PercentSaved      int64  `json:"percent_saved,omitempty"`
}

// ListCoinPackagesOutput represents the coin catalog response.
type ListCoinPackagesOutput struct {
	Body struct {
		Packages []CoinPackageDTO `json:"packages"`
	}
}

// ListCoinPackages returns active coin packages, cheapest first.
func (h *CatalogHandler) ListCoinPackages(ctx context.Context, input *struct{}) (*ListCoinPackagesOutput, error) {
	packages, err := h.catalogSvc.ListCoinPackages(ctx, true)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &ListCoinPackagesOutput{}
	out.Body.Packages = make([]CoinPackageDTO, 0, len(packages))
	for _, p := range packages {
		out.Body.Packages = append(out.Body.Packages, toCoinPackageDTO(p))
	}
	return out, nil
}

// ListMembershipPackagesOutput represents the membership catalog response.
type ListMembershipPackagesOutput struct {
	Body struct {
		Packages []MembershipPackageDTO `json:"packages"`
	}
}

// ListMembershipPackages returns active membership packages.
func (h *CatalogHandler) ListMembershipPackages(ctx context.Context, input *struct{}) (*ListMembershipPackagesOutput, error) {
	packages, err := h.catalogSvc.ListMembershipPackages(ctx, true)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &ListMembershipPackagesOutput{}
	out.Body.Packages = make([]MembershipPackageDTO, 0, len(packages))
	for _, p := range packages {
		out.Body.Packages = append(out.Body.Packages, toMembershipPackageDTO(p))
	}
	return out, nil
}

func toCoinPackageDTO(p *models.CoinPackage) CoinPackageDTO {
	dto := CoinPackageDTO{
		ID:           p.ID,
		Name:         p.Name,
		Coins:        p.Coins,
		BonusCoins:   p.BonusCoins,
		PriceCents:   p.PriceCents,
		PercentSaved: p.PercentSaved(),
	}
	if p.GimmickPriceCents != nil {
		dto.GimmickPriceCents = *p.GimmickPriceCents
	}
	return dto
}

func toMembershipPackageDTO(p *models.MembershipPackage) MembershipPackageDTO {
	dto := MembershipPackageDTO{
		ID:           p.ID,
		Name:         p.Name,
		Tier:         p.Tier,
		DurationDays: p.DurationDays,
		BonusCoins:   p.BonusCoins,
		PriceCents:   p.PriceCents,
		PriceCoins:   p.PriceCoins,
		PercentSaved: p.PercentSaved(),
	}
	if p.GimmickPriceCents != nil {
		dto.GimmickPriceCents = *p.GimmickPriceCents
	}
	return dto
}
