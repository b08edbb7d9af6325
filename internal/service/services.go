// Package service contains the business logic layer.
// Note: user accounts, sessions and identity are handled by the platform's
// identity service. The UserID in services references identity-provider user
// ids (e.g., "user_xxx").
package service

import (
	"fmt"
	"log/slog"

	"github.com/inkwave/commerce-api/internal/config"
	"github.com/inkwave/commerce-api/internal/payment"
	"github.com/inkwave/commerce-api/internal/repository"
)

// Services holds all service instances.
type Services struct {
	Ledger     *LedgerService
	Voucher    *VoucherService
	Catalog    *CatalogService
	Order      *OrderService
	Membership *MembershipService
	Account    *AccountService
	Storage    *StorageService
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) (*Services, error) {
	storageSvc, err := NewStorageService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	ledgerSvc := NewLedgerService(repos, logger)
	voucherSvc := NewVoucherService(repos, cfg.VoucherReservationTTL, logger)
	catalogSvc := NewCatalogService(cfg, repos, storageSvc, logger)
	membershipSvc := NewMembershipService(repos, ledgerSvc, logger)

	gateways := map[string]payment.Gateway{}
	if cfg.CardPaymentsEnabled() {
		gateways[gatewayCard] = payment.NewStripeGateway(cfg.StripeSecretKey, cfg.BaseURL, logger)
	} else {
		logger.Warn("card payments disabled - no Stripe key configured")
	}
	if cfg.CryptoPaymentsEnabled() {
		gateways[gatewayCrypto] = payment.NewCoinpayGateway(
			cfg.CoinpayAPIURL, cfg.CoinpayMerchantID, cfg.CoinpayRequestKey, cfg.BaseURL, logger)
	} else {
		logger.Warn("crypto payments disabled - no CoinPay merchant configured")
	}

	orderSvc := NewOrderService(cfg, repos, ledgerSvc, voucherSvc, membershipSvc, gateways, logger)
	accountSvc := NewAccountService(cfg, repos, ledgerSvc, logger)

	return &Services{
		Ledger:     ledgerSvc,
		Voucher:    voucherSvc,
		Catalog:    catalogSvc,
		Order:      orderSvc,
		Membership: membershipSvc,
		Account:    accountSvc,
		Storage:    storageSvc,
	}, nil
}
