package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	appconfig "github.com/inkwave/commerce-api/internal/config"
	"github.com/inkwave/commerce-api/internal/models"
	"github.com/inkwave/commerce-api/internal/repository"
)

// AccountService reacts to identity-provider account events.
type AccountService struct {
	cfg    *appconfig.Config
	repos  *repository.Repositories
	ledger *LedgerService
	logger *slog.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(cfg *appconfig.Config, repos *repository.Repositories, ledger *LedgerService, logger *slog.Logger) *AccountService {
	return &AccountService{cfg: cfg, repos: repos, ledger: ledger, logger: logger}
}

// HandleUserCreated grants the one-time signup bonus. The credit is keyed on
// the user id, so a replayed webhook cannot grant it twice.
func (s *AccountService) HandleUserCreated(ctx context.Context, userID string) error {
	if s.cfg.SignupBonusCoins <= 0 {
		return nil
	}

	bonusKey := "signup_" + userID
	_, err := s.ledger.Credit(ctx, CreditRequest{
		UserID:       userID,
		Kind:         models.TxKindSignupBonus,
		Coins:        s.cfg.SignupBonusCoins,
		ExternalTxID: &bonusKey,
		Description:  "Welcome bonus",
	})
	if errors.Is(err, ErrDuplicatePayment) {
		s.logger.Info("signup bonus already granted", "user_id", userID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to grant signup bonus: %w", err)
	}

	s.logger.Info("signup bonus granted", "user_id", userID, "coins", s.cfg.SignupBonusCoins)
	return nil
}

// HandleUserDeleted erases the user's commerce data after account deletion.
func (s *AccountService) HandleUserDeleted(ctx context.Context, userID string) error {
	if err := s.repos.Order.DeleteUserData(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete orders: %w", err)
	}
	if err := s.repos.Membership.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	if err := s.repos.Balance.DeleteUserData(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete ledger data: %w", err)
	}
	s.logger.Info("user commerce data erased", "user_id", userID)
	return nil
}
