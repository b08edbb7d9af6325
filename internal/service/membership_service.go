package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkwave/commerce-api/internal/models"
	"github.com/inkwave/commerce-api/internal/repository"
)

// MembershipService owns premium entitlements. Extensions always stack:
// buying time while a membership is active extends from the current expiry,
// not from now.
type MembershipService struct {
	repos  *repository.Repositories
	ledger *LedgerService
	logger *slog.Logger
}

// NewMembershipService creates a new membership service.
func NewMembershipService(repos *repository.Repositories, ledger *LedgerService, logger *slog.Logger) *MembershipService {
	return &MembershipService{repos: repos, ledger: ledger, logger: logger}
}

// MembershipStatus is what the dashboard shows about a user's membership.
type MembershipStatus struct {
	Active    bool       `json:"active"`
	Tier      string     `json:"tier,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// GetStatus returns a user's membership status.
func (s *MembershipService) GetStatus(ctx context.Context, userID string) (*MembershipStatus, error) {
	m, err := s.repos.Membership.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if m == nil {
		return &MembershipStatus{Active: false}, nil
	}
	return &MembershipStatus{
		Active:    m.ActiveAt(time.Now().UTC()),
		Tier:      m.Tier,
		ExpiresAt: &m.ExpiresAt,
	}, nil
}

// IsPremium reports whether the user has an active membership.
func (s *MembershipService) IsPremium(ctx context.Context, userID string) (bool, error) {
	status, err := s.GetStatus(ctx, userID)
	if err != nil {
		return false, err
	}
	return status.Active, nil
}

// ExtendFromPackage applies a purchased membership package: the expiry moves
// out by the package duration (stacking on remaining time) and any bundled
// bonus coins are credited. orderID ties the ledger entries to the purchase.
func (s *MembershipService) ExtendFromPackage(ctx context.Context, userID string, pkg *models.MembershipPackage, orderID *string) (*models.Membership, error) {
	now := time.Now().UTC()

	m, err := s.repos.Membership.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if m == nil {
		m = &models.Membership{UserID: userID}
	}

	m.ExpiresAt = m.ExtendedExpiry(now, pkg.DurationDays)
	m.Tier = pkg.Tier
	m.UpdatedAt = now

	if err := s.repos.Membership.Upsert(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save membership: %w", err)
	}

	s.logger.Info("membership extended",
		"user_id", userID,
		"tier", pkg.Tier,
		"duration_days", pkg.DurationDays,
		"expires_at", m.ExpiresAt,
	)

	if pkg.BonusCoins > 0 {
		_, err := s.ledger.Credit(ctx, CreditRequest{
			UserID:      userID,
			Kind:        models.TxKindBonus,
			Coins:       pkg.BonusCoins,
			OrderID:     orderID,
			Description: fmt.Sprintf("Membership bonus (%s)", pkg.Name),
		})
		if err != nil {
			// The membership is already extended; losing the bonus is the
			// smaller failure and gets surfaced for manual follow-up.
			s.logger.Error("failed to credit membership bonus", "user_id", userID, "error", err)
		}
	}

	return m, nil
}
