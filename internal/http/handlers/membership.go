package handlers

import (
	"context"

	"github.com/inkwave/commerce-api/internal/service"
)

// MembershipHandler serves membership status.
type MembershipHandler struct {
	membershipSvc *service.MembershipService
}

// NewMembershipHandler creates a new membership handler.
func NewMembershipHandler(membershipSvc *service.MembershipService) *MembershipHandler {
	return &MembershipHandler{membershipSvc: membershipSvc}
}

// GetMembershipOutput represents the membership status response.
type GetMembershipOutput struct {
	Body service.MembershipStatus
}

// GetMembership returns the authenticated user's membership status.
func (h *MembershipHandler) GetMembership(ctx context.Context, input *struct{}) (*GetMembershipOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	status, err := h.membershipSvc.GetStatus(ctx, userID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &GetMembershipOutput{Body: *status}, nil
}
