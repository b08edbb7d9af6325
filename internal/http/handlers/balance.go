package handlers

import (
	"context"
	"time"

	"github.com/inkwave/commerce-api/internal/models"
	"github.com/inkwave/commerce-api/internal/service"
)

// BalanceHandler serves the coin wallet endpoints.
type BalanceHandler struct {
	ledgerSvc *service.LedgerService
}

// NewBalanceHandler creates a new balance handler.
func NewBalanceHandler(ledgerSvc *service.LedgerService) *BalanceHandler {
	return &BalanceHandler{ledgerSvc: ledgerSvc}
}

// GetBalanceOutput represents the wallet response.
type GetBalanceOutput struct {
	Body struct {
		CoinBalance    int64 `json:"coin_balance"`
		LifetimeEarned int64 `json:"lifetime_earned"`
		LifetimeSpent  int64 `json:"lifetime_spent"`
	}
}

// GetBalance returns the authenticated user's coin balance.
func (h *BalanceHandler) GetBalance(ctx context.Context, input *struct{}) (*GetBalanceOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := h.ledgerSvc.GetBalance(ctx, userID)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &GetBalanceOutput{}
	out.Body.CoinBalance = balance.CoinBalance
	out.Body.LifetimeEarned = balance.LifetimeEarned
	out.Body.LifetimeSpent = balance.LifetimeSpent
	return out, nil
}

// TransactionDTO is a ledger entry as shown in the history dashboard.
type TransactionDTO struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Coins         int64     `json:"coins" doc:"Signed balance effect"`
	BalanceAfter  int64     `json:"balance_after"`
	PaymentMethod string    `json:"payment_method"`
	OrderID       string    `json:"order_id,omitempty"`
	ContentRef    string    `json:"content_ref,omitempty"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

// GetHistoryInput represents the history request.
type GetHistoryInput struct {
	Bucket string `query:"bucket" default:"all" enum:"all,coins,membership,ebooks" doc:"Dashboard filter"`
	Limit  int    `query:"limit" default:"50" minimum:"1" maximum:"100"`
	Offset int    `query:"offset" default:"0" minimum:"0"`
}

// GetHistoryOutput represents the history response.
type GetHistoryOutput struct {
	Body struct {
		Transactions []TransactionDTO `json:"transactions"`
		Total        int              `json:"total"`
	}
}

// GetHistory returns the authenticated user's transaction history.
func (h *BalanceHandler) GetHistory(ctx context.Context, input *GetHistoryInput) (*GetHistoryOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	entries, total, err := h.ledgerSvc.GetHistory(ctx, userID, models.HistoryBucket(input.Bucket), input.Limit, input.Offset)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &GetHistoryOutput{}
	out.Body.Total = total
	out.Body.Transactions = make([]TransactionDTO, 0, len(entries))
	for _, e := range entries {
		dto := TransactionDTO{
			ID:            e.ID,
			Kind:          string(e.Kind),
			Coins:         e.Coins,
			BalanceAfter:  e.BalanceAfter,
			PaymentMethod: string(e.PaymentMethod),
			Description:   e.Description,
			CreatedAt:     e.CreatedAt,
		}
		if e.OrderID != nil {
			dto.OrderID = *e.OrderID
		}
		if e.ContentRef != nil {
			dto.ContentRef = *e.ContentRef
		}
		out.Body.Transactions = append(out.Body.Transactions, dto)
	}
	return out, nil
}

// PurchaseContentInput represents a chapter unlock or ebook purchase.
type PurchaseContentInput struct {
	Body struct {
		Purchase   string `json:"purchase" enum:"chapter,ebook" doc:"What is being bought"`
		ContentRef string `json:"content_ref" minLength:"1" doc:"Chapter or ebook identifier"`
		Coins      int64  `json:"coins" minimum:"1" doc:"Coin price of the content"`
	}
}

// PurchaseContentOutput represents the purchase response.
type PurchaseContentOutput struct {
	Body struct {
		TransactionID string `json:"transaction_id"`
		CoinBalance   int64  `json:"coin_balance"`
	}
}

// PurchaseContent spends coins on a chapter unlock or ebook.
func (h *BalanceHandler) PurchaseContent(ctx context.Context, input *PurchaseContentInput) (*PurchaseContentOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	// Anything that is not an ebook is a chapter unlock.
	entry, err := h.ledgerSvc.PurchaseContent(ctx, userID, models.PurchaseType(input.Body.Purchase), input.Body.ContentRef, input.Body.Coins)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &PurchaseContentOutput{}
	out.Body.TransactionID = entry.ID
	out.Body.CoinBalance = entry.BalanceAfter
	return out, nil
}
