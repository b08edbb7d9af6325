package handlers

import (
	"context"
	"time"

	"github.com/inkwave/commerce-api/internal/models"
	"github.com/inkwave/commerce-api/internal/service"
)

// OrderHandler serves the order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// OrderDTO is an order as returned to clients.
type OrderDTO struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	PackageID     string     `json:"package_id"`
	VoucherCode   string     `json:"voucher_code,omitempty"`
	BaseCents     int64      `json:"base_cents"`
	DiscountCents int64      `json:"discount_cents,omitempty"`
	TotalCents    int64      `json:"total_cents"`
	PaymentMethod string     `json:"payment_method"`
	PaymentURL    string     `json:"payment_url,omitempty"`
	Status        string     `json:"status"`
	FailureCode   string     `json:"failure_code,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func toOrderDTO(o *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:            o.ID,
		Kind:          string(o.Kind),
		PackageID:     o.PackageID,
		BaseCents:     o.BaseCents,
		DiscountCents: o.DiscountCents,
		TotalCents:    o.TotalCents,
		PaymentMethod: string(o.PaymentMethod),
		Status:        string(o.Status),
		FailureCode:   o.FailureCode,
		CreatedAt:     o.CreatedAt,
		CompletedAt:   o.CompletedAt,
	}
	if o.VoucherCode != nil {
		dto.VoucherCode = *o.VoucherCode
	}
	if o.PaymentURL != nil {
		dto.PaymentURL = *o.PaymentURL
	}
	return dto
}

// CreateOrderInput represents a new purchase request.
type CreateOrderInput struct {
	Body struct {
		Kind          string `json:"kind" enum:"coins,membership"`
		PackageID     string `json:"package_id" minLength:"1"`
		PaymentMethod string `json:"payment_method" enum:"card,crypto,internal" doc:"internal pays with coins (membership only)"`
		VoucherCode   string `json:"voucher_code,omitempty"`
	}
}

// CreateOrderOutput represents the create order response.
type CreateOrderOutput struct {
	Body struct {
		Order       OrderDTO `json:"order"`
		PollSeconds int      `json:"poll_seconds,omitempty" doc:"Suggested status poll interval for pending orders"`
	}
}

// CreateOrder creates a purchase. Gateway orders come back pending with a
// payment URL; coin-funded membership orders settle immediately.
func (h *OrderHandler) CreateOrder(ctx context.Context, input *CreateOrderInput) (*CreateOrderOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	order, err := h.orderSvc.Create(ctx, service.CreateOrderRequest{
		UserID:        userID,
		Kind:          models.OrderKind(input.Body.Kind),
		PackageID:     input.Body.PackageID,
		VoucherCode:   input.Body.VoucherCode,
		PaymentMethod: models.PaymentMethod(input.Body.PaymentMethod),
	})
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &CreateOrderOutput{}
	out.Body.Order = toOrderDTO(order)
	if order.Status == models.OrderPending {
		out.Body.PollSeconds = h.orderSvc.PollSeconds()
	}
	return out, nil
}

// GetOrderInput represents an order lookup.
type GetOrderInput struct {
	ID string `path:"id" doc:"Order id"`
}

// GetOrderOutput represents an order status response.
type GetOrderOutput struct {
	Body struct {
		Order       OrderDTO `json:"order"`
		PollSeconds int      `json:"poll_seconds,omitempty"`
	}
}

// GetOrder returns one of the user's orders. Clients poll this while the
// order is pending.
func (h *OrderHandler) GetOrder(ctx context.Context, input *GetOrderInput) (*GetOrderOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	order, err := h.orderSvc.Get(ctx, userID, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &GetOrderOutput{}
	out.Body.Order = toOrderDTO(order)
	if order.Status == models.OrderPending {
		out.Body.PollSeconds = h.orderSvc.PollSeconds()
	}
	return out, nil
}

// ListOrdersInput represents the order list request.
type ListOrdersInput struct {
	Limit  int `query:"limit" default:"50" minimum:"1" maximum:"100"`
	Offset int `query:"offset" default:"0" minimum:"0"`
}

// ListOrdersOutput represents the order list response.
type ListOrdersOutput struct {
	Body struct {
		Orders []OrderDTO `json:"orders"`
	}
}

// ListOrders returns the user's orders newest-first.
func (h *OrderHandler) ListOrders(ctx context.Context, input *ListOrdersInput) (*ListOrdersOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	orders, err := h.orderSvc.List(ctx, userID, input.Limit, input.Offset)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &ListOrdersOutput{}
	out.Body.Orders = make([]OrderDTO, 0, len(orders))
	for _, o := range orders {
		out.Body.Orders = append(out.Body.Orders, toOrderDTO(o))
	}
	return out, nil
}

// CancelOrderInput represents an order cancellation.
type CancelOrderInput struct {
	ID string `path:"id" doc:"Order id"`
}

// CancelOrderOutput represents the cancellation response.
type CancelOrderOutput struct {
	Body struct {
		Order OrderDTO `json:"order"`
	}
}

// CancelOrder cancels one of the user's pending orders and releases any
// voucher hold.
func (h *OrderHandler) CancelOrder(ctx context.Context, input *CancelOrderInput) (*CancelOrderOutput, error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}

	order, err := h.orderSvc.Cancel(ctx, userID, input.ID)
	if err != nil {
		return nil, mapServiceError(err)
	}

	out := &CancelOrderOutput{}
	out.Body.Order = toOrderDTO(order)
	return out, nil
}
