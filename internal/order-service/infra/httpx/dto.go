package httpx

import (
	"encoding/json"
	"time"

	"github.com/jcmexdev/order-saga/internal/order-service/domain"
)

type CreateOrderRequest struct {
	Lines []CreateOrderLineDTO `json:"lines" validate:"required,min=1,dive"`
}

type CreateOrderLineDTO struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type OrderResponse struct {
	ID        string              `json:"id"`
	OwnerID   string              `json:"owner_id"`
	Status    string              `json:"status"`
	Total     json.Number         `json:"total"`
	Lines     []OrderLineResponse `json:"lines"`
	CreatedAt string              `json:"created_at"`
	UpdatedAt string              `json:"updated_at"`
}

type OrderLineResponse struct {
	ProductID string      `json:"product_id"`
	Quantity  int         `json:"quantity"`
	UnitPrice json.Number `json:"unit_price"`
	Subtotal  json.Number `json:"subtotal"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	ProductID string `json:"product_id,omitempty"`
}

func (r CreateOrderRequest) toDomain() []domain.LineRequest {
	out := make([]domain.LineRequest, len(r.Lines))
	for i, l := range r.Lines {
		out[i] = domain.LineRequest{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return out
}

func mapOrderToResponse(o *domain.Order) OrderResponse {
	lines := make([]OrderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = OrderLineResponse{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: json.Number(l.UnitPrice.String()),
			Subtotal:  json.Number(l.Subtotal().String()),
		}
	}
	return OrderResponse{
		ID:        o.ID,
		OwnerID:   o.OwnerID,
		Status:    string(o.Status),
		Total:     json.Number(o.Total.String()),
		Lines:     lines,
		CreatedAt: o.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: o.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func mapOrdersToResponse(orders []*domain.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = mapOrderToResponse(o)
	}
	return out
}
