package checkout

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/tramar/pcbuilder-backend/pkg/types"
)

// PlaceOrderRequest is the body of POST /orders. Client price, name, image
// and stock are accepted for compatibility and ignored; price and stock are
// kept raw so a malformed value never fails the order.
type PlaceOrderRequest struct {
	OrderItems      []OrderItemRequest    `json:"orderItems" validate:"required,min=1,dive"`
	ShippingAddress types.ShippingAddress `json:"shippingAddress" validate:"required"`
	PaymentMethod   string                `json:"paymentMethod" validate:"required"`
}

type OrderItemRequest struct {
	Product      uuid.UUID       `json:"product" validate:"required"`
	Quantity     int             `json:"quantity" validate:"omitempty,min=1"`
	Qty          int             `json:"qty" validate:"omitempty,min=1"`
	Price        json.RawMessage `json:"price,omitempty"`
	Name         string          `json:"name,omitempty"`
	Image        string          `json:"image,omitempty"`
	CountInStock json.RawMessage `json:"countInStock,omitempty"`
	LegacyID     string          `json:"_id,omitempty"`
}

// ToInput maps the request onto the placement input for userID.
func (r PlaceOrderRequest) ToInput(userID uuid.UUID) PlaceOrderInput {
	items := make([]ItemInput, 0, len(r.OrderItems))
	for _, item := range r.OrderItems {
		qty := item.Quantity
		if qty == 0 {
			qty = item.Qty
		}
		items = append(items, ItemInput{ProductID: item.Product, Quantity: qty})
	}
	return PlaceOrderInput{
		UserID:          userID,
		Items:           items,
		ShippingAddress: r.ShippingAddress,
		PaymentMethod:   strings.ToLower(strings.TrimSpace(r.PaymentMethod)),
	}
}
