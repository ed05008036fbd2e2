package cart

import (
	"github.com/google/uuid"

	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

// CartDTO is the public cart representation.
type CartDTO struct {
	ID         *uuid.UUID    `json:"id,omitempty"`
	UserID     uuid.UUID     `json:"user"`
	CartItems  []CartItemDTO `json:"cartItems"`
	TotalPrice types.Money   `json:"totalPrice"`
}

type CartItemDTO struct {
	ID        uuid.UUID   `json:"id"`
	ProductID uuid.UUID   `json:"product"`
	Name      string      `json:"name"`
	Image     string      `json:"image"`
	Price     types.Money `json:"price"`
	Qty       int         `json:"qty"`
}

// AddItemRequest is the body of POST /api/cart.
type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Qty       int    `json:"qty" validate:"required,min=1,max=1000"`
}

// UpdateItemRequest is the body of PUT /api/cart/{itemId}.
type UpdateItemRequest struct {
	Qty int `json:"qty" validate:"required,min=1,max=1000"`
}

// ToDTO renders a cart; a nil cart is an empty cart for userID.
func ToDTO(userID uuid.UUID, cart *models.Cart) CartDTO {
	dto := CartDTO{UserID: userID, CartItems: []CartItemDTO{}}
	if cart == nil {
		return dto
	}
	id := cart.ID
	dto.ID = &id
	for _, item := range cart.Items {
		dto.CartItems = append(dto.CartItems, CartItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			Price:     item.Price,
			Qty:       item.Quantity,
		})
		dto.TotalPrice += item.Price.Times(item.Quantity)
	}
	return dto
}
