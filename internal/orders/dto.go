package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/tramar/pcbuilder-backend/internal/inventory"
	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	"github.com/tramar/pcbuilder-backend/pkg/enums"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID              uuid.UUID             `json:"id"`
	User            uuid.UUID             `json:"user"`
	OrderItems      []LineItemDTO         `json:"orderItems"`
	ShippingAddress types.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   enums.PaymentMethod   `json:"paymentMethod"`
	ItemsPrice      types.Money           `json:"itemsPrice"`
	TaxPrice        types.Money           `json:"taxPrice"`
	ShippingPrice   types.Money           `json:"shippingPrice"`
	TotalPrice      types.Money           `json:"totalPrice"`
	IsPaid          bool                  `json:"isPaid"`
	PaidAt          *time.Time            `json:"paidAt,omitempty"`
	PaymentResult   *models.PaymentResult `json:"paymentResult,omitempty"`
	IsDelivered     bool                  `json:"isDelivered"`
	DeliveredAt     *time.Time            `json:"deliveredAt,omitempty"`
	PaymentIntentID *string               `json:"paymentIntentId,omitempty"`
	CanceledAt      *time.Time            `json:"canceledAt,omitempty"`
	CancelReason    *enums.CancelReason   `json:"cancelReason,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// LineItemDTO is one snapshot line; price is the unit price at placement.
type LineItemDTO struct {
	Product uuid.UUID   `json:"product"`
	Name    string      `json:"name"`
	Image   string      `json:"image"`
	Price   types.Money `json:"price"`
	Qty     int         `json:"qty"`
}

// OrderList is a page of orders.
type OrderList struct {
	Orders []OrderDTO `json:"orders"`
	Cursor string     `json:"cursor,omitempty"`
}

func ToDTO(order models.Order) OrderDTO {
	items := make([]LineItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, LineItemDTO{
			Product: item.ProductID,
			Name:    item.Name,
			Image:   item.Image,
			Price:   item.UnitPrice,
			Qty:     item.Quantity,
		})
	}
	return OrderDTO{
		ID:              order.ID,
		User:            order.UserID,
		OrderItems:      items,
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		ItemsPrice:      order.ItemsPrice,
		TaxPrice:        order.TaxPrice,
		ShippingPrice:   order.ShippingPrice,
		TotalPrice:      order.TotalPrice,
		IsPaid:          order.IsPaid,
		PaidAt:          order.PaidAt,
		PaymentResult:   order.PaymentResult,
		IsDelivered:     order.IsDelivered,
		DeliveredAt:     order.DeliveredAt,
		PaymentIntentID: order.PaymentIntentID,
		CanceledAt:      order.CanceledAt,
		CancelReason:    order.CancelReason,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

func toList(rows []models.Order, cursor string) OrderList {
	out := OrderList{Orders: make([]OrderDTO, 0, len(rows)), Cursor: cursor}
	for _, row := range rows {
		out.Orders = append(out.Orders, ToDTO(row))
	}
	return out
}

// Lines converts the snapshot into inventory lines.
func Lines(order models.Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
