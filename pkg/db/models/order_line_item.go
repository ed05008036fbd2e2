package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tramar/pcbuilder-backend/pkg/types"
)

// OrderLineItem is the immutable snapshot of a product at placement time.
// ProductID is a navigation reference only and carries no foreign key.
type OrderLineItem struct {
	ID        uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID   `gorm:"column:order_id;type:uuid;not null;index"`
	Position  int         `gorm:"column:position;not null"`
	ProductID uuid.UUID   `gorm:"column:product_id;type:uuid;not null"`
	Name      string      `gorm:"column:name;not null"`
	Image     string      `gorm:"column:image"`
	UnitPrice types.Money `gorm:"column:unit_price_cents;not null"`
	Quantity  int         `gorm:"column:quantity;not null"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime"`
}

func (li *OrderLineItem) BeforeCreate(*gorm.DB) error {
	ensureID(&li.ID)
	return nil
}

// LineTotal returns unit price times quantity.
func (li OrderLineItem) LineTotal() types.Money {
	return li.UnitPrice.Times(li.Quantity)
}
