package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tramar/pcbuilder-backend/pkg/types"
)

// Cart is the per-user shopping cart; one row per user, created lazily.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Items     []CartItem `gorm:"foreignKey:CartID;references:ID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CartItem stores the price observed when the product was added.
type CartItem struct {
	ID        uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	CartID    uuid.UUID   `gorm:"column:cart_id;type:uuid;not null;index;uniqueIndex:idx_cart_items_cart_product"`
	ProductID uuid.UUID   `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_product"`
	Name      string      `gorm:"column:name;not null"`
	Image     string      `gorm:"column:image"`
	Price     types.Money `gorm:"column:price_cents;not null"`
	Quantity  int         `gorm:"column:quantity;not null"`
	CreatedAt time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
