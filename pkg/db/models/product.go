package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tramar/pcbuilder-backend/pkg/types"
)

// Product is the catalog row. CountInStock only moves through the inventory
// ledger's conditional updates.
type Product struct {
	ID           uuid.UUID   `gorm:"column:id;type:uuid;primaryKey"`
	Name         string      `gorm:"column:name;not null"`
	Brand        string      `gorm:"column:brand"`
	Category     string      `gorm:"column:category;not null"`
	Image        string      `gorm:"column:image"`
	Price        types.Money `gorm:"column:price_cents;not null"`
	CountInStock int         `gorm:"column:count_in_stock;not null;default:0;check:count_in_stock >= 0"`
	CreatedAt    time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
