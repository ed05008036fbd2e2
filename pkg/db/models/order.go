package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tramar/pcbuilder-backend/pkg/enums"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

// Order is a placed order. Prices are computed once at placement; the paid
// and delivered flags are one-way latches.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Items           []OrderLineItem       `gorm:"foreignKey:OrderID;references:ID;constraint:OnDelete:CASCADE"`
	ShippingAddress types.ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_"`
	PaymentMethod   enums.PaymentMethod   `gorm:"column:payment_method;not null"`

	ItemsPrice    types.Money `gorm:"column:items_price_cents;not null"`
	TaxPrice      types.Money `gorm:"column:tax_price_cents;not null"`
	ShippingPrice types.Money `gorm:"column:shipping_price_cents;not null"`
	TotalPrice    types.Money `gorm:"column:total_price_cents;not null"`

	IsPaid        bool           `gorm:"column:is_paid;not null;default:false"`
	PaidAt        *time.Time     `gorm:"column:paid_at"`
	PaymentResult *PaymentResult `gorm:"column:payment_result;type:jsonb;serializer:json"`

	IsDelivered bool       `gorm:"column:is_delivered;not null;default:false"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`

	PaymentIntentID *string             `gorm:"column:payment_intent_id;uniqueIndex"`
	CanceledAt      *time.Time          `gorm:"column:canceled_at"`
	CancelReason    *enums.CancelReason `gorm:"column:cancel_reason"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// IsCanceled reports whether the order was closed before payment.
func (o *Order) IsCanceled() bool {
	return o != nil && o.CanceledAt != nil
}

// PaymentResult is the gateway metadata recorded when an order is marked paid.
type PaymentResult struct {
	ID           string              `json:"id"`
	Status       string              `json:"status"`
	UpdateTime   string              `json:"updateTime,omitempty"`
	EmailAddress string              `json:"emailAddress,omitempty"`
	Source       enums.PaymentSource `json:"source"`
}
