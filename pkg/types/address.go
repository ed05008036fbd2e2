package types

import "strings"

// ShippingAddress is captured on the order at placement time.
type ShippingAddress struct {
	Address    string `json:"address" validate:"required,max=255" gorm:"column:address"`
	City       string `json:"city" validate:"required,max=120" gorm:"column:city"`
	PostalCode string `json:"postalCode" validate:"required,max=32" gorm:"column:postal_code"`
	Country    string `json:"country" validate:"required,max=120" gorm:"column:country"`
}

// Normalize trims surrounding whitespace from every field.
func (a ShippingAddress) Normalize() ShippingAddress {
	return ShippingAddress{
		Address:    strings.TrimSpace(a.Address),
		City:       strings.TrimSpace(a.City),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}

// Complete reports whether every field is populated.
func (a ShippingAddress) Complete() bool {
	n := a.Normalize()
	return n.Address != "" && n.City != "" && n.PostalCode != "" && n.Country != ""
}
