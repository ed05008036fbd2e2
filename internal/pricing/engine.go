package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tramar/pcbuilder-backend/pkg/config"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

// Line is one priced quantity. UnitPrice always comes from the catalog.
type Line struct {
	UnitPrice types.Money
	Quantity  int
}

// Quote is the authoritative price breakdown stored on an order.
type Quote struct {
	ItemsPrice    types.Money `json:"itemsPrice"`
	TaxPrice      types.Money `json:"taxPrice"`
	ShippingPrice types.Money `json:"shippingPrice"`
	TotalPrice    types.Money `json:"totalPrice"`
}

// Engine computes order totals. It is pure: the same lines always give the
// same quote.
type Engine struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold types.Money
	ShippingFee           types.Money
}

// NewEngine parses the configured policy.
func NewEngine(cfg config.PricingConfig) (*Engine, error) {
	rate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("parse tax rate %q: %w", cfg.TaxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("tax rate %s must be in [0, 1)", rate)
	}
	threshold, err := types.ParseMoney(cfg.FreeShippingThreshold)
	if err != nil {
		return nil, fmt.Errorf("free shipping threshold: %w", err)
	}
	fee, err := types.ParseMoney(cfg.ShippingFee)
	if err != nil {
		return nil, fmt.Errorf("shipping fee: %w", err)
	}
	if threshold < 0 || fee < 0 {
		return nil, fmt.Errorf("shipping amounts must be non-negative")
	}
	return &Engine{TaxRate: rate, FreeShippingThreshold: threshold, ShippingFee: fee}, nil
}

// Default returns the storewide policy: 15% tax, free shipping over 100.00,
// otherwise 10.00.
func Default() *Engine {
	return &Engine{
		TaxRate:               decimal.RequireFromString("0.15"),
		FreeShippingThreshold: types.MustParseMoney("100.00"),
		ShippingFee:           types.MustParseMoney("10.00"),
	}
}

// Price sums the lines and applies tax and shipping. Tax is rounded half up
// to the cent once, on the items subtotal.
func (e *Engine) Price(lines []Line) (Quote, error) {
	var items types.Money
	for i, line := range lines {
		if line.Quantity < 1 {
			return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"line": i, "quantity": line.Quantity})
		}
		if line.UnitPrice < 0 {
			return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price must be non-negative").
				WithDetails(map[string]any{"line": i})
		}
		items += line.UnitPrice.Times(line.Quantity)
	}

	tax := items.ApplyRate(e.TaxRate)
	shipping := e.ShippingFee
	if items > e.FreeShippingThreshold {
		shipping = 0
	}

	return Quote{
		ItemsPrice:    items,
		TaxPrice:      tax,
		ShippingPrice: shipping,
		TotalPrice:    items + tax + shipping,
	}, nil
}
