package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tramar/pcbuilder-backend/pkg/config"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

func money(s string) types.Money {
	return types.MustParseMoney(s)
}

func TestPriceFiftyDollarOrder(t *testing.T) {
	q, err := Default().Price([]Line{{UnitPrice: money("25.00"), Quantity: 2}})
	require.NoError(t, err)

	assert.Equal(t, "50.00", q.ItemsPrice.String())
	assert.Equal(t, "7.50", q.TaxPrice.String())
	assert.Equal(t, "10.00", q.ShippingPrice.String())
	assert.Equal(t, "67.50", q.TotalPrice.String())
}

func TestPriceFreeShippingBoundary(t *testing.T) {
	cases := []struct {
		items    string
		shipping string
	}{
		{"100.00", "10.00"},
		{"100.01", "0.00"},
		{"99.99", "10.00"},
		{"250.00", "0.00"},
	}
	for _, tc := range cases {
		t.Run(tc.items, func(t *testing.T) {
			q, err := Default().Price([]Line{{UnitPrice: money(tc.items), Quantity: 1}})
			require.NoError(t, err)
			assert.Equal(t, tc.shipping, q.ShippingPrice.String())
			assert.Equal(t, q.ItemsPrice+q.TaxPrice+q.ShippingPrice, q.TotalPrice)
		})
	}
}

func TestPriceRoundsTaxHalfUp(t *testing.T) {
	// 0.10 * 0.15 = 0.015 -> 0.02
	q, err := Default().Price([]Line{{UnitPrice: money("0.10"), Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, "0.02", q.TaxPrice.String())

	// 33.33 * 3 = 99.99; tax 14.9985 -> 15.00
	q, err = Default().Price([]Line{{UnitPrice: money("33.33"), Quantity: 3}})
	require.NoError(t, err)
	assert.Equal(t, "99.99", q.ItemsPrice.String())
	assert.Equal(t, "15.00", q.TaxPrice.String())
	assert.Equal(t, "124.99", q.TotalPrice.String())
}

func TestPriceMultipleLinesAndEmpty(t *testing.T) {
	q, err := Default().Price([]Line{
		{UnitPrice: money("19.99"), Quantity: 2},
		{UnitPrice: money("5.50"), Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "45.48", q.ItemsPrice.String())
	assert.Equal(t, "6.82", q.TaxPrice.String())

	q, err = Default().Price(nil)
	require.NoError(t, err)
	assert.Equal(t, "10.00", q.TotalPrice.String())
}

func TestPriceRejectsBadQuantity(t *testing.T) {
	_, err := Default().Price([]Line{{UnitPrice: money("1.00"), Quantity: 0}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNewEngineFromConfig(t *testing.T) {
	e, err := NewEngine(config.PricingConfig{TaxRate: "0.15", FreeShippingThreshold: "100.00", ShippingFee: "10.00", Currency: "usd"})
	require.NoError(t, err)
	assert.True(t, e.TaxRate.Equal(Default().TaxRate))
	assert.Equal(t, Default().FreeShippingThreshold, e.FreeShippingThreshold)

	_, err = NewEngine(config.PricingConfig{TaxRate: "abc", FreeShippingThreshold: "100", ShippingFee: "10"})
	assert.Error(t, err)
	_, err = NewEngine(config.PricingConfig{TaxRate: "1.5", FreeShippingThreshold: "100", ShippingFee: "10"})
	assert.Error(t, err)
}
