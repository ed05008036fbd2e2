package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePaymentMethod(t *testing.T) {
	for _, raw := range []string{"stripe", "paypal", "cod"} {
		m, err := ParsePaymentMethod(raw)
		require.NoError(t, err)
		assert.True(t, m.IsValid())
	}
	_, err := ParsePaymentMethod("Stripe")
	assert.Error(t, err)

	assert.True(t, PaymentMethodStripe.SettlesOnline())
	assert.True(t, PaymentMethodPayPal.SettlesOnline())
	assert.False(t, PaymentMethodCOD.SettlesOnline())
}

func TestParseRoleAndCancelReason(t *testing.T) {
	r, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)
	_, err = ParseRole("root")
	assert.Error(t, err)

	c, err := ParseCancelReason("payment_window_expired")
	require.NoError(t, err)
	assert.Equal(t, CancelReasonExpired, c)
	assert.False(t, CancelReason("lost").IsValid())
}

func TestOutboxEnums(t *testing.T) {
	e, err := ParseOutboxEventType("order_paid")
	require.NoError(t, err)
	assert.Equal(t, EventOrderPaid, e)
	assert.False(t, OutboxEventType("order_refunded").IsValid())

	a, err := ParseOutboxAggregateType("product")
	require.NoError(t, err)
	assert.True(t, a.IsValid())
	_, err = ParseOutboxAggregateType("store")
	assert.Error(t, err)
}
