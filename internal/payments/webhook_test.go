package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	"github.com/tramar/pcbuilder-backend/pkg/enums"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
)

func newGuard(t *testing.T, store *memStore) *EventGuard {
	t.Helper()
	guard, err := NewEventGuard(store, time.Hour, "stripe_webhook")
	require.NoError(t, err)
	return guard
}

func TestWebhookRejectsBadSignatureWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	order := seedOrder(t, f, uuid.New(), enums.PaymentMethodStripe)
	store := newMemStore()
	h := f.webhook(t, newGuard(t, store))

	payload := intentEvent(t, "evt_bad", eventIntentSucceeded, succeededIntent(order.ID, 6750))
	err := h.Handle(context.Background(), payload, signHeader(payload, "whsec_wrong"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSignatureInvalid))

	err = h.Handle(context.Background(), payload, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSignatureInvalid))

	stored, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
	assert.False(t, store.has(store.IdempotencyKey("stripe_webhook", "evt_bad")))
}

func TestWebhookSucceededMarksPaidOnce(t *testing.T) {
	f := newFixture(t)
	order := seedOrder(t, f, uuid.New(), enums.PaymentMethodStripe)
	h := f.webhook(t, newGuard(t, newMemStore()))
	ctx := context.Background()

	payload := intentEvent(t, "evt_1", eventIntentSucceeded, succeededIntent(order.ID, 6750))
	require.NoError(t, h.Handle(ctx, payload, signHeader(payload, testWebhookSecret)))
	require.NoError(t, h.Handle(ctx, payload, signHeader(payload, testWebhookSecret)))

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPaid)
	require.NotNil(t, stored.PaymentResult)
	assert.Equal(t, enums.PaymentSourceWebhook, stored.PaymentResult.Source)
	assert.Equal(t, "buyer@example.com", stored.PaymentResult.EmailAddress)
	assert.Equal(t, 1, countEvents(t, f, order.ID, enums.EventOrderPaid))

	// a distinct event id for the same intent still does not double-pay
	redelivered := intentEvent(t, "evt_2", eventIntentSucceeded, succeededIntent(order.ID, 6750))
	require.NoError(t, h.Handle(ctx, redelivered, signHeader(redelivered, testWebhookSecret)))
	assert.Equal(t, 1, countEvents(t, f, order.ID, enums.EventOrderPaid))
}

func TestWebhookAmountOrCurrencyMismatchIsNotPaid(t *testing.T) {
	f := newFixture(t)
	order := seedOrder(t, f, uuid.New(), enums.PaymentMethodStripe)
	h := f.webhook(t, nil)
	ctx := context.Background()

	short := intentEvent(t, "evt_short", eventIntentSucceeded, succeededIntent(order.ID, 100))
	require.NoError(t, h.Handle(ctx, short, signHeader(short, testWebhookSecret)))

	intent := succeededIntent(order.ID, 6750)
	intent["currency"] = "eur"
	foreign := intentEvent(t, "evt_eur", eventIntentSucceeded, intent)
	require.NoError(t, h.Handle(ctx, foreign, signHeader(foreign, testWebhookSecret)))

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
}

func TestWebhookDiscardsUnknownOrdersAndIgnoresOtherTypes(t *testing.T) {
	f := newFixture(t)
	h := f.webhook(t, nil)
	ctx := context.Background()

	unknown := intentEvent(t, "evt_unknown", eventIntentSucceeded, succeededIntent(uuid.New(), 6750))
	assert.NoError(t, h.Handle(ctx, unknown, signHeader(unknown, testWebhookSecret)))

	intent := succeededIntent(uuid.New(), 6750)
	delete(intent, "metadata")
	noMeta := intentEvent(t, "evt_nometa", eventIntentSucceeded, intent)
	assert.NoError(t, h.Handle(ctx, noMeta, signHeader(noMeta, testWebhookSecret)))

	other := intentEvent(t, "evt_other", "charge.refunded", map[string]any{"id": "ch_1", "object": "charge"})
	assert.NoError(t, h.Handle(ctx, other, signHeader(other, testWebhookSecret)))
}

func TestWebhookPaymentFailedEmitsEvent(t *testing.T) {
	f := newFixture(t)
	order := seedOrder(t, f, uuid.New(), enums.PaymentMethodStripe)
	h := f.webhook(t, nil)
	ctx := context.Background()

	intent := succeededIntent(order.ID, 6750)
	intent["status"] = "requires_payment_method"
	intent["last_payment_error"] = map[string]any{"code": "card_declined", "message": "Your card was declined."}
	payload := intentEvent(t, "evt_failed", eventIntentFailed, intent)
	require.NoError(t, h.Handle(ctx, payload, signHeader(payload, testWebhookSecret)))

	assert.Equal(t, 1, countEvents(t, f, order.ID, enums.EventPaymentFailed))
	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
}

func TestWebhookRacesClientConfirmation(t *testing.T) {
	f := newFixture(t)
	owner := customer()
	order := seedOrder(t, f, owner.UserID, enums.PaymentMethodStripe)
	h := f.webhook(t, newGuard(t, newMemStore()))
	ctx := context.Background()

	_, err := f.svc.CreatePaymentIntent(ctx, order.ID, owner)
	require.NoError(t, err)
	f.gateway.put(Intent{ID: "pi_1", Status: IntentStatusSucceeded, Amount: order.TotalPrice, Currency: "usd"})
	payload := intentEvent(t, "evt_race", eventIntentSucceeded, succeededIntent(order.ID, 6750))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, h.Handle(ctx, payload, signHeader(payload, testWebhookSecret)))
	}()
	go func() {
		defer wg.Done()
		_, err := f.svc.ConfirmClientPayment(ctx, order.ID, owner, ClientConfirmation{})
		assert.NoError(t, err)
	}()
	wg.Wait()

	assert.Equal(t, 1, countEvents(t, f, order.ID, enums.EventOrderPaid))
}

type failingPayments struct{}

func (failingPayments) MarkOrderPaid(context.Context, uuid.UUID, models.PaymentResult) (*models.Order, Outcome, error) {
	return nil, "", errors.New("db down")
}

func TestWebhookProcessingErrorIsAcknowledgedAndReleasesGuard(t *testing.T) {
	f := newFixture(t)
	order := seedOrder(t, f, uuid.New(), enums.PaymentMethodStripe)
	store := newMemStore()
	h := f.webhook(t, newGuard(t, store))
	h.payments = failingPayments{}

	payload := intentEvent(t, "evt_retry", eventIntentSucceeded, succeededIntent(order.ID, 6750))
	require.NoError(t, h.Handle(context.Background(), payload, signHeader(payload, testWebhookSecret)))
	assert.False(t, store.has(store.IdempotencyKey("stripe_webhook", "evt_retry")))
}

func TestWebhookGuardFailureStillProcesses(t *testing.T) {
	f := newFixture(t)
	order := seedOrder(t, f, uuid.New(), enums.PaymentMethodStripe)
	store := newMemStore()
	store.err = errors.New("redis unavailable")
	h := f.webhook(t, newGuard(t, store))

	payload := intentEvent(t, "evt_noguard", eventIntentSucceeded, succeededIntent(order.ID, 6750))
	require.NoError(t, h.Handle(context.Background(), payload, signHeader(payload, testWebhookSecret)))

	stored, err := f.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPaid)
}

func TestEventGuardValidation(t *testing.T) {
	_, err := NewEventGuard(nil, time.Minute, "scope")
	assert.Error(t, err)
	_, err = NewEventGuard(newMemStore(), -time.Second, "scope")
	assert.Error(t, err)
	_, err = NewEventGuard(newMemStore(), time.Minute, "")
	assert.Error(t, err)

	guard := newGuard(t, newMemStore())
	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)
	require.NoError(t, guard.Forget(context.Background(), "evt_1"))
	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = guard.CheckAndMark(context.Background(), "")
	assert.Error(t, err)
}
