package payments

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	"github.com/tramar/pcbuilder-backend/pkg/enums"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
	"github.com/tramar/pcbuilder-backend/pkg/outbox"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

func customer() types.Actor {
	return types.Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

func TestMarkOrderPaidKeepsFirstResult(t *testing.T) {
	f := newFixture(t)
	order := seedOrder(t, f, uuid.New(), enums.PaymentMethodStripe)
	ctx := context.Background()

	first, outcome, err := f.svc.MarkOrderPaid(ctx, order.ID, models.PaymentResult{ID: "pi_first", Status: "succeeded", Source: enums.PaymentSourceWebhook})
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, outcome)
	require.NotNil(t, first.PaidAt)

	second, outcome, err := f.svc.MarkOrderPaid(ctx, order.ID, models.PaymentResult{ID: "pi_second", Status: "succeeded", Source: enums.PaymentSourceClient})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, outcome)
	assert.True(t, second.IsPaid)
	assert.Equal(t, "pi_first", second.PaymentResult.ID)
	assert.Equal(t, enums.PaymentSourceWebhook, second.PaymentResult.Source)
	assert.True(t, first.PaidAt.Equal(*second.PaidAt))

	assert.Equal(t, 1, countEvents(t, f, order.ID, enums.EventOrderPaid))

	_, _, err = f.svc.MarkOrderPaid(ctx, uuid.New(), models.PaymentResult{ID: "pi_x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestMarkOrderPaidFlagsPaymentAfterCancellation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	canceled := seedOrder(t, f, uuid.New(), enums.PaymentMethodStripe)
	require.NoError(t, f.client.DB().Model(&models.Order{}).
		Where("id = ?", canceled.ID).
		Updates(map[string]any{"canceled_at": time.Now().UTC(), "cancel_reason": enums.CancelReasonExpired}).Error)
	active := seedOrder(t, f, uuid.New(), enums.PaymentMethodStripe)

	order, outcome, err := f.svc.MarkOrderPaid(ctx, canceled.ID, models.PaymentResult{ID: "pi_late", Source: enums.PaymentSourceWebhook})
	require.NoError(t, err)
	assert.Equal(t, OutcomePaid, outcome)
	assert.True(t, order.IsPaid)
	assert.True(t, order.IsCanceled())

	_, _, err = f.svc.MarkOrderPaid(ctx, active.ID, models.PaymentResult{ID: "pi_ok", Source: enums.PaymentSourceWebhook})
	require.NoError(t, err)

	assert.True(t, paidEvent(t, f, canceled.ID).PaidAfterCancel)
	assert.False(t, paidEvent(t, f, active.ID).PaidAfterCancel)
}

func paidEvent(t *testing.T, f fixture, orderID uuid.UUID) OrderPaidEvent {
	t.Helper()
	events, err := f.outbox.ListByAggregate(context.Background(), orderID)
	require.NoError(t, err)
	for _, e := range events {
		if e.EventType != enums.EventOrderPaid {
			continue
		}
		envelope, err := outbox.DecodeEnvelope(e.Payload)
		require.NoError(t, err)
		var data OrderPaidEvent
		require.NoError(t, json.Unmarshal(envelope.Data, &data))
		return data
	}
	t.Fatalf("no order_paid event for %s", orderID)
	return OrderPaidEvent{}
}

func TestMarkOrderPaidConcurrentCallersLatchOnce(t *testing.T) {
	f := newFixture(t)
	order := seedOrder(t, f, uuid.New(), enums.PaymentMethodStripe)

	const callers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		paid  int
		noops int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			source := enums.PaymentSourceWebhook
			if i%2 == 0 {
				source = enums.PaymentSourceClient
			}
			_, outcome, err := f.svc.MarkOrderPaid(context.Background(), order.ID, models.PaymentResult{ID: "pi_race", Source: source})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if outcome == OutcomePaid {
				paid++
			} else {
				noops++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, paid)
	assert.Equal(t, callers-1, noops)
	assert.Equal(t, 1, countEvents(t, f, order.ID, enums.EventOrderPaid))
}

func TestCreatePaymentIntentAttachesThenReuses(t *testing.T) {
	f := newFixture(t)
	owner := customer()
	order := seedOrder(t, f, owner.UserID, enums.PaymentMethodStripe)
	ctx := context.Background()

	res, err := f.svc.CreatePaymentIntent(ctx, order.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret", res.ClientSecret)
	require.Len(t, f.gateway.created, 1)
	assert.Equal(t, types.MustParseMoney("67.50"), f.gateway.created[0].Amount)
	assert.Equal(t, "usd", f.gateway.created[0].Currency)
	assert.Equal(t, "order-"+order.ID.String()+"-intent", f.gateway.created[0].IdempotencyKey)

	again, err := f.svc.CreatePaymentIntent(ctx, order.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, res.ClientSecret, again.ClientSecret)
	assert.Len(t, f.gateway.created, 1)

	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PaymentIntentID)
	assert.Equal(t, "pi_1", *stored.PaymentIntentID)
}

func TestCreatePaymentIntentRejections(t *testing.T) {
	f := newFixture(t)
	owner := customer()
	ctx := context.Background()

	_, err := f.svc.CreatePaymentIntent(ctx, uuid.New(), owner)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	order := seedOrder(t, f, owner.UserID, enums.PaymentMethodStripe)
	_, err = f.svc.CreatePaymentIntent(ctx, order.ID, customer())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	cod := seedOrder(t, f, owner.UserID, enums.PaymentMethodCOD)
	_, err = f.svc.CreatePaymentIntent(ctx, cod.ID, owner)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, _, err = f.svc.MarkOrderPaid(ctx, order.ID, models.PaymentResult{ID: "pi_done", Source: enums.PaymentSourceWebhook})
	require.NoError(t, err)
	_, err = f.svc.CreatePaymentIntent(ctx, order.ID, owner)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyPaid))
	assert.Empty(t, f.gateway.created)
}

func TestCreatePaymentIntentReturnsWinnerAfterLostRace(t *testing.T) {
	f := newFixture(t)
	owner := customer()
	order := seedOrder(t, f, owner.UserID, enums.PaymentMethodStripe)
	ctx := context.Background()

	f.gateway.put(Intent{ID: "pi_winner", ClientSecret: "pi_winner_secret", Status: "requires_payment_method"})
	f.gateway.nextID = "pi_loser"
	f.gateway.onCreate = func(IntentRequest) {
		ok, err := f.orders.AttachPaymentIntent(ctx, order.ID, "pi_winner")
		require.NoError(t, err)
		require.True(t, ok)
	}

	res, err := f.svc.CreatePaymentIntent(ctx, order.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "pi_winner_secret", res.ClientSecret)
}

func TestConfirmClientPaymentStripe(t *testing.T) {
	f := newFixture(t)
	owner := customer()
	order := seedOrder(t, f, owner.UserID, enums.PaymentMethodStripe)
	ctx := context.Background()

	_, err := f.svc.ConfirmClientPayment(ctx, order.ID, owner, ClientConfirmation{})
	require.Error(t, err)
	assert.Equal(t, "payment not completed", pkgerrors.As(err).Message())

	_, err = f.svc.CreatePaymentIntent(ctx, order.ID, owner)
	require.NoError(t, err)
	_, err = f.svc.ConfirmClientPayment(ctx, order.ID, owner, ClientConfirmation{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	f.gateway.put(Intent{ID: "pi_1", Status: IntentStatusSucceeded, Amount: types.MustParseMoney("67.50"), Currency: "usd", ReceiptEmail: "buyer@example.com"})

	_, err = f.svc.ConfirmClientPayment(ctx, order.ID, customer(), ClientConfirmation{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	dto, err := f.svc.ConfirmClientPayment(ctx, order.ID, owner, ClientConfirmation{})
	require.NoError(t, err)
	assert.True(t, dto.IsPaid)
	require.NotNil(t, dto.PaymentResult)
	assert.Equal(t, enums.PaymentSourceClient, dto.PaymentResult.Source)
	assert.Equal(t, "buyer@example.com", dto.PaymentResult.EmailAddress)

	again, err := f.svc.ConfirmClientPayment(ctx, order.ID, owner, ClientConfirmation{})
	require.NoError(t, err)
	assert.True(t, again.IsPaid)
	assert.Equal(t, 1, countEvents(t, f, order.ID, enums.EventOrderPaid))
}

func TestConfirmClientPaymentStripeAmountMismatch(t *testing.T) {
	f := newFixture(t)
	owner := customer()
	order := seedOrder(t, f, owner.UserID, enums.PaymentMethodStripe)
	ctx := context.Background()

	_, err := f.svc.CreatePaymentIntent(ctx, order.ID, owner)
	require.NoError(t, err)
	f.gateway.put(Intent{ID: "pi_1", Status: IntentStatusSucceeded, Amount: types.MustParseMoney("1.00"), Currency: "usd"})

	_, err = f.svc.ConfirmClientPayment(ctx, order.ID, owner, ClientConfirmation{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	stored, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
}

func TestConfirmClientPaymentPayPalAndCOD(t *testing.T) {
	f := newFixture(t)
	owner := customer()
	ctx := context.Background()

	paypal := seedOrder(t, f, owner.UserID, enums.PaymentMethodPayPal)
	_, err := f.svc.ConfirmClientPayment(ctx, paypal.ID, owner, ClientConfirmation{ID: "CAP-1", Status: "PENDING"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	confirmation := ClientConfirmation{ID: "CAP-1", Status: "COMPLETED", UpdateTime: "2026-03-01T10:00:00Z"}
	confirmation.Payer.EmailAddress = "payer@example.com"
	dto, err := f.svc.ConfirmClientPayment(ctx, paypal.ID, owner, confirmation)
	require.NoError(t, err)
	assert.True(t, dto.IsPaid)
	assert.Equal(t, "CAP-1", dto.PaymentResult.ID)
	assert.Equal(t, "2026-03-01T10:00:00Z", dto.PaymentResult.UpdateTime)
	assert.Equal(t, "payer@example.com", dto.PaymentResult.EmailAddress)

	cod := seedOrder(t, f, owner.UserID, enums.PaymentMethodCOD)
	_, err = f.svc.ConfirmClientPayment(ctx, cod.ID, owner, confirmation)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestCollectCash(t *testing.T) {
	f := newFixture(t)
	admin := types.Actor{UserID: uuid.New(), Role: enums.RoleAdmin}
	owner := customer()
	ctx := context.Background()

	cod := seedOrder(t, f, owner.UserID, enums.PaymentMethodCOD)
	_, err := f.svc.CollectCash(ctx, cod.ID, owner)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	dto, err := f.svc.CollectCash(ctx, cod.ID, admin)
	require.NoError(t, err)
	assert.True(t, dto.IsPaid)
	assert.Equal(t, enums.PaymentSourceCash, dto.PaymentResult.Source)

	_, err = f.svc.CollectCash(ctx, cod.ID, admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyPaid))

	card := seedOrder(t, f, owner.UserID, enums.PaymentMethodStripe)
	_, err = f.svc.CollectCash(ctx, card.ID, admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}
