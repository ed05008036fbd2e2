package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/tramar/pcbuilder-backend/internal/orders"
	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	"github.com/tramar/pcbuilder-backend/pkg/enums"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
	"github.com/tramar/pcbuilder-backend/pkg/logger"
	"github.com/tramar/pcbuilder-backend/pkg/metrics"
	"github.com/tramar/pcbuilder-backend/pkg/outbox"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

const (
	eventIntentSucceeded = "payment_intent.succeeded"
	eventIntentFailed    = "payment_intent.payment_failed"

	resultProcessed = "processed"
	resultDuplicate = "duplicate"
	resultIgnored   = "ignored"
	resultDiscarded = "discarded"
	resultFailed    = "error"
)

var errDiscard = errors.New("event discarded")

// EventVerifier checks a webhook signature over the raw body.
type EventVerifier interface {
	ConstructEvent(payload []byte, header string) (stripe.Event, error)
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type paidMarker interface {
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID, result models.PaymentResult) (*models.Order, Outcome, error)
}

// WebhookParams groups the webhook handler dependencies.
type WebhookParams struct {
	Verifier EventVerifier
	Guard    eventGuard
	Payments paidMarker
	Orders   orders.Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Currency string
	Metrics  *metrics.OrderMetrics
	Logger   *logger.Logger
}

// Webhook reconciles gateway events. Only a bad signature is reported back
// to the sender; everything after verification is acknowledged.
type Webhook struct {
	verifier EventVerifier
	guard    eventGuard
	payments paidMarker
	orders   orders.Repository
	tx       txRunner
	outbox   outboxPublisher
	currency string
	metrics  *metrics.OrderMetrics
	logg     *logger.Logger
}

// PaymentFailedEvent records a declined or failed card attempt.
type PaymentFailedEvent struct {
	OrderID         uuid.UUID `json:"orderId"`
	PaymentIntentID string    `json:"paymentIntentId"`
	FailureCode     string    `json:"failureCode,omitempty"`
	FailureMessage  string    `json:"failureMessage,omitempty"`
}

func NewWebhook(params WebhookParams) (*Webhook, error) {
	if params.Verifier == nil {
		return nil, errors.New("webhook verifier required")
	}
	if params.Payments == nil {
		return nil, errors.New("payment service required")
	}
	if params.Orders == nil {
		return nil, errors.New("orders repository required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox publisher required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Webhook{
		verifier: params.Verifier,
		guard:    params.Guard,
		payments: params.Payments,
		orders:   params.Orders,
		tx:       params.Tx,
		outbox:   params.Outbox,
		currency: strings.ToLower(strings.TrimSpace(params.Currency)),
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

// Handle verifies payload against header and applies the event. The only
// error it returns is CodeSignatureInvalid.
func (h *Webhook) Handle(ctx context.Context, payload []byte, header string) error {
	event, err := h.verifier.ConstructEvent(payload, header)
	if err != nil {
		logCtx := h.logg.WithField(ctx, "error", err.Error())
		h.logg.Warn(logCtx, "webhook signature rejected")
		return pkgerrors.Wrap(pkgerrors.CodeSignatureInvalid, err, "webhook signature verification failed")
	}

	eventType := string(event.Type)
	ctx = h.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"event_type": eventType,
	})

	if h.guard != nil {
		seen, err := h.guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			h.logg.Error(ctx, "webhook event guard unavailable", err)
		} else if seen {
			h.metrics.IncWebhookEvent(eventType, resultDuplicate)
			h.logg.Info(ctx, "webhook event already processed")
			return nil
		}
	}

	result, err := h.dispatch(ctx, event)
	switch {
	case errors.Is(err, errDiscard):
		result = resultDiscarded
	case err != nil:
		result = resultFailed
		h.logg.Error(ctx, "webhook event processing failed", err)
		if h.guard != nil {
			if ferr := h.guard.Forget(ctx, event.ID); ferr != nil {
				h.logg.Error(ctx, "webhook event guard release failed", ferr)
			}
		}
	}
	h.metrics.IncWebhookEvent(eventType, result)
	return nil
}

func (h *Webhook) dispatch(ctx context.Context, event stripe.Event) (string, error) {
	switch string(event.Type) {
	case eventIntentSucceeded:
		return resultProcessed, h.onSucceeded(ctx, event)
	case eventIntentFailed:
		return resultProcessed, h.onFailed(ctx, event)
	default:
		return resultIgnored, nil
	}
}

func (h *Webhook) onSucceeded(ctx context.Context, event stripe.Event) error {
	intent, order, err := h.resolve(ctx, event)
	if err != nil {
		return err
	}

	if types.Money(intent.Amount) != order.TotalPrice || !strings.EqualFold(string(intent.Currency), h.currency) {
		logCtx := h.logg.WithFields(ctx, map[string]any{
			"order_id":        order.ID.String(),
			"intent_amount":   intent.Amount,
			"intent_currency": string(intent.Currency),
			"order_total":     order.TotalPrice.Cents(),
		})
		h.logg.Warn(logCtx, "webhook amount mismatch; order not marked paid")
		return errDiscard
	}

	_, _, err = h.payments.MarkOrderPaid(ctx, order.ID, models.PaymentResult{
		ID:           intent.ID,
		Status:       string(intent.Status),
		EmailAddress: intent.ReceiptEmail,
		Source:       enums.PaymentSourceWebhook,
	})
	return err
}

func (h *Webhook) onFailed(ctx context.Context, event stripe.Event) error {
	intent, order, err := h.resolve(ctx, event)
	if err != nil {
		return err
	}

	data := PaymentFailedEvent{OrderID: order.ID, PaymentIntentID: intent.ID}
	if intent.LastPaymentError != nil {
		data.FailureCode = string(intent.LastPaymentError.Code)
		data.FailureMessage = intent.LastPaymentError.Msg
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"failure_code": data.FailureCode,
	})
	h.logg.Warn(logCtx, "payment attempt failed")

	return h.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return h.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.SystemActor("payments:webhook"),
			Data:          data,
		})
	})
}

// resolve decodes the intent and finds its order via metadata.orderId.
func (h *Webhook) resolve(ctx context.Context, event stripe.Event) (*stripe.PaymentIntent, *models.Order, error) {
	if event.Data == nil {
		h.logg.Warn(ctx, "webhook event has no data")
		return nil, nil, errDiscard
	}
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "webhook payment intent undecodable")
		return nil, nil, errDiscard
	}

	orderID, err := uuid.Parse(strings.TrimSpace(intent.Metadata[metadataOrderID]))
	if err != nil {
		h.logg.Warn(h.logg.WithField(ctx, "payment_intent_id", intent.ID), "webhook intent missing order reference")
		return nil, nil, errDiscard
	}
	order, err := h.orders.FindByID(ctx, orderID)
	if err != nil {
		if orders.IsNotFound(err) {
			h.logg.Warn(h.logg.WithOrderID(ctx, orderID.String()), "webhook references unknown order")
			return nil, nil, errDiscard
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &intent, order, nil
}
