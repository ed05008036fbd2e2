package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
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

// Outcome reports what a paid-latch attempt did.
type Outcome string

const (
	OutcomePaid Outcome = "paid"
	OutcomeNoop Outcome = "noop"
)

const paypalCompleted = "COMPLETED"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service reconciles order payment state from every settlement path.
type Service interface {
	CreatePaymentIntent(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*ClientSecretResponse, error)
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID, result models.PaymentResult) (*models.Order, Outcome, error)
	ConfirmClientPayment(ctx context.Context, orderID uuid.UUID, actor types.Actor, confirmation ClientConfirmation) (*orders.OrderDTO, error)
	CollectCash(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*orders.OrderDTO, error)
}

// ServiceParams groups the payment service dependencies.
type ServiceParams struct {
	Orders   orders.Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Gateway  Gateway
	Currency string
	Metrics  *metrics.OrderMetrics
	Logger   *logger.Logger
}

type service struct {
	orders   orders.Repository
	tx       txRunner
	outbox   outboxPublisher
	gateway  Gateway
	currency string
	metrics  *metrics.OrderMetrics
	logg     *logger.Logger
}

// OrderPaidEvent is emitted exactly once per order, by whichever path wins
// the paid latch.
type OrderPaidEvent struct {
	OrderID       uuid.UUID           `json:"orderId"`
	UserID        uuid.UUID           `json:"userId"`
	TotalPrice    types.Money         `json:"totalPrice"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	Source        enums.PaymentSource `json:"source"`
	PaymentID     string              `json:"paymentId"`
	PaidAt        time.Time           `json:"paidAt"`
	// PaidAfterCancel marks a payment that landed on a canceled order and
	// needs a manual refund.
	PaidAfterCancel bool `json:"paidAfterCancel,omitempty"`
}

// NewService builds the payment service. Gateway may be nil when card
// payments are disabled; intent creation then fails with a dependency error.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		return nil, fmt.Errorf("currency required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		orders:   params.Orders,
		tx:       params.Tx,
		outbox:   params.Outbox,
		gateway:  params.Gateway,
		currency: currency,
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

func (s *service) CreatePaymentIntent(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*ClientSecretResponse, error) {
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}
	order, err := s.load(ctx, s.orders, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "not authorized to pay for this order")
	}
	if err := payable(order); err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodStripe {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not paid by card")
	}

	if order.PaymentIntentID != nil {
		return s.existingIntent(ctx, *order.PaymentIntentID)
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, IntentRequest{
		OrderID:        order.ID,
		UserID:         order.UserID,
		Amount:         order.TotalPrice,
		Currency:       s.currency,
		IdempotencyKey: IntentIdempotencyKey(order.ID),
	})
	if err != nil {
		return nil, err
	}

	attached, err := s.orders.AttachPaymentIntent(ctx, order.ID, intent.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach payment intent")
	}
	if attached {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":          order.ID.String(),
			"payment_intent_id": intent.ID,
		})
		s.logg.Info(logCtx, "payment intent attached")
		return &ClientSecretResponse{ClientSecret: intent.ClientSecret}, nil
	}

	// another request attached first, or the order moved on
	current, err := s.load(ctx, s.orders, order.ID)
	if err != nil {
		return nil, err
	}
	if err := payable(current); err != nil {
		return nil, err
	}
	if current.PaymentIntentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
	}
	if *current.PaymentIntentID == intent.ID {
		return &ClientSecretResponse{ClientSecret: intent.ClientSecret}, nil
	}
	return s.existingIntent(ctx, *current.PaymentIntentID)
}

func (s *service) existingIntent(ctx context.Context, intentID string) (*ClientSecretResponse, error) {
	intent, err := s.gateway.RetrievePaymentIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status == IntentStatusCanceled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment intent is no longer usable")
	}
	return &ClientSecretResponse{ClientSecret: intent.ClientSecret}, nil
}

// MarkOrderPaid latches is_paid exactly once. Later calls return the stored
// order untouched with OutcomeNoop, keeping the first paidAt and result.
func (s *service) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, result models.PaymentResult) (*models.Order, Outcome, error) {
	var (
		order   *models.Order
		outcome = OutcomeNoop
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		now := time.Now().UTC()
		if result.UpdateTime == "" {
			result.UpdateTime = now.Format(time.RFC3339)
		}

		ok, err := repo.MarkPaidIfUnpaid(ctx, orderID, now, result)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		order, err = s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		outcome = OutcomePaid
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         outbox.SystemActor("payments:" + result.Source.String()),
			Data: OrderPaidEvent{
				OrderID:       orderID,
				UserID:        order.UserID,
				TotalPrice:    order.TotalPrice,
				PaymentMethod: order.PaymentMethod,
				Source:        result.Source,
				PaymentID:     result.ID,
				PaidAt:        now,

				PaidAfterCancel: order.IsCanceled(),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit paid event")
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	s.metrics.IncPaymentReconciled(result.Source.String(), string(outcome))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":   orderID.String(),
		"source":     result.Source.String(),
		"payment_id": result.ID,
		"outcome":    string(outcome),
	})
	if outcome == OutcomePaid && order.IsCanceled() {
		s.logg.Warn(logCtx, "order paid after cancellation")
	} else {
		s.logg.Info(logCtx, "order payment reconciled")
	}
	return order, outcome, nil
}

func (s *service) ConfirmClientPayment(ctx context.Context, orderID uuid.UUID, actor types.Actor, confirmation ClientConfirmation) (*orders.OrderDTO, error) {
	order, err := s.load(ctx, s.orders, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "not authorized to pay for this order")
	}
	if order.IsPaid {
		dto := orders.ToDTO(*order)
		return &dto, nil
	}

	var result models.PaymentResult
	switch order.PaymentMethod {
	case enums.PaymentMethodStripe:
		result, err = s.confirmStripe(ctx, order)
	case enums.PaymentMethodPayPal:
		result, err = confirmPayPal(confirmation)
	default:
		err = pkgerrors.New(pkgerrors.CodeStateConflict, "cash on delivery orders are settled on collection")
	}
	if err != nil {
		return nil, err
	}

	paid, _, err := s.MarkOrderPaid(ctx, orderID, result)
	if err != nil {
		return nil, err
	}
	dto := orders.ToDTO(*paid)
	return &dto, nil
}

func (s *service) confirmStripe(ctx context.Context, order *models.Order) (models.PaymentResult, error) {
	if s.gateway == nil {
		return models.PaymentResult{}, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway not configured")
	}
	if order.PaymentIntentID == nil {
		return models.PaymentResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "payment not completed")
	}
	intent, err := s.gateway.RetrievePaymentIntent(ctx, *order.PaymentIntentID)
	if err != nil {
		return models.PaymentResult{}, err
	}
	if intent.Status != IntentStatusSucceeded || intent.Amount != order.TotalPrice {
		return models.PaymentResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "payment not completed").
			WithDetails(map[string]any{"status": intent.Status})
	}
	return models.PaymentResult{
		ID:           intent.ID,
		Status:       intent.Status,
		EmailAddress: intent.ReceiptEmail,
		Source:       enums.PaymentSourceClient,
	}, nil
}

func confirmPayPal(confirmation ClientConfirmation) (models.PaymentResult, error) {
	if strings.TrimSpace(confirmation.ID) == "" || !strings.EqualFold(confirmation.Status, paypalCompleted) {
		return models.PaymentResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "payment not completed")
	}
	return models.PaymentResult{
		ID:           confirmation.ID,
		Status:       strings.ToUpper(confirmation.Status),
		UpdateTime:   confirmation.UpdateTime,
		EmailAddress: confirmation.Payer.EmailAddress,
		Source:       enums.PaymentSourceClient,
	}, nil
}

// CollectCash settles a cash-on-delivery order once an admin confirms the
// courier collected payment.
func (s *service) CollectCash(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*orders.OrderDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	order, err := s.load(ctx, s.orders, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodCOD {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not cash on delivery")
	}
	if err := payable(order); err != nil {
		return nil, err
	}

	paid, _, err := s.MarkOrderPaid(ctx, orderID, models.PaymentResult{
		ID:     "cash-" + orderID.String(),
		Status: "COLLECTED",
		Source: enums.PaymentSourceCash,
	})
	if err != nil {
		return nil, err
	}
	dto := orders.ToDTO(*paid)
	return &dto, nil
}

func (s *service) load(ctx context.Context, repo orders.Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if orders.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func payable(order *models.Order) error {
	switch {
	case order.IsPaid:
		return pkgerrors.New(pkgerrors.CodeAlreadyPaid, "order already paid")
	case order.IsCanceled():
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is canceled")
	}
	return nil
}
