package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	"github.com/tramar/pcbuilder-backend/pkg/enums"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
	"github.com/tramar/pcbuilder-backend/pkg/logger"
	"github.com/tramar/pcbuilder-backend/pkg/outbox"
	"github.com/tramar/pcbuilder-backend/pkg/pagination"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

// Service defines order reads and the lifecycle transitions outside payment.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*OrderDTO, error)
	ListMine(ctx context.Context, actor types.Actor, params pagination.Params) (*OrderList, error)
	ListAll(ctx context.Context, actor types.Actor, params pagination.Params) (*OrderList, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*OrderDTO, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*OrderDTO, error)
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (*ExpireResult, error)
}

// ExpireResult summarizes one expiry sweep.
type ExpireResult struct {
	Scanned int
	Expired int
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory InventoryReleaser
	intents   IntentCanceler
	logg      *logger.Logger
}

// OrderDeliveredEvent is emitted when an admin marks an order delivered.
type OrderDeliveredEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	UserID      uuid.UUID `json:"userId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// OrderClosedEvent is emitted for both cancellations and expiries.
type OrderClosedEvent struct {
	OrderID    uuid.UUID          `json:"orderId"`
	UserID     uuid.UUID          `json:"userId"`
	Reason     enums.CancelReason `json:"reason"`
	TotalPrice types.Money        `json:"totalPrice"`
	CanceledAt time.Time          `json:"canceledAt"`
}

// NewService builds the order service. intents may be nil when no gateway is
// configured; logg may be nil in tests.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, inventory InventoryReleaser, intents IntentCanceler, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory releaser required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outbox,
		inventory: inventory,
		intents:   intents,
		logg:      logg,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*OrderDTO, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(order.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "not authorized to view this order")
	}
	dto := ToDTO(*order)
	return &dto, nil
}

func (s *service) ListMine(ctx context.Context, actor types.Actor, params pagination.Params) (*OrderList, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, next, err := s.repo.ListByUser(ctx, actor.UserID, params)
	if err != nil {
		return nil, listError(err)
	}
	list := toList(rows, next)
	return &list, nil
}

func (s *service) ListAll(ctx context.Context, actor types.Actor, params pagination.Params) (*OrderList, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	rows, next, err := s.repo.ListAll(ctx, params)
	if err != nil {
		return nil, listError(err)
	}
	list := toList(rows, next)
	return &list, nil
}

func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*OrderDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if err := deliverable(order); err != nil {
			return err
		}

		now := time.Now().UTC()
		ok, err := repo.MarkDeliveredIfUndelivered(ctx, orderID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order delivered")
		}
		if !ok {
			// lost a race; report the state that won
			current, err := s.load(ctx, repo, orderID)
			if err != nil {
				return err
			}
			if err := deliverable(current); err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         outbox.UserActor(actor.UserID, actor.Role.String()),
			Data: OrderDeliveredEvent{
				OrderID:     orderID,
				UserID:      order.UserID,
				DeliveredAt: now,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit delivered event")
		}

		updated, err = s.load(ctx, repo, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	s.logg.Info(logCtx, "order delivered")
	dto := ToDTO(*updated)
	return &dto, nil
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor types.Actor) (*OrderDTO, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var closed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !actor.CanAccess(order.UserID) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "not authorized to cancel this order")
		}

		reason := enums.CancelReasonCustomer
		if actor.UserID != order.UserID {
			reason = enums.CancelReasonAdmin
		}
		closed, err = s.close(ctx, tx, order, reason, outbox.UserActor(actor.UserID, actor.Role.String()))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.voidIntent(ctx, closed)
	dto := ToDTO(*closed)
	return &dto, nil
}

// ExpireUnpaid closes online-payment orders left unpaid past cutoff and
// returns their stock. Each order closes in its own transaction so one
// failure does not hold back the rest.
func (s *service) ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (*ExpireResult, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	candidates, err := s.repo.FindExpirable(ctx, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expirable orders")
	}

	result := &ExpireResult{Scanned: len(candidates)}
	var errs error
	for i := range candidates {
		candidate := candidates[i]
		var closed *models.Order
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			closed, err = s.close(ctx, tx, &candidate, enums.CancelReasonExpired, outbox.SystemActor("unpaid-order-expiry"))
			return err
		})
		if err != nil {
			// paid or canceled between the scan and the update
			if pkgerrors.IsCode(err, pkgerrors.CodeAlreadyPaid) || pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", candidate.ID, err))
			continue
		}
		result.Expired++
		s.voidIntent(ctx, closed)
	}
	return result, errs
}

// close performs the unpaid -> canceled transition, releases stock and
// records the event. It must run inside tx.
func (s *service) close(ctx context.Context, tx *gorm.DB, order *models.Order, reason enums.CancelReason, actor *outbox.ActorRef) (*models.Order, error) {
	repo := s.repo.WithTx(tx)
	if err := cancelable(order); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ok, err := repo.CancelIfOpen(ctx, order.ID, reason, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if !ok {
		current, err := s.load(ctx, repo, order.ID)
		if err != nil {
			return nil, err
		}
		if err := cancelable(current); err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
	}

	if err := s.inventory.ReleaseAll(ctx, tx, Lines(*order)); err != nil {
		return nil, err
	}

	eventType := enums.EventOrderCanceled
	if reason == enums.CancelReasonExpired {
		eventType = enums.EventOrderExpired
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: OrderClosedEvent{
			OrderID:    order.ID,
			UserID:     order.UserID,
			Reason:     reason,
			TotalPrice: order.TotalPrice,
			CanceledAt: now,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit cancel event")
	}

	return s.load(ctx, repo, order.ID)
}

// voidIntent cancels the gateway intent after commit. A failure leaves an
// orphaned intent that can never be matched to an open order.
func (s *service) voidIntent(ctx context.Context, order *models.Order) {
	if s.intents == nil || order == nil || order.PaymentIntentID == nil {
		return
	}
	if err := s.intents.CancelPaymentIntent(ctx, *order.PaymentIntentID); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":          order.ID.String(),
			"payment_intent_id": *order.PaymentIntentID,
			"error":             err.Error(),
		})
		s.logg.Warn(logCtx, "payment intent cancel failed")
	}
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func deliverable(order *models.Order) error {
	switch {
	case order.IsDelivered:
		return pkgerrors.New(pkgerrors.CodeAlreadyDelivered, "order already delivered")
	case order.IsCanceled():
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is canceled")
	case !order.IsPaid:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not paid")
	}
	return nil
}

func cancelable(order *models.Order) error {
	switch {
	case order.IsPaid:
		return pkgerrors.New(pkgerrors.CodeAlreadyPaid, "paid orders cannot be canceled")
	case order.IsCanceled():
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order already canceled")
	}
	return nil
}

func listError(err error) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
}
