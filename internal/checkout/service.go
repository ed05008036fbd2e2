package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tramar/pcbuilder-backend/internal/checkout/helpers"
	"github.com/tramar/pcbuilder-backend/internal/inventory"
	"github.com/tramar/pcbuilder-backend/internal/orders"
	"github.com/tramar/pcbuilder-backend/internal/pricing"
	"github.com/tramar/pcbuilder-backend/internal/products"
	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	"github.com/tramar/pcbuilder-backend/pkg/enums"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
	"github.com/tramar/pcbuilder-backend/pkg/logger"
	"github.com/tramar/pcbuilder-backend/pkg/metrics"
	"github.com/tramar/pcbuilder-backend/pkg/outbox"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockReserver interface {
	ReserveAll(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
}

type cartClearer interface {
	ClearTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service places orders.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
}

// ItemInput is one requested product and quantity.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// PlaceOrderInput carries everything placement needs. Prices are never part
// of the input.
type PlaceOrderInput struct {
	UserID          uuid.UUID
	Items           []ItemInput
	ShippingAddress types.ShippingAddress
	PaymentMethod   string
}

// ServiceParams groups the placement dependencies.
type ServiceParams struct {
	Tx        txRunner
	Products  *products.Repository
	Orders    orders.Repository
	Inventory stockReserver
	Cart      cartClearer
	Pricing   *pricing.Engine
	Outbox    outboxPublisher
	Metrics   *metrics.OrderMetrics
	Logger    *logger.Logger
}

type service struct {
	tx        txRunner
	products  *products.Repository
	orders    orders.Repository
	inventory stockReserver
	cart      cartClearer
	pricing   *pricing.Engine
	outbox    outboxPublisher
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
}

// OrderCreatedEvent is emitted when an order commits.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"orderId"`
	UserID        uuid.UUID           `json:"userId"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	TotalPrice    types.Money         `json:"totalPrice"`
	Items         []OrderCreatedItem  `json:"items"`
}

type OrderCreatedItem struct {
	ProductID uuid.UUID   `json:"productId"`
	Quantity  int         `json:"quantity"`
	UnitPrice types.Money `json:"unitPrice"`
}

// NewService builds the placement service.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory reserver required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart clearer required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	engine := params.Pricing
	if engine == nil {
		engine = pricing.Default()
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		tx:        params.Tx,
		products:  params.Products,
		orders:    params.Orders,
		inventory: params.Inventory,
		cart:      params.Cart,
		pricing:   engine,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      logg,
	}, nil
}

// PlaceOrder validates the request, snapshots catalog prices, reserves stock
// and clears the cart in one transaction. Nothing persists unless every step
// succeeds.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	order, err := s.place(ctx, input)
	if err != nil {
		reason := string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(err); typed != nil {
			reason = string(typed.Code())
		}
		s.metrics.IncPlacementFailure(reason)
		return nil, err
	}

	s.metrics.IncPlaced()
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"user_id":        order.UserID.String(),
		"payment_method": order.PaymentMethod.String(),
		"total_cents":    order.TotalPrice.Cents(),
	})
	s.logg.Info(logCtx, "order placed")
	return order, nil
}

func (s *service) place(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	method, lines, err := validateInput(input)
	if err != nil {
		return nil, err
	}
	address := input.ShippingAddress.Normalize()

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		catalog, err := s.products.WithTx(tx).FindByIDs(ctx, helpers.ProductIDs(lines))
		if err != nil {
			return err
		}
		for _, line := range lines {
			product, ok := catalog[line.ProductID]
			if !ok {
				return inventory.ProductNotFound(line.ProductID)
			}
			if product.CountInStock < line.Quantity {
				return inventory.InsufficientStock(product, line.Quantity)
			}
		}

		items, priced := helpers.SnapshotLines(lines, catalog)
		quote, err := s.pricing.Price(priced)
		if err != nil {
			return err
		}

		order = &models.Order{
			UserID:          input.UserID,
			Items:           items,
			ShippingAddress: address,
			PaymentMethod:   method,
			ItemsPrice:      quote.ItemsPrice,
			TaxPrice:        quote.TaxPrice,
			ShippingPrice:   quote.ShippingPrice,
			TotalPrice:      quote.TotalPrice,
		}
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		if err := s.inventory.ReserveAll(ctx, tx, lines); err != nil {
			return err
		}
		if err := s.cart.ClearTx(ctx, tx, input.UserID); err != nil {
			return err
		}
		return s.emitOrderCreated(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	items := make([]OrderCreatedItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderCreatedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         outbox.UserActor(order.UserID, enums.RoleCustomer.String()),
		Data: OrderCreatedEvent{
			OrderID:       order.ID,
			UserID:        order.UserID,
			PaymentMethod: order.PaymentMethod,
			TotalPrice:    order.TotalPrice,
			Items:         items,
		},
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
	}
	return nil
}

func validateInput(input PlaceOrderInput) (enums.PaymentMethod, []inventory.Line, error) {
	if input.UserID == uuid.Nil {
		return "", nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Items) == 0 {
		return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "no order items")
	}

	lines := make([]inventory.Line, 0, len(input.Items))
	for i, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "product is required").
				WithDetails(map[string]any{"field": fmt.Sprintf("orderItems[%d].product", i)})
		}
		if item.Quantity < 1 {
			return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"field": fmt.Sprintf("orderItems[%d].quantity", i)})
		}
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	if !input.ShippingAddress.Complete() {
		return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is incomplete")
	}
	method, err := enums.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
			WithDetails(map[string]any{"allowed": []string{"stripe", "paypal", "cod"}})
	}
	return method, helpers.MergeLines(lines), nil
}
