package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tramar/pcbuilder-backend/internal/inventory"
	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	"github.com/tramar/pcbuilder-backend/pkg/enums"
	"github.com/tramar/pcbuilder-backend/pkg/outbox"
	"github.com/tramar/pcbuilder-backend/pkg/pagination"
)

// Repository defines persistence operations for orders. The Mark*/Attach/
// Cancel methods are compare-and-set updates and report whether this call
// performed the transition.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	ListAll(ctx context.Context, params pagination.Params) ([]models.Order, string, error)
	FindExpirable(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	MarkPaidIfUnpaid(ctx context.Context, id uuid.UUID, paidAt time.Time, result models.PaymentResult) (bool, error)
	MarkDeliveredIfUndelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) (bool, error)
	AttachPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) (bool, error)
	CancelIfOpen(ctx context.Context, id uuid.UUID, reason enums.CancelReason, canceledAt time.Time) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InventoryReleaser returns reserved stock when an order closes unpaid.
type InventoryReleaser interface {
	ReleaseAll(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
}

// IntentCanceler voids a gateway payment intent. Failures are logged only.
type IntentCanceler interface {
	CancelPaymentIntent(ctx context.Context, intentID string) error
}
