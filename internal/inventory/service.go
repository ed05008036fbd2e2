package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tramar/pcbuilder-backend/pkg/db"
	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	"github.com/tramar/pcbuilder-backend/pkg/enums"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
	"github.com/tramar/pcbuilder-backend/pkg/logger"
	"github.com/tramar/pcbuilder-backend/pkg/outbox"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

// RestockResult is returned to admins after a manual restock.
type RestockResult struct {
	ProductID    uuid.UUID `json:"productId"`
	CountInStock int       `json:"countInStock"`
}

type productRestockedEvent struct {
	ProductID    uuid.UUID `json:"productId"`
	Quantity     int       `json:"quantity"`
	CountInStock int       `json:"countInStock"`
}

// Service exposes admin stock adjustments over the ledger.
type Service struct {
	db     *db.Client
	ledger *Ledger
	outbox *outbox.Service
	logg   *logger.Logger
}

func NewService(client *db.Client, ledger *Ledger, outboxSvc *outbox.Service, logg *logger.Logger) *Service {
	if ledger == nil {
		ledger = NewLedger()
	}
	return &Service{db: client, ledger: ledger, outbox: outboxSvc, logg: logg}
}

// Restock adds qty units to a product's stock.
func (s *Service) Restock(ctx context.Context, productID uuid.UUID, qty int, actor types.Actor) (*RestockResult, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	var result RestockResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.ledger.Release(ctx, tx, productID, qty); err != nil {
			return err
		}
		var product models.Product
		if err := tx.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload product")
		}
		result = RestockResult{ProductID: product.ID, CountInStock: product.CountInStock}

		if s.outbox == nil {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductRestocked,
			AggregateType: enums.AggregateProduct,
			AggregateID:   product.ID,
			Actor:         outbox.UserActor(actor.UserID, actor.Role.String()),
			Data: productRestockedEvent{
				ProductID:    product.ID,
				Quantity:     qty,
				CountInStock: product.CountInStock,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id":     productID.String(),
			"quantity":       qty,
			"count_in_stock": result.CountInStock,
		})
		s.logg.Info(logCtx, "product restocked")
	}
	return &result, nil
}
