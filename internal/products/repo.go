package products

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
)

// Repository reads catalog rows. Stock is never written here; see the
// inventory ledger.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads one product or returns NOT_FOUND.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"productId": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return &product, nil
}

// FindByIDs loads the requested products keyed by id. Missing ids are simply
// absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

// Create inserts a catalog row. Catalog management lives elsewhere; this is
// used by seeding tools and tests.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	if product.CountInStock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "countInStock must be non-negative")
	}
	return r.db.WithContext(ctx).Create(product).Error
}
