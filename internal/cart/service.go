package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tramar/pcbuilder-backend/internal/inventory"
	"github.com/tramar/pcbuilder-backend/internal/products"
	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
)

// Service exposes the per-user cart.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (CartDTO, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (CartDTO, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, qty int) (CartDTO, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) (CartDTO, error)
	ClearTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type service struct {
	repo CartRepository
	tx   txRunner
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (CartDTO, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return CartDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return ToDTO(userID, cart), nil
}

// AddItem merges qty into an existing line for the product or creates one,
// snapshotting the current catalog price either way.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (CartDTO, error) {
	if qty < 1 {
		return CartDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "qty must be at least 1")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := loadProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		cart, err := repo.GetOrCreate(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		existing, err := repo.FindItemByProduct(ctx, cart.ID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
		}

		total := qty
		if existing != nil {
			total += existing.Quantity
		}
		if total > product.CountInStock {
			return inventory.InsufficientStock(*product, total)
		}

		if existing == nil {
			return repo.CreateItem(ctx, &models.CartItem{
				CartID:    cart.ID,
				ProductID: product.ID,
				Name:      product.Name,
				Image:     product.Image,
				Price:     product.Price,
				Quantity:  total,
			})
		}
		existing.Quantity = total
		existing.Price = product.Price
		existing.Name = product.Name
		existing.Image = product.Image
		return repo.UpdateItem(ctx, existing)
	})
	if err != nil {
		return CartDTO{}, err
	}
	return s.Get(ctx, userID)
}

// UpdateItem sets a line's quantity after a stock check.
func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, qty int) (CartDTO, error) {
	if qty < 1 {
		return CartDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "qty must be at least 1")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, userID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
		}
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		product, err := loadProduct(ctx, tx, item.ProductID)
		if err != nil {
			return err
		}
		if qty > product.CountInStock {
			return inventory.InsufficientStock(*product, qty)
		}
		item.Quantity = qty
		return repo.UpdateItem(ctx, item)
	})
	if err != nil {
		return CartDTO{}, err
	}
	return s.Get(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (CartDTO, error) {
	item, err := s.repo.FindItem(ctx, userID, itemID)
	if err != nil {
		return CartDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
	}
	if item == nil {
		return CartDTO{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return CartDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	return s.Get(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (CartDTO, error) {
	if err := s.repo.DeleteItemsByUser(ctx, userID); err != nil {
		return CartDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return s.Get(ctx, userID)
}

// ClearTx empties the cart inside the caller's transaction; order placement
// uses it so the cart only clears when the order commits.
func (s *service) ClearTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	if err := s.repo.WithTx(tx).DeleteItemsByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

func loadProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	return products.NewRepository(tx).FindByID(ctx, productID)
}
