package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
)

// Line is a quantity of one product to reserve or release.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// Ledger moves count_in_stock with single conditional statements. Every
// method runs inside the caller's transaction.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Reserve decrements stock only when enough is available. Concurrent callers
// on the same row are serialized by the database; the loser sees zero rows
// affected and gets INSUFFICIENT_STOCK.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required for inventory reserve")
	}
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"productId": productID, "quantity": qty})
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET count_in_stock = count_in_stock - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND count_in_stock >= ?
	`, qty, productID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reserve inventory")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var product models.Product
	if err := tx.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProductNotFound(productID)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product after failed reserve")
	}
	return InsufficientStock(product, qty)
}

// ReserveAll reserves every line in ascending product id order so that two
// multi-item placements never wait on each other's rows in opposite order.
// The first failure is returned and the caller must roll back.
func (l *Ledger) ReserveAll(ctx context.Context, tx *gorm.DB, lines []Line) error {
	for _, line := range sortedLines(lines) {
		if err := l.Reserve(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Release returns stock unconditionally, for cancellation and restocks.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required for inventory release")
	}
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"productId": productID, "quantity": qty})
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET count_in_stock = count_in_stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "release inventory")
	}
	if res.RowsAffected == 0 {
		return ProductNotFound(productID)
	}
	return nil
}

// ReleaseAll releases every line. A product deleted from the catalog since
// placement is skipped; other failures are combined and returned.
func (l *Ledger) ReleaseAll(ctx context.Context, tx *gorm.DB, lines []Line) error {
	var errs error
	for _, line := range sortedLines(lines) {
		err := l.Release(ctx, tx, line.ProductID, line.Quantity)
		if err == nil || pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			continue
		}
		errs = multierr.Append(errs, err)
	}
	return errs
}

// ProductNotFound is the error returned for an unknown product id.
func ProductNotFound(productID uuid.UUID) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product not found: %s", productID)).
		WithDetails(map[string]any{"productId": productID})
}

// InsufficientStock builds the actionable stock error shown to buyers.
func InsufficientStock(product models.Product, requested int) *pkgerrors.Error {
	return pkgerrors.New(
		pkgerrors.CodeInsufficientStock,
		fmt.Sprintf("only %d available for %s", product.CountInStock, product.Name),
	).WithDetails(map[string]any{
		"productId": product.ID,
		"name":      product.Name,
		"available": product.CountInStock,
		"requested": requested,
	})
}

func sortedLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	sort.SliceStable(out, func(i, j int) bool {
		return bytes.Compare(out[i].ProductID[:], out[j].ProductID[:]) < 0
	})
	return out
}
