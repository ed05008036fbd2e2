package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tramar/pcbuilder-backend/pkg/db/models"
	"github.com/tramar/pcbuilder-backend/pkg/enums"
	pkgerrors "github.com/tramar/pcbuilder-backend/pkg/errors"
	"github.com/tramar/pcbuilder-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository binds a Repository to the provided GORM connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order and its line snapshots.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.withItems(ctx).First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error) {
	var order models.Order
	err := r.withItems(ctx).First(&order, "payment_intent_id = ?", intentID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return r.list(ctx, params, func(q *gorm.DB) *gorm.DB {
		return q.Where("user_id = ?", userID)
	})
}

func (r *repository) ListAll(ctx context.Context, params pagination.Params) ([]models.Order, string, error) {
	return r.list(ctx, params, nil)
}

// list pages newest first on (created_at, id).
func (r *repository) list(ctx context.Context, params pagination.Params, scope func(*gorm.DB) *gorm.DB) ([]models.Order, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	q := r.withItems(ctx).Model(&models.Order{})
	if scope != nil {
		q = scope(q)
	}
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	err = q.Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, "", err
	}

	page, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, next, nil
}

// FindExpirable returns open, unpaid online-payment orders placed before cutoff.
func (r *repository) FindExpirable(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.withItems(ctx).
		Where("is_paid = ? AND canceled_at IS NULL AND created_at < ?", false, cutoff).
		Where("payment_method IN ?", []enums.PaymentMethod{enums.PaymentMethodStripe, enums.PaymentMethodPayPal}).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) MarkPaidIfUnpaid(ctx context.Context, id uuid.UUID, paidAt time.Time, result models.PaymentResult) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND is_paid = ?", id, false).
		Updates(models.Order{IsPaid: true, PaidAt: &paidAt, PaymentResult: &result})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) MarkDeliveredIfUndelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND is_paid = ? AND is_delivered = ? AND canceled_at IS NULL", id, true, false).
		Updates(models.Order{IsDelivered: true, DeliveredAt: &deliveredAt})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) AttachPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_intent_id IS NULL AND is_paid = ?", id, false).
		Updates(models.Order{PaymentIntentID: &intentID})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) CancelIfOpen(ctx context.Context, id uuid.UUID, reason enums.CancelReason, canceledAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND is_paid = ? AND canceled_at IS NULL", id, false).
		Updates(models.Order{CanceledAt: &canceledAt, CancelReason: &reason})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// IsNotFound reports whether err is a missing-row error from this repository.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
