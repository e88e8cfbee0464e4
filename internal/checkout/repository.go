package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakfield/shopfront-backend/pkg/db/models"
)

// Repository persists settled orders and answers the idempotency lookups the
// settlement engine relies on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByPaymentReference(ctx context.Context, ref string) (*models.Order, error)
	FindByCartID(ctx context.Context, cartID uuid.UUID) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByPaymentReference(ctx context.Context, ref string) (*models.Order, error) {
	return r.findOne(ctx, "payment_reference = ?", ref)
}

func (r *repository) FindByCartID(ctx context.Context, cartID uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, "cart_id = ?", cartID)
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) findOne(ctx context.Context, query string, arg any) (*models.Order, error) {
	var row models.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&row, query, arg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
