package reservations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakfield/shopfront-backend/pkg/db/models"
)

// Repository manages the per-cart reservation rows that mirror reserved
// stock in the ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, cartID, skuID uuid.UUID) (*models.Reservation, error)
	Add(ctx context.Context, cartID, skuID uuid.UUID, qty int) error
	SetQty(ctx context.Context, cartID, skuID uuid.UUID, qty int) error
	Remove(ctx context.Context, cartID, skuID uuid.UUID) error
	ListByCart(ctx context.Context, cartID uuid.UUID) ([]models.Reservation, error)
	DeleteByCart(ctx context.Context, cartID uuid.UUID) error
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

// Get returns nil when no reservation exists for the cart/SKU pair.
func (r *repository) Get(ctx context.Context, cartID, skuID uuid.UUID) (*models.Reservation, error) {
	var row models.Reservation
	err := r.db.WithContext(ctx).
		First(&row, "cart_id = ? AND sku_id = ?", cartID, skuID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Add increments an existing reservation or creates one. The unique index on
// (cart_id, sku_id) keeps concurrent adds from producing duplicate rows.
func (r *repository) Add(ctx context.Context, cartID, skuID uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("cart_id = ? AND sku_id = ?", cartID, skuID).
		Updates(map[string]any{
			"qty":        gorm.Expr("qty + ?", qty),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	row := models.Reservation{ID: uuid.New(), CartID: cartID, SKUID: skuID, Qty: qty}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *repository) SetQty(ctx context.Context, cartID, skuID uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("cart_id = ? AND sku_id = ?", cartID, skuID).
		Updates(map[string]any{
			"qty":        qty,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Remove(ctx context.Context, cartID, skuID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("cart_id = ? AND sku_id = ?", cartID, skuID).
		Delete(&models.Reservation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListByCart(ctx context.Context, cartID uuid.UUID) ([]models.Reservation, error) {
	var rows []models.Reservation
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) DeleteByCart(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.Reservation{}).Error
}
