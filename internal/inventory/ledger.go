package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oakfield/shopfront-backend/pkg/db/models"
	pkgerrors "github.com/oakfield/shopfront-backend/pkg/errors"
)

// Reserve moves qty units from available to reserved for one SKU. The guard
// in the WHERE clause is the only oversell protection, so the update must run
// inside the caller's transaction.
func Reserve(ctx context.Context, tx *gorm.DB, skuID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reserve qty must be positive")
	}
	res := tx.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("sku_id = ? AND available_qty >= ?", skuID, qty).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty - ?", qty),
			"reserved_qty":  gorm.Expr("reserved_qty + ?", qty),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "reserving stock")
	}
	if res.RowsAffected == 0 {
		return reserveFailure(ctx, tx, skuID, qty)
	}
	return nil
}

func reserveFailure(ctx context.Context, tx *gorm.DB, skuID uuid.UUID, qty int) error {
	var item models.InventoryItem
	err := tx.WithContext(ctx).First(&item, "sku_id = ?", skuID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "sku not found").WithDetails(map[string]any{
			"sku_id": skuID.String(),
		})
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading inventory")
	default:
		return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").WithDetails(map[string]any{
			"sku_id":    skuID.String(),
			"requested": qty,
			"available": item.AvailableQty,
		})
	}
}

// Release returns qty reserved units to available. Callers release at most
// what they previously reserved, so a failed guard means the books are wrong.
func Release(ctx context.Context, tx *gorm.DB, skuID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "release qty must be positive")
	}
	res := tx.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("sku_id = ? AND reserved_qty >= ?", skuID, qty).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty + ?", qty),
			"reserved_qty":  gorm.Expr("reserved_qty - ?", qty),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "releasing stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInternal, "reserved balance underflow").WithDetails(map[string]any{
			"sku_id": skuID.String(),
			"qty":    qty,
		})
	}
	return nil
}

// Consume permanently removes qty units from the reserved balance when a
// reservation settles into an order.
func Consume(ctx context.Context, tx *gorm.DB, skuID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "consume qty must be positive")
	}
	res := tx.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("sku_id = ? AND reserved_qty >= ?", skuID, qty).
		Updates(map[string]any{
			"reserved_qty": gorm.Expr("reserved_qty - ?", qty),
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "consuming stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeInternal, "reserved balance underflow").WithDetails(map[string]any{
			"sku_id": skuID.String(),
			"qty":    qty,
		})
	}
	return nil
}
