package models

import (
	"time"

	"github.com/google/uuid"
)

// Reservation binds reserved units of one SKU to one cart. At most one row
// exists per (cart, SKU) pair; quantity adjustments update it in place.
type Reservation struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID    uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_reservations_cart_sku"`
	SKUID     uuid.UUID `gorm:"column:sku_id;type:uuid;not null;uniqueIndex:ux_reservations_cart_sku"`
	Qty       int       `gorm:"column:qty;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
