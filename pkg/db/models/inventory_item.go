package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem is the stock ledger row for one SKU. AvailableQty moves to
// ReservedQty while a cart holds the units; settlement drains ReservedQty and
// reclamation moves it back. AvailableQty never goes negative.
type InventoryItem struct {
	SKUID        uuid.UUID `gorm:"column:sku_id;type:uuid;primaryKey"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	ReservedQty  int       `gorm:"column:reserved_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
