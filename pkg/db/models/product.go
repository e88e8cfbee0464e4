package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog row behind a SKU. Catalog management lives outside
// this service; settlement only reads the title and current price when it
// snapshots line items.
type Product struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SKU            string    `gorm:"column:sku;not null;uniqueIndex"`
	Title          string    `gorm:"column:title;not null"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
