package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/oakfield/shopfront-backend/pkg/enums"
)

// Order is the immutable record produced exactly once per paid cart. The
// unique payment_reference index is what makes duplicate settlement callbacks
// collapse onto a single row.
type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CartID           uuid.UUID         `gorm:"column:cart_id;type:uuid;not null;index"`
	PaymentReference string            `gorm:"column:payment_reference;not null;uniqueIndex:ux_orders_payment_reference"`
	Status           enums.OrderStatus `gorm:"column:status;not null;default:'paid'"`
	TotalCents       int               `gorm:"column:total_cents;not null;default:0"`
	Items            []OrderLineItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
