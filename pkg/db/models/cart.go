package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/oakfield/shopfront-backend/pkg/enums"
)

// Cart is an ephemeral shopping session. The row is created on the first
// reservation and removed by whichever of settlement or reclamation commits
// first; ExpiresAt slides forward on every mutation.
type Cart struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OwnerRef     *string          `gorm:"column:owner_ref"`
	Status       enums.CartStatus `gorm:"column:status;not null;default:'active'"`
	ExpiresAt    time.Time        `gorm:"column:expires_at;not null"`
	Reservations []Reservation    `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
