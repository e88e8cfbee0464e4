package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderPaidLineItem mirrors the priced line captured at settlement.
type OrderPaidLineItem struct {
	SKUID          uuid.UUID `json:"sku_id"`
	Name           string    `json:"name"`
	Qty            int       `json:"qty"`
	UnitPriceCents int       `json:"unit_price_cents"`
	TotalCents     int       `json:"total_cents"`
}

// OrderPaidEvent is emitted when a paid cart settles into an order.
type OrderPaidEvent struct {
	OrderID          uuid.UUID           `json:"order_id"`
	CartID           uuid.UUID           `json:"cart_id"`
	PaymentReference string              `json:"payment_reference"`
	TotalCents       int                 `json:"total_cents"`
	Items            []OrderPaidLineItem `json:"items"`
	SettledAt        time.Time           `json:"settled_at"`
}

// CartReclaimedEvent reports an expired cart whose stock was returned.
type CartReclaimedEvent struct {
	CartID      uuid.UUID      `json:"cart_id"`
	ReleasedQty map[string]int `json:"released_qty"`
	ExpiredAt   time.Time      `json:"expired_at"`
	ReclaimedAt time.Time      `json:"reclaimed_at"`
}
