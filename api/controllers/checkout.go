package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/oakfield/shopfront-backend/api/responses"
	"github.com/oakfield/shopfront-backend/api/validators"
	checkoutsvc "github.com/oakfield/shopfront-backend/internal/checkout"
	"github.com/oakfield/shopfront-backend/pkg/db/models"
	"github.com/oakfield/shopfront-backend/pkg/logger"
)

// SettleRequest converts a paid cart into an order. Payment providers retry
// webhooks, so the same payment_reference may arrive more than once.
type SettleRequest struct {
	CartID           uuid.UUID `json:"cart_id" validate:"required"`
	PaymentReference string    `json:"payment_reference" validate:"required"`
}

type OrderLineResponse struct {
	SKUID          uuid.UUID `json:"sku_id"`
	Name           string    `json:"name"`
	Qty            int       `json:"qty"`
	UnitPriceCents int       `json:"unit_price_cents"`
	TotalCents     int       `json:"total_cents"`
}

type OrderResponse struct {
	OrderID          uuid.UUID           `json:"order_id"`
	CartID           uuid.UUID           `json:"cart_id"`
	PaymentReference string              `json:"payment_reference"`
	Status           string              `json:"status"`
	TotalCents       int                 `json:"total_cents"`
	Items            []OrderLineResponse `json:"items"`
	CreatedAt        time.Time           `json:"created_at"`
}

func CheckoutSettle(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload SettleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Settle(r.Context(), payload.CartID, payload.PaymentReference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

func OrderFetch(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

func newOrderResponse(order *models.Order) OrderResponse {
	items := make([]OrderLineResponse, 0, len(order.Items))
	for _, line := range order.Items {
		items = append(items, OrderLineResponse{
			SKUID:          line.SKUID,
			Name:           line.Name,
			Qty:            line.Qty,
			UnitPriceCents: line.UnitPriceCents,
			TotalCents:     line.TotalCents,
		})
	}
	return OrderResponse{
		OrderID:          order.ID,
		CartID:           order.CartID,
		PaymentReference: order.PaymentReference,
		Status:           string(order.Status),
		TotalCents:       order.TotalCents,
		Items:            items,
		CreatedAt:        order.CreatedAt,
	}
}
