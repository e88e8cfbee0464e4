package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/oakfield/shopfront-backend/api/responses"
	"github.com/oakfield/shopfront-backend/api/validators"
	productsvc "github.com/oakfield/shopfront-backend/internal/products"
	"github.com/oakfield/shopfront-backend/pkg/logger"
)

// CreateProductRequest registers a catalog entry with its opening stock.
type CreateProductRequest struct {
	SKU            string `json:"sku" validate:"required"`
	Title          string `json:"title" validate:"required"`
	UnitPriceCents int    `json:"unit_price_cents" validate:"gte=0"`
	InitialStock   int    `json:"initial_stock" validate:"gte=0"`
}

type ProductResponse struct {
	ID             uuid.UUID `json:"id"`
	SKU            string    `json:"sku"`
	Title          string    `json:"title"`
	UnitPriceCents int       `json:"unit_price_cents"`
	CreatedAt      time.Time `json:"created_at"`
}

func ProductCreate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload CreateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), productsvc.CreateProductInput{
			SKU:            payload.SKU,
			Title:          payload.Title,
			UnitPriceCents: payload.UnitPriceCents,
			InitialStock:   payload.InitialStock,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ProductResponse{
			ID:             product.ID,
			SKU:            product.SKU,
			Title:          product.Title,
			UnitPriceCents: product.UnitPriceCents,
			CreatedAt:      product.CreatedAt,
		})
	}
}
