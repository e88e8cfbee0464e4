package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oakfield/shopfront-backend/api/controllers"
	"github.com/oakfield/shopfront-backend/api/middleware"
	cartsvc "github.com/oakfield/shopfront-backend/internal/cart"
	checkoutsvc "github.com/oakfield/shopfront-backend/internal/checkout"
	productsvc "github.com/oakfield/shopfront-backend/internal/products"
	"github.com/oakfield/shopfront-backend/pkg/config"
	"github.com/oakfield/shopfront-backend/pkg/db"
	"github.com/oakfield/shopfront-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cacheP db.Pinger,
	cartService cartsvc.Service,
	checkoutService checkoutsvc.Service,
	productService productsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cacheP))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/carts/{cartID}", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(cartService, logg))
			r.Post("/items", controllers.CartAddItem(cartService, logg))
			r.Put("/items/{skuID}", controllers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{skuID}", controllers.CartRemoveItem(cartService, logg))
		})

		r.Post("/checkout/settle", controllers.CheckoutSettle(checkoutService, logg))
		r.Get("/orders/{orderID}", controllers.OrderFetch(checkoutService, logg))

		r.Post("/admin/products", controllers.ProductCreate(productService, logg))
	})

	return r
}
