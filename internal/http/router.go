package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vhpx/pleasebuyus-sub000/internal/catalog"
	"github.com/vhpx/pleasebuyus-sub000/internal/checkout"
	"github.com/vhpx/pleasebuyus-sub000/internal/ledger"
	"github.com/vhpx/pleasebuyus-sub000/internal/wishlist"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	MaxBodySize    int64
	SecureCookies  bool
}

type Services struct {
	Carts     *ledger.Registry
	Wishlists *wishlist.Service
	Catalog   catalog.Catalog
	Checkout  *checkout.Service
}

func NewRouter(cfg RouterConfig, svc Services, logger *zap.Logger) chi.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 1 << 20 // 1MB
	}

	cartHandler := NewCartHandler(svc.Carts, svc.Catalog, cfg.RequestTimeout, logger)
	wishlistHandler := NewWishlistHandler(svc.Wishlists, svc.Carts, svc.Catalog, cfg.RequestTimeout, logger)
	checkoutHandler := NewCheckoutHandler(svc.Checkout, cfg.RequestTimeout, logger)
	productHandler := NewProductHandler(svc.Catalog, cfg.RequestTimeout, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestSize(cfg.MaxBodySize))
	r.Use(middleware.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Get("/{product_id}", productHandler.GetProduct)
		})

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(cfg.SecureCookies))
			r.Use(UserMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", wishlistHandler.GetWishlist)
				r.Post("/", wishlistHandler.AddItem)
				r.Delete("/{product_id}", wishlistHandler.RemoveItem)
				r.Post("/{product_id}/move", wishlistHandler.MoveToCart)
			})

			r.Post("/checkout", checkoutHandler.Checkout)
		})
	})

	return r
}
