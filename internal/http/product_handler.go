package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vhpx/pleasebuyus-sub000/internal/catalog"
	"github.com/vhpx/pleasebuyus-sub000/internal/domain"
)

type ProductHandler struct {
	catalog catalog.Catalog
	timeout time.Duration
	logger  *zap.Logger
}

func NewProductHandler(cat catalog.Catalog, timeout time.Duration, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: cat,
		timeout: timeout,
		logger:  logger,
	}
}

type ProductsResponseDTO struct {
	Products []domain.Product `json:"products"`
}

// GET /api/v1/products?outlet_id=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var (
		products []domain.Product
		err      error
	)
	if outletID := r.URL.Query().Get("outlet_id"); outletID != "" {
		products, err = h.catalog.ListByOutlet(ctx, outletID)
	} else {
		products, err = h.catalog.ListProducts(ctx)
	}
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, ProductsResponseDTO{Products: products})
}

// GET /api/v1/products/{product_id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "product_id"))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}
