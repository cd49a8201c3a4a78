package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vhpx/pleasebuyus-sub000/internal/catalog"
	"github.com/vhpx/pleasebuyus-sub000/internal/ledger"
)

type CartHandler struct {
	carts   *ledger.Registry
	catalog catalog.Catalog
	timeout time.Duration
	logger  *zap.Logger
}

func NewCartHandler(carts *ledger.Registry, cat catalog.Catalog, timeout time.Duration, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: cat,
		timeout: timeout,
		logger:  logger,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	// 0 or omitted adds one unit; negative is rejected by the cart
	Quantity int   `json:"quantity" validate:"lte=99"`
	Merge    *bool `json:"merge,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	// <= 0 removes the line
	Quantity int `json:"quantity" validate:"lte=99"`
}

type CartResponseDTO struct {
	SessionID string `json:"session_id"`
	ledger.Summary
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	// reading an unknown session must not pin an empty cart in memory
	cart, err := h.carts.Peek(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	h.respondCart(w, r, http.StatusOK, cart)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, ok := h.cart(ctx, w, r)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(ctx, strings.TrimSpace(req.ProductID))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	merge := req.Merge == nil || *req.Merge
	if err := cart.AddProduct(ctx, product, req.Quantity, merge); err != nil {
		handleError(w, h.logger, err)
		return
	}

	h.respondCart(w, r, http.StatusCreated, cart)
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, ok := h.cart(ctx, w, r)
	if !ok {
		return
	}

	if err := cart.SetQuantity(ctx, productID, req.Quantity); err != nil {
		handleError(w, h.logger, err)
		return
	}

	h.respondCart(w, r, http.StatusOK, cart)
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, ok := h.cart(ctx, w, r)
	if !ok {
		return
	}

	cart.RemoveProduct(ctx, chi.URLParam(r, "product_id"))
	h.respondCart(w, r, http.StatusOK, cart)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, ok := h.cart(ctx, w, r)
	if !ok {
		return
	}

	cart.Clear(ctx)
	h.respondCart(w, r, http.StatusOK, cart)
}

func (h *CartHandler) cart(ctx context.Context, w http.ResponseWriter, r *http.Request) (*ledger.Ledger, bool) {
	cart, err := h.carts.Get(ctx, getSessionID(r.Context()))
	if err != nil {
		handleError(w, h.logger, err)
		return nil, false
	}
	return cart, true
}

func (h *CartHandler) respondCart(w http.ResponseWriter, r *http.Request, status int, cart *ledger.Ledger) {
	respondJSON(w, status, CartResponseDTO{
		SessionID: getSessionID(r.Context()),
		Summary:   cart.Summary(),
	})
}
