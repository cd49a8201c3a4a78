package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vhpx/pleasebuyus-sub000/internal/catalog"
	"github.com/vhpx/pleasebuyus-sub000/internal/domain"
	"github.com/vhpx/pleasebuyus-sub000/internal/ledger"
	"github.com/vhpx/pleasebuyus-sub000/internal/wishlist"
)

type WishlistHandler struct {
	wishlists *wishlist.Service
	carts     *ledger.Registry
	catalog   catalog.Catalog
	timeout   time.Duration
	logger    *zap.Logger
}

func NewWishlistHandler(wishlists *wishlist.Service, carts *ledger.Registry, cat catalog.Catalog, timeout time.Duration, logger *zap.Logger) *WishlistHandler {
	return &WishlistHandler{
		wishlists: wishlists,
		carts:     carts,
		catalog:   cat,
		timeout:   timeout,
		logger:    logger,
	}
}

type AddWishlistRequestDTO struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
}

type WishlistResponseDTO struct {
	SessionID string           `json:"session_id"`
	Items     []domain.Product `json:"items"`
}

// GET /api/v1/wishlist
func (h *WishlistHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.respondWishlist(ctx, w, r, http.StatusOK)
}

// POST /api/v1/wishlist
func (h *WishlistHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddWishlistRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.catalog.GetProduct(ctx, strings.TrimSpace(req.ProductID))
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	if err := h.wishlists.Add(ctx, getSessionID(r.Context()), product); err != nil {
		handleError(w, h.logger, err)
		return
	}

	h.respondWishlist(ctx, w, r, http.StatusCreated)
}

// DELETE /api/v1/wishlist/{product_id}
func (h *WishlistHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.wishlists.Remove(ctx, getSessionID(r.Context()), chi.URLParam(r, "product_id")); err != nil {
		handleError(w, h.logger, err)
		return
	}

	h.respondWishlist(ctx, w, r, http.StatusOK)
}

// POST /api/v1/wishlist/{product_id}/move
func (h *WishlistHandler) MoveToCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	cart, err := h.carts.Get(ctx, sessionID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	if err := h.wishlists.MoveToCart(ctx, sessionID, chi.URLParam(r, "product_id"), cart); err != nil {
		handleError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponseDTO{
		SessionID: sessionID,
		Summary:   cart.Summary(),
	})
}

func (h *WishlistHandler) respondWishlist(ctx context.Context, w http.ResponseWriter, r *http.Request, status int) {
	sessionID := getSessionID(r.Context())
	items, err := h.wishlists.Items(ctx, sessionID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}
	respondJSON(w, status, WishlistResponseDTO{SessionID: sessionID, Items: items})
}
