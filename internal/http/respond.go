package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vhpx/pleasebuyus-sub000/internal/catalog"
	"github.com/vhpx/pleasebuyus-sub000/internal/checkout"
	"github.com/vhpx/pleasebuyus-sub000/internal/domain"
	"github.com/vhpx/pleasebuyus-sub000/internal/ledger"
	"github.com/vhpx/pleasebuyus-sub000/internal/wishlist"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// decodeJSON decodes and validates a request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "request validation failed",
			Code:    "validation_failed",
			Details: err.Error(),
		})
		return false
	}
	return true
}

// handleError converts domain errors to HTTP status codes
func handleError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var httpStatus int
	var code string

	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity):
		httpStatus, code = http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, domain.ErrInvalidProduct):
		httpStatus, code = http.StatusBadRequest, "invalid_product"
	case errors.Is(err, ledger.ErrInvalidSession), errors.Is(err, wishlist.ErrInvalidSession):
		httpStatus, code = http.StatusBadRequest, "invalid_session"
	case errors.Is(err, ledger.ErrProductNotInCart):
		httpStatus, code = http.StatusNotFound, "not_in_cart"
	case errors.Is(err, catalog.ErrProductNotFound):
		httpStatus, code = http.StatusNotFound, "product_not_found"
	case errors.Is(err, wishlist.ErrNotInWishlist):
		httpStatus, code = http.StatusNotFound, "not_in_wishlist"
	case errors.Is(err, ledger.ErrAlreadyInCart):
		httpStatus, code = http.StatusConflict, "already_in_cart"
	case errors.Is(err, checkout.ErrEmptyCart):
		httpStatus, code = http.StatusConflict, "empty_cart"
	case errors.Is(err, checkout.ErrDuplicateBill):
		httpStatus, code = http.StatusConflict, "already_exists"
	case errors.Is(err, checkout.ErrUnauthenticated):
		httpStatus, code = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, checkout.ErrBillingUnavailable), errors.Is(err, ledger.ErrStoreUnavailable),
		errors.Is(err, wishlist.ErrStoreUnavailable):
		httpStatus, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code = http.StatusGatewayTimeout, "timeout"
	default:
		logger.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, httpStatus, code, err.Error())
}
