package http

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vhpx/pleasebuyus-sub000/internal/checkout"
	"github.com/vhpx/pleasebuyus-sub000/internal/domain"
)

type CheckoutHandler struct {
	checkout *checkout.Service
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCheckoutHandler(svc *checkout.Service, timeout time.Duration, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		timeout:  timeout,
		logger:   logger,
	}
}

type CheckoutResponseDTO struct {
	BillID    string            `json:"bill_id"`
	Status    string            `json:"status"`
	Lines     []domain.BillLine `json:"lines"`
	Total     decimal.Decimal   `json:"total"`
	Currency  string            `json:"currency"`
	CreatedAt time.Time         `json:"created_at"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserID(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	res, err := h.checkout.Checkout(ctx, checkout.Request{
		SessionID: getSessionID(r.Context()),
		UserID:    userID,
	})
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{
		BillID:    res.Bill.ID,
		Status:    res.Bill.Status.String(),
		Lines:     res.Bill.Lines,
		Total:     res.Bill.Total,
		Currency:  res.Bill.Currency,
		CreatedAt: res.Bill.CreatedAt,
	})
}
