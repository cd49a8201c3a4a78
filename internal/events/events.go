package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultTopic = "cart-checkout"

	TypeCheckoutCompleted = "checkout.completed"
)

// CheckoutCompleted is emitted once a bill has been stored and the shopper's
// cart is about to be cleared.
type CheckoutCompleted struct {
	BillID      string          `json:"bill_id"`
	SessionID   string          `json:"session_id"`
	UserID      string          `json:"user_id"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	ItemCount   int             `json:"item_count"`
	CompletedAt time.Time       `json:"completed_at"`
	// Origin is the instance id of the publisher, so it can skip its own events.
	Origin string `json:"origin,omitempty"`
}
