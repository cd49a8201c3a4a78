package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BillStatus string

const (
	BillStatusPending   BillStatus = "PENDING"
	BillStatusCompleted BillStatus = "COMPLETED"
	BillStatusFailed    BillStatus = "FAILED"
)

func (s BillStatus) IsTerminal() bool {
	return s == BillStatusCompleted || s == BillStatusFailed
}

func (s BillStatus) String() string {
	return string(s)
}

type BillLine struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	OutletID    string          `json:"outlet_id,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Bill represents the full cart state at checkout time
type Bill struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	SessionID string          `json:"session_id"`
	Lines     []BillLine      `json:"lines"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
	Status    BillStatus      `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}
