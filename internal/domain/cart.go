package domain

import (
	"github.com/shopspring/decimal"
)

// CartLine is one product entry in a shopper's cart.
// Quantity is always >= 1; a removed product has no line at all.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	AvatarURL string          `json:"avatar_url,omitempty"`
	OutletID  string          `json:"outlet_id,omitempty"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns Quantity * UnitPrice.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// NewCartLine snapshots the product at the moment it enters the cart.
func NewCartLine(p Product, quantity int) CartLine {
	return CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		AvatarURL: p.AvatarURL,
		OutletID:  p.OutletID,
		Quantity:  quantity,
	}
}
