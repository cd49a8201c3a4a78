package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var ErrInvalidProduct = errors.New("invalid product")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Product is the catalog snapshot handed to the cart when a shopper adds it.
type Product struct {
	ID          string          `json:"id" validate:"required,max=64"`
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	AvatarURL   string          `json:"avatar_url,omitempty" validate:"omitempty,max=2048"`
	OutletID    string          `json:"outlet_id,omitempty" validate:"omitempty,max=64"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
}

// Validate checks the product before it may become a cart line.
// Surrounding whitespace in ID and Name is trimmed in place.
func (p *Product) Validate() error {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)

	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	return nil
}
