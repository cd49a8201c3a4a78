package ledger

import "errors"

var (
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrProductNotInCart = errors.New("product not in cart")
	ErrAlreadyInCart    = errors.New("product already in cart")
	ErrInvalidSession   = errors.New("session id is required")
	ErrStoreUnavailable = errors.New("cart store is unavailable")

	// ErrPersistenceRead is never returned to callers. Unreadable stored
	// carts are logged with it and replaced by an empty cart.
	ErrPersistenceRead = errors.New("stored cart is unreadable")
)
