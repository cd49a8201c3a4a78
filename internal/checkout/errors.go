package checkout

import "errors"

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrUnauthenticated    = errors.New("checkout requires an authenticated user")
	ErrBillingUnavailable = errors.New("billing is temporarily unavailable")
	ErrDuplicateBill      = errors.New("bill already exists")
	ErrBillNotFound       = errors.New("bill not found")
)
