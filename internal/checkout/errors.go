package checkout

import (
	"errors"
	"fmt"
)

// Precondition failures. They are detected before any network call.
var (
	ErrNoAddressSelected     = errors.New("no address selected")
	ErrEmptyCart             = errors.New("cart is empty, nothing to checkout")
	ErrInvalidShippingMethod = errors.New("invalid shipping method id")
)

var (
	ErrUnknownPaymentMethod  = errors.New("unknown payment method")
	ErrUnknownShippingMethod = errors.New("unknown shipping method")
	ErrCheckoutInProgress    = errors.New("a checkout is already in progress for this session")
)

type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition of checkout status: %s -> %s", e.From, e.To)
}

// IsPrecondition reports whether err was raised before anything was sent to the backend.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrNoAddressSelected) ||
		errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrInvalidShippingMethod)
}
