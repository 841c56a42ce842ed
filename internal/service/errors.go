package service

import (
	"errors"
	"fmt"

	"github.com/nikolayk812/storefront/internal/port"
)

// maxConflictAttempts bounds how often a write that lost a race on the order row is re-read and retried.
const maxConflictAttempts = 3

// Validation errors are reported to the caller as a rejected request.
var (
	ErrInvalidCheckoutState   = errors.New("invalid checkout state")
	ErrCartNotFound           = fmt.Errorf("%w: cart not found", ErrInvalidCheckoutState)
	ErrNoPaymentIntent        = fmt.Errorf("%w: no payment intent for this order", ErrInvalidCheckoutState)
	ErrEmptyCart              = fmt.Errorf("%w: cart is empty", ErrInvalidCheckoutState)
	ErrProductNotFound        = errors.New("product not found")
	ErrDeliveryMethodNotFound = errors.New("no delivery method selected")
)

var (
	ErrOrderPersistenceFailed = errors.New("problem creating order")
	ErrInvalidCart            = errors.New("invalid cart")
	ErrPaymentIntentFailed    = errors.New("problem with payment intent")
)

// Consistency errors fail the reconciliation attempt so the provider redelivers the event.
var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrStockRestorationFailed = errors.New("problem updating order stock")
	ErrOrderContended         = errors.New("order kept changing concurrently")
)

// Security and malformed webhook errors are rejected before any lookup.
var (
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
	ErrInvalidEventData        = errors.New("invalid event data")
)

type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product %s. Available stock: %d", e.ProductName, e.Available)
}

// IsValidation reports whether err rejects a checkout because of its input rather than a failure to save it.
func IsValidation(err error) bool {
	var stockErr *InsufficientStockError

	return errors.Is(err, ErrInvalidCheckoutState) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrDeliveryMethodNotFound) ||
		errors.As(err, &stockErr)
}

func isOrderConflict(err error) bool {
	var conflictErr *port.ConflictError

	return errors.As(err, &conflictErr) && conflictErr.Entity == port.EntityOrder
}
