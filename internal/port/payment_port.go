package port

import (
	"context"
	"errors"

	"github.com/nikolayk812/storefront/internal/domain"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidEventData = errors.New("invalid webhook event data")
)

const PaymentStatusSucceeded = "succeeded"

// PaymentEvent is the subset of a verified payment-provider notification the core consumes.
type PaymentEvent struct {
	ID       string
	Type     string
	IntentID string
	Status   string
	Amount   int64
	Currency string
}

func (e PaymentEvent) Succeeded() bool {
	return e.Status == PaymentStatusSucceeded
}

// PaymentVerifier checks the signature of a raw webhook payload with the shared secret it holds.
type PaymentVerifier interface {
	Verify(payload []byte, signatureHeader string) (PaymentEvent, error)
}

// PaymentIntent is the provider-side payment a cart is checked out against.
type PaymentIntent struct {
	ID           string
	ClientSecret string
}

// PaymentIntents creates an intent for amount, or changes the amount of intentID when it is set.
type PaymentIntents interface {
	CreateOrUpdate(ctx context.Context, intentID string, amount domain.Money) (PaymentIntent, error)
}
