package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nikolayk812/storefront/internal/port"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const objectPaymentIntent = "payment_intent"

var signatureErrors = []error{
	webhook.ErrNotSigned,
	webhook.ErrInvalidHeader,
	webhook.ErrNoValidSignature,
	webhook.ErrTooOld,
}

type StripeVerifier struct {
	secret string
}

func NewStripeVerifier(secret string) (port.PaymentVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("secret is empty")
	}

	return &StripeVerifier{
		secret: secret,
	}, nil
}

// Verify checks the Stripe-Signature header against the shared secret before decoding the payment intent.
func (v *StripeVerifier) Verify(payload []byte, signatureHeader string) (port.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		for _, sigErr := range signatureErrors {
			if errors.Is(err, sigErr) {
				return port.PaymentEvent{}, fmt.Errorf("%w: %w", port.ErrInvalidSignature, err)
			}
		}

		return port.PaymentEvent{}, fmt.Errorf("%w: webhook.ConstructEventWithOptions: %w", port.ErrInvalidEventData, err)
	}

	if event.Data == nil || event.Data.Object["object"] != objectPaymentIntent {
		return port.PaymentEvent{}, fmt.Errorf("%w: event[%s] does not carry a payment intent", port.ErrInvalidEventData, event.ID)
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return port.PaymentEvent{}, fmt.Errorf("%w: json.Unmarshal: %w", port.ErrInvalidEventData, err)
	}

	if intent.ID == "" {
		return port.PaymentEvent{}, fmt.Errorf("%w: event[%s] payment intent id is empty", port.ErrInvalidEventData, event.ID)
	}

	return port.PaymentEvent{
		ID:       event.ID,
		Type:     string(event.Type),
		IntentID: intent.ID,
		Status:   string(intent.Status),
		Amount:   intent.Amount,
		Currency: strings.ToUpper(string(intent.Currency)),
	}, nil
}
