package payment

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

const paymentMethodCard = "card"

type StripeIntents struct {
	client *paymentintent.Client
}

// NewStripeIntents uses the default Stripe API backend when backend is nil.
func NewStripeIntents(secretKey string, backend stripe.Backend) (port.PaymentIntents, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("secretKey is empty")
	}

	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}

	return &StripeIntents{
		client: &paymentintent.Client{B: backend, Key: secretKey},
	}, nil
}

// NewStripeBackend sends API calls to url instead of api.stripe.com, without retries.
func NewStripeBackend(url string, httpClient *http.Client) stripe.Backend {
	return stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(url),
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	})
}

// CreateOrUpdate creates a card intent when intentID is empty, otherwise it resizes the existing one.
func (s *StripeIntents) CreateOrUpdate(ctx context.Context, intentID string, amount domain.Money) (port.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount.MinorUnits()),
		Currency: stripe.String(strings.ToLower(amount.Currency.String())),
	}
	params.Context = ctx

	var (
		intent *stripe.PaymentIntent
		err    error
	)

	if intentID == "" {
		params.PaymentMethodTypes = stripe.StringSlice([]string{paymentMethodCard})

		intent, err = s.client.New(params)
		if err != nil {
			return port.PaymentIntent{}, fmt.Errorf("client.New: %w", err)
		}
	} else {
		intent, err = s.client.Update(intentID, params)
		if err != nil {
			return port.PaymentIntent{}, fmt.Errorf("client.Update[%s]: %w", intentID, err)
		}
	}

	return port.PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}
