package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// PaymentIntentService prices a cart from the live catalog and keeps its provider payment intent in step.
type PaymentIntentService struct {
	store    port.Store
	carts    port.CartStore
	intents  port.PaymentIntents
	currency currency.Unit
	ttl      time.Duration
	logger   *slog.Logger
}

func NewPaymentIntentService(store port.Store, carts port.CartStore, intents port.PaymentIntents, unit currency.Unit, ttl time.Duration, logger *slog.Logger) (*PaymentIntentService, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}

	if carts == nil {
		return nil, fmt.Errorf("carts is nil")
	}

	if intents == nil {
		return nil, fmt.Errorf("intents is nil")
	}

	if ttl <= 0 {
		return nil, fmt.Errorf("ttl is not positive")
	}

	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	return &PaymentIntentService{
		store:    store,
		carts:    carts,
		intents:  intents,
		currency: unit,
		ttl:      ttl,
		logger:   logger,
	}, nil
}

// CreateOrUpdatePaymentIntent refreshes cart prices, charges items plus the selected delivery method,
// and stores the resulting intent id and client secret on the cart.
func (s *PaymentIntentService) CreateOrUpdatePaymentIntent(ctx context.Context, cartID string) (domain.Cart, error) {
	cart, err := s.carts.GetCart(ctx, cartID)
	if errors.Is(err, port.ErrNotFound) {
		return domain.Cart{}, ErrCartNotFound
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("carts.GetCart: %w", err)
	}

	if len(cart.Items) == 0 {
		return domain.Cart{}, ErrEmptyCart
	}

	uow := s.store.Begin()

	shipping := decimal.Zero
	if cart.DeliveryMethodID != nil {
		method, err := uow.DeliveryMethods().GetByID(ctx, *cart.DeliveryMethodID)
		if errors.Is(err, port.ErrNotFound) {
			return domain.Cart{}, ErrDeliveryMethodNotFound
		}
		if err != nil {
			return domain.Cart{}, fmt.Errorf("deliveryMethods.GetByID: %w", err)
		}

		shipping = method.Price
	}

	amount := shipping
	for i, line := range cart.Items {
		product, err := uow.Products().GetByID(ctx, line.ProductID)
		if errors.Is(err, port.ErrNotFound) {
			return domain.Cart{}, fmt.Errorf("%w: product with ID %d not found", ErrProductNotFound, line.ProductID)
		}
		if err != nil {
			return domain.Cart{}, fmt.Errorf("products.GetByID: %w", err)
		}

		if !line.Price.Equal(product.Price) {
			cart.Items[i].Price = product.Price
		}

		amount = amount.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	intent, err := s.intents.CreateOrUpdate(ctx, cart.PaymentIntentID, domain.Money{Amount: amount, Currency: s.currency})
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%w: %w", ErrPaymentIntentFailed, err)
	}

	created := cart.PaymentIntentID == ""
	cart.PaymentIntentID = intent.ID
	if intent.ClientSecret != "" {
		cart.ClientSecret = intent.ClientSecret
	}

	saved, err := s.carts.SetCart(ctx, cart, s.ttl)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("carts.SetCart: %w", err)
	}

	s.logger.InfoContext(ctx, "payment intent saved",
		"cart_id", cart.ID, "payment_intent_id", intent.ID, "created", created, "amount", amount.StringFixed(2))

	return saved, nil
}
