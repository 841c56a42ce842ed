package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
)

// CartService keeps client-owned cart snapshots in the cart store; checkout only ever reads them.
type CartService struct {
	carts  port.CartStore
	ttl    time.Duration
	logger *slog.Logger
}

func NewCartService(carts port.CartStore, ttl time.Duration, logger *slog.Logger) (*CartService, error) {
	if carts == nil {
		return nil, fmt.Errorf("carts is nil")
	}

	if ttl <= 0 {
		return nil, fmt.Errorf("ttl is not positive")
	}

	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	return &CartService{
		carts:  carts,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// GetCart returns false for an unknown or expired cart.
func (s *CartService) GetCart(ctx context.Context, cartID string) (domain.Cart, bool, error) {
	cart, err := s.carts.GetCart(ctx, cartID)
	if errors.Is(err, port.ErrNotFound) {
		return domain.Cart{}, false, nil
	}
	if err != nil {
		return domain.Cart{}, false, fmt.Errorf("carts.GetCart: %w", err)
	}

	return cart, true, nil
}

// UpdateCart replaces the snapshot and restarts its expiry.
// The payment intent fields are only ever set by PaymentIntentService, so the stored ones are kept.
func (s *CartService) UpdateCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if err := validateCart(cart); err != nil {
		return domain.Cart{}, err
	}

	cart.PaymentIntentID, cart.ClientSecret = "", ""

	stored, err := s.carts.GetCart(ctx, cart.ID)
	switch {
	case err == nil:
		cart.PaymentIntentID, cart.ClientSecret = stored.PaymentIntentID, stored.ClientSecret
	case !errors.Is(err, port.ErrNotFound):
		return domain.Cart{}, fmt.Errorf("carts.GetCart: %w", err)
	}

	saved, err := s.carts.SetCart(ctx, cart, s.ttl)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("carts.SetCart: %w", err)
	}

	return saved, nil
}

// DeleteCart drops the cart snapshot, typically once the order for it has been paid.
func (s *CartService) DeleteCart(ctx context.Context, cartID string) (bool, error) {
	deleted, err := s.carts.DeleteCart(ctx, cartID)
	if err != nil {
		return false, fmt.Errorf("carts.DeleteCart: %w", err)
	}

	if deleted {
		s.logger.InfoContext(ctx, "cart deleted", "cart_id", cartID)
	}

	return deleted, nil
}

func validateCart(cart domain.Cart) error {
	if cart.ID == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidCart)
	}

	for _, item := range cart.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: quantity of product[%d] is not positive", ErrInvalidCart, item.ProductID)
		}

		if item.Price.IsNegative() {
			return fmt.Errorf("%w: price of product[%d] is negative", ErrInvalidCart, item.ProductID)
		}
	}

	return nil
}
