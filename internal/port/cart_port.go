package port

import (
	"context"
	"time"

	"github.com/nikolayk812/storefront/internal/domain"
)

// CartStore keeps client-owned cart snapshots. GetCart returns ErrNotFound for unknown or expired carts.
type CartStore interface {
	GetCart(ctx context.Context, cartID string) (domain.Cart, error)
	SetCart(ctx context.Context, cart domain.Cart, ttl time.Duration) (domain.Cart, error)
	DeleteCart(ctx context.Context, cartID string) (bool, error)
}
