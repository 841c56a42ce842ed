package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
	}
}

func (s *RedisStore) GetCart(ctx context.Context, cartID string) (domain.Cart, error) {
	if cartID == "" {
		return domain.Cart{}, fmt.Errorf("cartID is empty")
	}

	data, err := s.client.Get(ctx, cartKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Cart{}, fmt.Errorf("cart[%s]: %w", cartID, port.ErrNotFound)
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("client.Get: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return domain.Cart{}, fmt.Errorf("json.Unmarshal: %w", err)
	}

	return cart, nil
}

// SetCart replaces the stored snapshot and restarts its time-to-live.
func (s *RedisStore) SetCart(ctx context.Context, cart domain.Cart, ttl time.Duration) (domain.Cart, error) {
	if cart.ID == "" {
		return domain.Cart{}, fmt.Errorf("cart.ID is empty")
	}

	if ttl <= 0 {
		return domain.Cart{}, fmt.Errorf("ttl is not positive")
	}

	data, err := json.Marshal(cart)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("json.Marshal: %w", err)
	}

	if err := s.client.Set(ctx, cartKey(cart.ID), data, ttl).Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("client.Set: %w", err)
	}

	return s.GetCart(ctx, cart.ID)
}

func (s *RedisStore) DeleteCart(ctx context.Context, cartID string) (bool, error) {
	if cartID == "" {
		return false, fmt.Errorf("cartID is empty")
	}

	deleted, err := s.client.Del(ctx, cartKey(cartID)).Result()
	if err != nil {
		return false, fmt.Errorf("client.Del: %w", err)
	}

	return deleted > 0, nil
}

func cartKey(cartID string) string {
	return fmt.Sprintf("cart:%s", cartID)
}
