package port

import (
	"context"
	"errors"
	"fmt"

	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/spec"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrCommitFailed     = errors.New("unit of work commit failed")
	ErrUnitOfWorkClosed = errors.New("unit of work already committed")
	ErrConflict         = errors.New("conditional write affected no rows")
	ErrDuplicate        = errors.New("duplicate key")
)

const (
	EntityProduct = "product"
	EntityOrder   = "order"
)

// ConflictError reports a staged conditional write whose condition no longer held at commit time.
type ConflictError struct {
	Entity string
	ID     int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s[%d]: %s", e.Entity, e.ID, ErrConflict)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// Repository reads immediately and stages writes on its unit of work.
// Staged entities passed by pointer receive generated IDs on commit.
type Repository[T any] interface {
	Add(entity *T)
	Update(entity *T)
	Remove(entity *T)
	GetByID(ctx context.Context, id int64) (T, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, s *spec.Specification[T]) ([]T, error)
	GetOne(ctx context.Context, s *spec.Specification[T]) (T, error)
	Count(ctx context.Context, s *spec.Specification[T]) (int, error)
}

type ProductRepository interface {
	Repository[domain.Product]

	// DecrementStock stages "quantity -= n only if the result stays >= 0".
	DecrementStock(productID int64, n int)
	// IncrementStock stages "quantity += n", failing if the product is gone.
	IncrementStock(productID int64, n int)
}

type OrderRepository interface {
	Repository[domain.Order]

	// TransitionStatus stages a status write that only applies while the stored status is still from.
	TransitionStatus(order *domain.Order, from domain.OrderStatus)
}

// UnitOfWork batches staged writes across repositories and commits them atomically.
// It is single-use: after Commit, successful or not, it must be discarded.
type UnitOfWork interface {
	Products() ProductRepository
	Orders() OrderRepository
	DeliveryMethods() Repository[domain.DeliveryMethod]
	Commit(ctx context.Context) error
}

type Store interface {
	Begin() UnitOfWork
}
