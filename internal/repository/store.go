package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/storefront/internal/db"
	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
)

type store struct {
	q    *db.Queries
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) port.Store {
	return &store{
		q:    db.New(pool),
		pool: pool,
	}
}

// NewStoreWithTx runs every unit of work inside tx; committing tx stays with the caller.
func NewStoreWithTx(tx pgx.Tx) port.Store {
	return &store{
		q:    db.New(tx),
		pool: nil, // use provided transaction instead
	}
}

func (s *store) Begin() port.UnitOfWork {
	u := &unitOfWork{
		q:    s.q,
		pool: s.pool,
	}

	u.products = &productRepository{repository: &repository[domain.Product]{uow: u, mapper: productMapper{}}}
	u.orders = &orderRepository{repository: &repository[domain.Order]{uow: u, mapper: orderMapper{}}}
	u.deliveryMethods = &repository[domain.DeliveryMethod]{uow: u, mapper: deliveryMethodMapper{}}

	return u
}

type stagedOp struct {
	name  string
	apply func(ctx context.Context, q *db.Queries) error
	// undo restores in-memory state (generated IDs) when the commit does not go through
	undo func()
}

type unitOfWork struct {
	q    *db.Queries
	pool *pgxpool.Pool

	mu     sync.Mutex
	ops    []stagedOp
	closed bool

	products        *productRepository
	orders          *orderRepository
	deliveryMethods *repository[domain.DeliveryMethod]
}

func (u *unitOfWork) Products() port.ProductRepository {
	return u.products
}

func (u *unitOfWork) Orders() port.OrderRepository {
	return u.orders
}

func (u *unitOfWork) DeliveryMethods() port.Repository[domain.DeliveryMethod] {
	return u.deliveryMethods
}

func (u *unitOfWork) stage(op stagedOp) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.ops = append(u.ops, op)
}

// Commit applies all staged operations in one transaction, in staging order.
func (u *unitOfWork) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.closed {
		return port.ErrUnitOfWorkClosed
	}
	u.closed = true

	ops := u.ops
	u.ops = nil

	if len(ops) == 0 {
		return nil
	}

	_, err := withTx(ctx, u.pool, u.q, func(q *db.Queries) (int, error) {
		for i, op := range ops {
			if err := op.apply(ctx, q); err != nil {
				return i, fmt.Errorf("%s: %w", op.name, err)
			}
		}

		return len(ops), nil
	})
	if err != nil {
		for i := len(ops) - 1; i >= 0; i-- {
			if ops[i].undo != nil {
				ops[i].undo()
			}
		}

		return fmt.Errorf("%w: %w", port.ErrCommitFailed, err)
	}

	return nil
}
