package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nikolayk812/storefront/internal/db"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/nikolayk812/storefront/internal/spec"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// entityMapper binds one domain entity to its table.
type entityMapper[T any] interface {
	entity() string
	table() string
	columns() []string
	mapping() spec.Mapping
	id(e *T) int64
	collect(rows pgx.Rows) ([]T, error)
	insert(ctx context.Context, q *db.Queries, e *T) error
	update(ctx context.Context, q *db.Queries, e *T) error
	remove(ctx context.Context, q *db.Queries, e *T) error
	include(ctx context.Context, q *db.Queries, relation string, es []T) error
}

type repository[T any] struct {
	uow    *unitOfWork
	mapper entityMapper[T]
}

func (r *repository[T]) Add(e *T) {
	snap := &snapshot[T]{}

	r.uow.stage(stagedOp{
		name: "insert " + r.mapper.entity(),
		apply: func(ctx context.Context, q *db.Queries) error {
			snap.take(e)
			return r.mapper.insert(ctx, q, e)
		},
		undo: func() {
			snap.restore(e)
		},
	})
}

func (r *repository[T]) Update(e *T) {
	snap := &snapshot[T]{}

	r.uow.stage(stagedOp{
		name: "update " + r.mapper.entity(),
		apply: func(ctx context.Context, q *db.Queries) error {
			snap.take(e)
			return r.mapper.update(ctx, q, e)
		},
		undo: func() {
			snap.restore(e)
		},
	})
}

// snapshot keeps the value an entity had right before its op was applied,
// so generated IDs and bumped versions can be rolled back in memory.
type snapshot[T any] struct {
	value T
	taken bool
}

func (s *snapshot[T]) take(e *T) {
	s.value = *e
	s.taken = true
}

func (s *snapshot[T]) restore(e *T) {
	if s.taken {
		*e = s.value
	}
}

func (r *repository[T]) Remove(e *T) {
	r.uow.stage(stagedOp{
		name: "remove " + r.mapper.entity(),
		apply: func(ctx context.Context, q *db.Queries) error {
			return r.mapper.remove(ctx, q, e)
		},
	})
}

func (r *repository[T]) GetByID(ctx context.Context, id int64) (T, error) {
	return r.GetOne(ctx, spec.New[T]().Where(spec.FieldID, id))
}

func (r *repository[T]) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool

	err := r.uow.q.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+r.mapper.table()+" WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("q.QueryRow: %w", err)
	}

	return exists, nil
}

func (r *repository[T]) List(ctx context.Context, s *spec.Specification[T]) ([]T, error) {
	return r.list(ctx, s, 0)
}

// GetOne returns the first entity matching s, or port.ErrNotFound.
func (r *repository[T]) GetOne(ctx context.Context, s *spec.Specification[T]) (T, error) {
	var zero T

	entities, err := r.list(ctx, s, 1)
	if err != nil {
		return zero, err
	}

	if len(entities) == 0 {
		return zero, fmt.Errorf("%s: %w", r.mapper.entity(), port.ErrNotFound)
	}

	return entities[0], nil
}

// Count counts the entities matching the filter of s; includes, ordering and paging are ignored.
func (r *repository[T]) Count(ctx context.Context, s *spec.Specification[T]) (int, error) {
	query, err := spec.Evaluate(psql.Select("COUNT(*)").From(r.mapper.table()), s.FilterOnly(), r.mapper.mapping())
	if err != nil {
		return 0, fmt.Errorf("spec.Evaluate: %w", err)
	}

	sql, args, err := query.Builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("builder.ToSql: %w", err)
	}

	var count int
	if err := r.uow.q.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("q.QueryRow: %w", err)
	}

	return count, nil
}

func (r *repository[T]) list(ctx context.Context, s *spec.Specification[T], limit uint64) ([]T, error) {
	query, err := spec.Evaluate(psql.Select(r.mapper.columns()...).From(r.mapper.table()), s, r.mapper.mapping())
	if err != nil {
		return nil, fmt.Errorf("spec.Evaluate: %w", err)
	}

	builder := query.Builder
	if limit > 0 && (s == nil || !s.IsPaged()) {
		builder = builder.Limit(limit)
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("builder.ToSql: %w", err)
	}

	rows, err := r.uow.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("q.Query: %w", err)
	}

	entities, err := r.mapper.collect(rows)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", r.mapper.entity(), err)
	}

	if len(entities) == 0 {
		return entities, nil
	}

	for _, relation := range query.Includes {
		if err := r.mapper.include(ctx, r.uow.q, relation, entities); err != nil {
			return nil, fmt.Errorf("include %s: %w", relation, err)
		}
	}

	return entities, nil
}

func affectedOne(rowsAffected int64, entity string, id int64) error {
	if rowsAffected == 0 {
		return &port.ConflictError{Entity: entity, ID: id}
	}

	return nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s: %w", port.ErrDuplicate, pgErr.ConstraintName, err)
	}

	return err
}
