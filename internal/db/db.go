package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// Query runs a dynamically built statement, used for specification queries.
func (q *Queries) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return q.db.Query(ctx, sql, args...)
}

func (q *Queries) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return q.db.QueryRow(ctx, sql, args...)
}
