package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const insertDeliveryMethod = `
INSERT INTO delivery_methods (short_name, delivery_time, description, price)
VALUES ($1, $2, $3, $4)
RETURNING id`

func (q *Queries) InsertDeliveryMethod(ctx context.Context, arg DeliveryMethod) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, insertDeliveryMethod,
		arg.ShortName, arg.DeliveryTime, arg.Description, arg.Price,
	).Scan(&id)
	return id, err
}

const updateDeliveryMethod = `
UPDATE delivery_methods
SET short_name = $2, delivery_time = $3, description = $4, price = $5
WHERE id = $1`

func (q *Queries) UpdateDeliveryMethod(ctx context.Context, arg DeliveryMethod) (int64, error) {
	result, err := q.db.Exec(ctx, updateDeliveryMethod,
		arg.ID, arg.ShortName, arg.DeliveryTime, arg.Description, arg.Price,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteDeliveryMethod = `DELETE FROM delivery_methods WHERE id = $1`

func (q *Queries) DeleteDeliveryMethod(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteDeliveryMethod, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listDeliveryMethodsByIDs = `
SELECT id, short_name, delivery_time, description, price
FROM delivery_methods
WHERE id = ANY($1::bigint[])`

func (q *Queries) ListDeliveryMethodsByIDs(ctx context.Context, ids []int64) ([]DeliveryMethod, error) {
	rows, err := q.db.Query(ctx, listDeliveryMethodsByIDs, ids)
	if err != nil {
		return nil, err
	}
	return CollectDeliveryMethods(rows)
}

func CollectDeliveryMethods(rows pgx.Rows) ([]DeliveryMethod, error) {
	return pgx.CollectRows(rows, pgx.RowToStructByName[DeliveryMethod])
}
