package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const insertProduct = `
INSERT INTO products (name, description, price, picture_url, type, brand, quantity_in_stock)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`

func (q *Queries) InsertProduct(ctx context.Context, arg Product) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, insertProduct,
		arg.Name, arg.Description, arg.Price, arg.PictureUrl, arg.Type, arg.Brand, arg.QuantityInStock,
	).Scan(&id)
	return id, err
}

const updateProduct = `
UPDATE products
SET name = $2, description = $3, price = $4, picture_url = $5, type = $6, brand = $7, quantity_in_stock = $8
WHERE id = $1`

func (q *Queries) UpdateProduct(ctx context.Context, arg Product) (int64, error) {
	result, err := q.db.Exec(ctx, updateProduct,
		arg.ID, arg.Name, arg.Description, arg.Price, arg.PictureUrl, arg.Type, arg.Brand, arg.QuantityInStock,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteProduct = `DELETE FROM products WHERE id = $1`

func (q *Queries) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteProduct, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const decrementStock = `
UPDATE products
SET quantity_in_stock = quantity_in_stock - $2
WHERE id = $1
  AND quantity_in_stock >= $2`

type StockParams struct {
	ProductID int64
	Quantity  int32
}

// DecrementStock never drives the stock below zero: it affects no rows instead.
func (q *Queries) DecrementStock(ctx context.Context, arg StockParams) (int64, error) {
	result, err := q.db.Exec(ctx, decrementStock, arg.ProductID, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const incrementStock = `
UPDATE products
SET quantity_in_stock = quantity_in_stock + $2
WHERE id = $1`

func (q *Queries) IncrementStock(ctx context.Context, arg StockParams) (int64, error) {
	result, err := q.db.Exec(ctx, incrementStock, arg.ProductID, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func CollectProducts(rows pgx.Rows) ([]Product, error) {
	return pgx.CollectRows(rows, pgx.RowToStructByName[Product])
}
