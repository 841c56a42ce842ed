package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const insertOrder = `
INSERT INTO orders (public_id, order_date, buyer_email,
                    ship_name, ship_line1, ship_line2, ship_city, ship_state, ship_postal_code, ship_country,
                    delivery_method_id,
                    payment_last4, payment_brand, payment_exp_month, payment_exp_year,
                    subtotal, discount, currency, status, payment_intent_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
RETURNING id, version`

type InsertOrderRow struct {
	ID      int64
	Version int64
}

func (q *Queries) InsertOrder(ctx context.Context, arg Order) (InsertOrderRow, error) {
	var row InsertOrderRow
	err := q.db.QueryRow(ctx, insertOrder,
		arg.PublicID, arg.OrderDate, arg.BuyerEmail,
		arg.ShipName, arg.ShipLine1, arg.ShipLine2, arg.ShipCity, arg.ShipState, arg.ShipPostalCode, arg.ShipCountry,
		arg.DeliveryMethodID,
		arg.PaymentLast4, arg.PaymentBrand, arg.PaymentExpMonth, arg.PaymentExpYear,
		arg.Subtotal, arg.Discount, arg.Currency, arg.Status, arg.PaymentIntentID,
	).Scan(&row.ID, &row.Version)
	return row, err
}

// updatePendingOrder leaves status, payment intent and order date untouched
// and only applies while the order is still Pending at the version it was read at.
const updatePendingOrder = `
UPDATE orders
SET buyer_email        = $2,
    ship_name          = $3,
    ship_line1         = $4,
    ship_line2         = $5,
    ship_city          = $6,
    ship_state         = $7,
    ship_postal_code   = $8,
    ship_country       = $9,
    delivery_method_id = $10,
    payment_last4      = $11,
    payment_brand      = $12,
    payment_exp_month  = $13,
    payment_exp_year   = $14,
    subtotal           = $15,
    discount           = $16,
    version            = version + 1
WHERE id = $1
  AND status = 'Pending'
  AND version = $17`

func (q *Queries) UpdatePendingOrder(ctx context.Context, arg Order) (int64, error) {
	result, err := q.db.Exec(ctx, updatePendingOrder,
		arg.ID, arg.BuyerEmail,
		arg.ShipName, arg.ShipLine1, arg.ShipLine2, arg.ShipCity, arg.ShipState, arg.ShipPostalCode, arg.ShipCountry,
		arg.DeliveryMethodID,
		arg.PaymentLast4, arg.PaymentBrand, arg.PaymentExpMonth, arg.PaymentExpYear,
		arg.Subtotal, arg.Discount, arg.Version,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const updateOrderStatus = `
UPDATE orders
SET status  = $3,
    version = version + 1
WHERE id = $1
  AND status = $2
  AND version = $4`

type UpdateOrderStatusParams struct {
	ID      int64
	From    string
	To      string
	Version int64
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateOrderStatus, arg.ID, arg.From, arg.To, arg.Version)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteOrder = `DELETE FROM orders WHERE id = $1`

func (q *Queries) DeleteOrder(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOrder, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteOrderItems = `DELETE FROM order_items WHERE order_id = $1`

func (q *Queries) DeleteOrderItems(ctx context.Context, orderID int64) error {
	_, err := q.db.Exec(ctx, deleteOrderItems, orderID)
	return err
}

const insertOrderItem = `
INSERT INTO order_items (order_id, product_id, product_name, picture_url, price, quantity)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`

func (q *Queries) InsertOrderItem(ctx context.Context, arg OrderItem) (int64, error) {
	var id int64
	err := q.db.QueryRow(ctx, insertOrderItem,
		arg.OrderID, arg.ProductID, arg.ProductName, arg.PictureUrl, arg.Price, arg.Quantity,
	).Scan(&id)
	return id, err
}

const listOrderItems = `
SELECT id, order_id, product_id, product_name, picture_url, price, quantity
FROM order_items
WHERE order_id = ANY($1::bigint[])
ORDER BY order_id, id`

func (q *Queries) ListOrderItems(ctx context.Context, orderIDs []int64) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderIDs)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[OrderItem])
}

func CollectOrders(rows pgx.Rows) ([]Order, error) {
	return pgx.CollectRows(rows, pgx.RowToStructByName[Order])
}
