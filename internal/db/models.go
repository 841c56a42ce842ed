package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ProductColumns = []string{
	"id", "name", "description", "price", "picture_url", "type", "brand", "quantity_in_stock",
}

type Product struct {
	ID              int64           `db:"id"`
	Name            string          `db:"name"`
	Description     string          `db:"description"`
	Price           decimal.Decimal `db:"price"`
	PictureUrl      string          `db:"picture_url"`
	Type            string          `db:"type"`
	Brand           string          `db:"brand"`
	QuantityInStock int32           `db:"quantity_in_stock"`
}

var DeliveryMethodColumns = []string{
	"id", "short_name", "delivery_time", "description", "price",
}

type DeliveryMethod struct {
	ID           int64           `db:"id"`
	ShortName    string          `db:"short_name"`
	DeliveryTime string          `db:"delivery_time"`
	Description  string          `db:"description"`
	Price        decimal.Decimal `db:"price"`
}

var OrderColumns = []string{
	"id", "public_id", "order_date", "buyer_email",
	"ship_name", "ship_line1", "ship_line2", "ship_city", "ship_state", "ship_postal_code", "ship_country",
	"delivery_method_id",
	"payment_last4", "payment_brand", "payment_exp_month", "payment_exp_year",
	"subtotal", "discount", "currency", "status", "payment_intent_id", "version",
}

type Order struct {
	ID               int64           `db:"id"`
	PublicID         uuid.UUID       `db:"public_id"`
	OrderDate        time.Time       `db:"order_date"`
	BuyerEmail       string          `db:"buyer_email"`
	ShipName         string          `db:"ship_name"`
	ShipLine1        string          `db:"ship_line1"`
	ShipLine2        string          `db:"ship_line2"`
	ShipCity         string          `db:"ship_city"`
	ShipState        string          `db:"ship_state"`
	ShipPostalCode   string          `db:"ship_postal_code"`
	ShipCountry      string          `db:"ship_country"`
	DeliveryMethodID int64           `db:"delivery_method_id"`
	PaymentLast4     int32           `db:"payment_last4"`
	PaymentBrand     string          `db:"payment_brand"`
	PaymentExpMonth  int32           `db:"payment_exp_month"`
	PaymentExpYear   int32           `db:"payment_exp_year"`
	Subtotal         decimal.Decimal `db:"subtotal"`
	Discount         decimal.Decimal `db:"discount"`
	Currency         string          `db:"currency"`
	Status           string          `db:"status"`
	PaymentIntentID  string          `db:"payment_intent_id"`
	Version          int64           `db:"version"`
}

type OrderItem struct {
	ID          int64           `db:"id"`
	OrderID     int64           `db:"order_id"`
	ProductID   int64           `db:"product_id"`
	ProductName string          `db:"product_name"`
	PictureUrl  string          `db:"picture_url"`
	Price       decimal.Decimal `db:"price"`
	Quantity    int32           `db:"quantity"`
}
