package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type Order struct {
	ID               int64
	PublicID         uuid.UUID
	OrderDate        time.Time
	BuyerEmail       string
	ShippingAddress  ShippingAddress
	DeliveryMethodID int64
	// DeliveryMethod is only populated when the order was loaded with its delivery method.
	DeliveryMethod  DeliveryMethod
	PaymentSummary  PaymentSummary
	Items           []OrderItem
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	Currency        currency.Unit
	Status          OrderStatus
	PaymentIntentID string
	// Version is bumped by every stored write; conditional writes only apply at the version read.
	Version int64
}

type ShippingAddress struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// PaymentSummary holds masked card metadata only.
type PaymentSummary struct {
	Last4    int    `json:"last4"`
	Brand    string `json:"brand"`
	ExpMonth int    `json:"expMonth"`
	ExpYear  int    `json:"expYear"`
}

// OrderItem is a snapshot of a product at checkout time, decoupled from later catalog changes.
type OrderItem struct {
	ID          int64
	ItemOrdered ProductItemOrdered
	Price       decimal.Decimal
	Quantity    int
}

type ProductItemOrdered struct {
	ProductID   int64
	ProductName string
	PictureURL  string
}

func NewOrderItem(product Product, line CartItem) OrderItem {
	return OrderItem{
		ItemOrdered: ProductItemOrdered{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			PictureURL:  line.PictureURL,
		},
		Price:    product.Price,
		Quantity: line.Quantity,
	}
}

func SubtotalOf(items []OrderItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	return subtotal
}

// Total is subtotal plus delivery cost minus discount.
func (o Order) Total() Money {
	return Money{
		Amount:   o.Subtotal.Add(o.DeliveryMethod.Price).Sub(o.Discount),
		Currency: o.Currency,
	}
}

// ReservedQuantities sums ordered quantities per product.
func (o Order) ReservedQuantities() map[int64]int {
	reserved := make(map[int64]int, len(o.Items))
	for _, item := range o.Items {
		reserved[item.ItemOrdered.ProductID] += item.Quantity
	}

	return reserved
}

// Merge overwrites the mutable checkout fields of o with the ones from next.
// Identity, buyer, status, payment intent, order date and version are kept.
func (o *Order) Merge(next Order) {
	o.Items = next.Items
	o.DeliveryMethodID = next.DeliveryMethodID
	o.DeliveryMethod = next.DeliveryMethod
	o.ShippingAddress = next.ShippingAddress
	o.Subtotal = next.Subtotal
	o.Discount = next.Discount
	o.PaymentSummary = next.PaymentSummary
}
