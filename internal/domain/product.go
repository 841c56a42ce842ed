package domain

import (
	"github.com/shopspring/decimal"
)

type Product struct {
	ID              int64
	Name            string
	Description     string
	Price           decimal.Decimal
	PictureURL      string
	Type            string
	Brand           string
	QuantityInStock int
}

type DeliveryMethod struct {
	ID           int64           `json:"id"`
	ShortName    string          `json:"shortName"`
	DeliveryTime string          `json:"deliveryTime"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
}
