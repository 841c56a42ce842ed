package domain

import (
	"github.com/shopspring/decimal"
)

type Cart struct {
	ID               string     `json:"id"`
	Items            []CartItem `json:"items"`
	DeliveryMethodID *int64     `json:"deliveryMethodId,omitempty"`
	CouponCode       string     `json:"couponCode,omitempty"`
	PaymentIntentID  string     `json:"paymentIntentId,omitempty"`
	ClientSecret     string     `json:"clientSecret,omitempty"`
}

type CartItem struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	PictureURL  string          `json:"pictureUrl"`
	Brand       string          `json:"brand,omitempty"`
	Type        string          `json:"type,omitempty"`
}
