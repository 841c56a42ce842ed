package service

import (
	"time"

	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

const NotificationOrderComplete = "OrderCompleteNotification"

type OrderDTO struct {
	ID              int64                  `json:"id"`
	PublicID        string                 `json:"publicId"`
	OrderDate       time.Time              `json:"orderDate"`
	BuyerEmail      string                 `json:"buyerEmail"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	DeliveryMethod  string                 `json:"deliveryMethod"`
	ShippingPrice   decimal.Decimal        `json:"shippingPrice"`
	PaymentSummary  domain.PaymentSummary  `json:"paymentSummary"`
	OrderItems      []OrderItemDTO         `json:"orderItems"`
	Subtotal        decimal.Decimal        `json:"subtotal"`
	Discount        decimal.Decimal        `json:"discount"`
	Total           decimal.Decimal        `json:"total"`
	Currency        string                 `json:"currency"`
	Status          string                 `json:"status"`
	PaymentIntentID string                 `json:"paymentIntentId"`
}

type OrderItemDTO struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	PictureURL  string          `json:"pictureUrl"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

// Page is one page of a filtered result; Count covers the whole filtered set.
type Page[T any] struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
	Count     int `json:"count"`
	Data      []T `json:"data"`
}

func ToOrderDTO(o domain.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID:   item.ItemOrdered.ProductID,
			ProductName: item.ItemOrdered.ProductName,
			PictureURL:  item.ItemOrdered.PictureURL,
			Price:       item.Price,
			Quantity:    item.Quantity,
		})
	}

	return OrderDTO{
		ID:              o.ID,
		PublicID:        o.PublicID.String(),
		OrderDate:       o.OrderDate,
		BuyerEmail:      o.BuyerEmail,
		ShippingAddress: o.ShippingAddress,
		DeliveryMethod:  o.DeliveryMethod.Description,
		ShippingPrice:   o.DeliveryMethod.Price,
		PaymentSummary:  o.PaymentSummary,
		OrderItems:      items,
		Subtotal:        o.Subtotal,
		Discount:        o.Discount,
		Total:           o.Total().Amount,
		Currency:        o.Currency.String(),
		Status:          o.Status.String(),
		PaymentIntentID: o.PaymentIntentID,
	}
}

func ToOrderDTOs(orders []domain.Order) []OrderDTO {
	dtos := make([]OrderDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, ToOrderDTO(o))
	}

	return dtos
}
