package spec

import (
	"github.com/nikolayk812/storefront/internal/domain"
)

const (
	FieldID              = "id"
	FieldBuyerEmail      = "buyerEmail"
	FieldPaymentIntentID = "paymentIntentId"
	FieldOrderDate       = "orderDate"
	FieldStatus          = "status"
	FieldName            = "name"
	FieldPrice           = "price"
	FieldBrand           = "brand"
	FieldType            = "type"

	IncludeItems          = "items"
	IncludeDeliveryMethod = "deliveryMethod"
)

// OrderByPaymentIntent finds the single order tied to a payment intent.
// The delivery method is always loaded since the order total depends on it.
func OrderByPaymentIntent(intentID string, withItems bool) *Specification[domain.Order] {
	s := New[domain.Order]().
		Where(FieldPaymentIntentID, intentID).
		Include(IncludeDeliveryMethod)

	if withItems {
		s.Include(IncludeItems)
	}

	return s
}

// OrdersForBuyer lists a buyer's orders, newest first.
func OrdersForBuyer(email string, pageIndex, pageSize int) *Specification[domain.Order] {
	return New[domain.Order]().
		Where(FieldBuyerEmail, email).
		Include(IncludeItems, IncludeDeliveryMethod).
		OrderByDesc(FieldOrderDate).
		OrderByDesc(FieldID).
		Page(pageIndex, pageSize)
}

func OrderForBuyer(email string, id int64) *Specification[domain.Order] {
	return New[domain.Order]().
		Where(FieldBuyerEmail, email).
		Where(FieldID, id).
		Include(IncludeItems, IncludeDeliveryMethod)
}

func DeliveryMethodsByPrice() *Specification[domain.DeliveryMethod] {
	return New[domain.DeliveryMethod]().OrderByDesc(FieldPrice)
}
