package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nikolayk812/storefront/internal/db"
	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/nikolayk812/storefront/internal/spec"
	"golang.org/x/text/currency"
)

type orderRepository struct {
	*repository[domain.Order]
}

// TransitionStatus stages a status change that only applies while the stored order
// is still in status from at the version it was read at.
func (r *orderRepository) TransitionStatus(order *domain.Order, from domain.OrderStatus) {
	to := order.Status
	version := order.Version

	r.uow.stage(stagedOp{
		name: "transition order status",
		apply: func(ctx context.Context, q *db.Queries) error {
			rowsAffected, err := q.UpdateOrderStatus(ctx, db.UpdateOrderStatusParams{
				ID:      order.ID,
				From:    string(from),
				To:      string(to),
				Version: version,
			})
			if err != nil {
				return fmt.Errorf("q.UpdateOrderStatus: %w", err)
			}

			if err := affectedOne(rowsAffected, port.EntityOrder, order.ID); err != nil {
				return err
			}

			order.Version = version + 1

			return nil
		},
		undo: func() {
			order.Version = version
		},
	})
}

type orderMapper struct{}

func (orderMapper) entity() string    { return port.EntityOrder }
func (orderMapper) table() string     { return "orders" }
func (orderMapper) columns() []string { return db.OrderColumns }

func (orderMapper) mapping() spec.Mapping {
	return spec.Mapping{
		Columns: map[string]string{
			spec.FieldID:              "id",
			spec.FieldBuyerEmail:      "buyer_email",
			spec.FieldPaymentIntentID: "payment_intent_id",
			spec.FieldOrderDate:       "order_date",
			spec.FieldStatus:          "status",
		},
		Relations:  []string{spec.IncludeItems, spec.IncludeDeliveryMethod},
		PrimaryKey: "id",
	}
}

func (orderMapper) id(o *domain.Order) int64         { return o.ID }

func (orderMapper) collect(rows pgx.Rows) ([]domain.Order, error) {
	dbOrders, err := db.CollectOrders(rows)
	if err != nil {
		return nil, fmt.Errorf("db.CollectOrders: %w", err)
	}

	orders := make([]domain.Order, 0, len(dbOrders))
	for _, row := range dbOrders {
		order, err := mapOrderRowToDomain(row)
		if err != nil {
			return nil, fmt.Errorf("mapOrderRowToDomain[%d]: %w", row.ID, err)
		}

		orders = append(orders, order)
	}

	return orders, nil
}

func (orderMapper) insert(ctx context.Context, q *db.Queries, o *domain.Order) error {
	if err := validateOrder(*o); err != nil {
		return fmt.Errorf("validateOrder: %w", err)
	}

	if o.PublicID == uuid.Nil {
		o.PublicID = uuid.New()
	}
	if o.OrderDate.IsZero() {
		o.OrderDate = time.Now().UTC()
	}

	inserted, err := q.InsertOrder(ctx, mapOrderDomainToRow(*o))
	if err != nil {
		return fmt.Errorf("q.InsertOrder: %w", mapPgError(err))
	}

	o.ID = inserted.ID
	o.Version = inserted.Version

	if err := insertOrderItems(ctx, q, o); err != nil {
		return fmt.Errorf("insertOrderItems: %w", err)
	}

	return nil
}

// update rewrites a Pending order and replaces its items.
// It fails with a ConflictError when the stored order moved past o.Version.
func (orderMapper) update(ctx context.Context, q *db.Queries, o *domain.Order) error {
	if err := validateOrder(*o); err != nil {
		return fmt.Errorf("validateOrder: %w", err)
	}

	rowsAffected, err := q.UpdatePendingOrder(ctx, mapOrderDomainToRow(*o))
	if err != nil {
		return fmt.Errorf("q.UpdatePendingOrder: %w", err)
	}

	if err := affectedOne(rowsAffected, port.EntityOrder, o.ID); err != nil {
		return err
	}

	o.Version++

	if err := q.DeleteOrderItems(ctx, o.ID); err != nil {
		return fmt.Errorf("q.DeleteOrderItems: %w", err)
	}

	if err := insertOrderItems(ctx, q, o); err != nil {
		return fmt.Errorf("insertOrderItems: %w", err)
	}

	return nil
}

func (orderMapper) remove(ctx context.Context, q *db.Queries, o *domain.Order) error {
	rowsAffected, err := q.DeleteOrder(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("q.DeleteOrder: %w", err)
	}

	return affectedOne(rowsAffected, port.EntityOrder, o.ID)
}

func (orderMapper) include(ctx context.Context, q *db.Queries, relation string, orders []domain.Order) error {
	switch relation {
	case spec.IncludeItems:
		return includeOrderItems(ctx, q, orders)
	case spec.IncludeDeliveryMethod:
		return includeDeliveryMethods(ctx, q, orders)
	default:
		return fmt.Errorf("relation[%s] is not supported", relation)
	}
}

func includeOrderItems(ctx context.Context, q *db.Queries, orders []domain.Order) error {
	orderIDs := make([]int64, 0, len(orders))
	for _, o := range orders {
		orderIDs = append(orderIDs, o.ID)
	}

	dbItems, err := q.ListOrderItems(ctx, orderIDs)
	if err != nil {
		return fmt.Errorf("q.ListOrderItems: %w", err)
	}

	itemsByOrder := make(map[int64][]domain.OrderItem, len(orders))
	for _, row := range dbItems {
		itemsByOrder[row.OrderID] = append(itemsByOrder[row.OrderID], mapOrderItemRowToDomain(row))
	}

	for i := range orders {
		orders[i].Items = itemsByOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []domain.OrderItem{}
		}
	}

	return nil
}

func includeDeliveryMethods(ctx context.Context, q *db.Queries, orders []domain.Order) error {
	seen := make(map[int64]struct{}, len(orders))
	methodIDs := make([]int64, 0, len(orders))
	for _, o := range orders {
		if _, ok := seen[o.DeliveryMethodID]; ok {
			continue
		}
		seen[o.DeliveryMethodID] = struct{}{}
		methodIDs = append(methodIDs, o.DeliveryMethodID)
	}

	dbMethods, err := q.ListDeliveryMethodsByIDs(ctx, methodIDs)
	if err != nil {
		return fmt.Errorf("q.ListDeliveryMethodsByIDs: %w", err)
	}

	methods := make(map[int64]domain.DeliveryMethod, len(dbMethods))
	for _, m := range mapDeliveryMethodRowsToDomain(dbMethods) {
		methods[m.ID] = m
	}

	for i := range orders {
		method, ok := methods[orders[i].DeliveryMethodID]
		if !ok {
			return fmt.Errorf("delivery method[%d] of order[%d]: %w", orders[i].DeliveryMethodID, orders[i].ID, port.ErrNotFound)
		}
		orders[i].DeliveryMethod = method
	}

	return nil
}

func insertOrderItems(ctx context.Context, q *db.Queries, o *domain.Order) error {
	for i := range o.Items {
		row := mapOrderItemDomainToRow(o.ID, o.Items[i])

		id, err := q.InsertOrderItem(ctx, row)
		if err != nil {
			return fmt.Errorf("q.InsertOrderItem: %w", err)
		}

		o.Items[i].ID = id
	}

	return nil
}

func validateOrder(o domain.Order) error {
	if o.BuyerEmail == "" {
		return fmt.Errorf("buyerEmail is empty")
	}

	if o.PaymentIntentID == "" {
		return fmt.Errorf("paymentIntentID is empty")
	}

	if o.Currency == (currency.Unit{}) {
		return fmt.Errorf("currency is empty")
	}

	for _, item := range o.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("quantity of product[%d] is not positive", item.ItemOrdered.ProductID)
		}
	}

	return nil
}

func mapOrderRowToDomain(row db.Order) (domain.Order, error) {
	unit, err := currency.ParseISO(row.Currency)
	if err != nil {
		return domain.Order{}, fmt.Errorf("currency[%s] is not valid: %w", row.Currency, err)
	}

	status, err := domain.ParseOrderStatus(row.Status)
	if err != nil {
		return domain.Order{}, fmt.Errorf("domain.ParseOrderStatus: %w", err)
	}

	return domain.Order{
		ID:         row.ID,
		PublicID:   row.PublicID,
		OrderDate:  row.OrderDate.UTC(),
		BuyerEmail: row.BuyerEmail,
		ShippingAddress: domain.ShippingAddress{
			Name:       row.ShipName,
			Line1:      row.ShipLine1,
			Line2:      row.ShipLine2,
			City:       row.ShipCity,
			State:      row.ShipState,
			PostalCode: row.ShipPostalCode,
			Country:    row.ShipCountry,
		},
		DeliveryMethodID: row.DeliveryMethodID,
		PaymentSummary: domain.PaymentSummary{
			Last4:    int(row.PaymentLast4),
			Brand:    row.PaymentBrand,
			ExpMonth: int(row.PaymentExpMonth),
			ExpYear:  int(row.PaymentExpYear),
		},
		Subtotal:        row.Subtotal,
		Discount:        row.Discount,
		Currency:        unit,
		Status:          status,
		PaymentIntentID: row.PaymentIntentID,
		Version:         row.Version,
	}, nil
}

func mapOrderDomainToRow(o domain.Order) db.Order {
	return db.Order{
		ID:               o.ID,
		PublicID:         o.PublicID,
		OrderDate:        o.OrderDate,
		BuyerEmail:       o.BuyerEmail,
		ShipName:         o.ShippingAddress.Name,
		ShipLine1:        o.ShippingAddress.Line1,
		ShipLine2:        o.ShippingAddress.Line2,
		ShipCity:         o.ShippingAddress.City,
		ShipState:        o.ShippingAddress.State,
		ShipPostalCode:   o.ShippingAddress.PostalCode,
		ShipCountry:      o.ShippingAddress.Country,
		DeliveryMethodID: o.DeliveryMethodID,
		PaymentLast4:     int32(o.PaymentSummary.Last4),
		PaymentBrand:     o.PaymentSummary.Brand,
		PaymentExpMonth:  int32(o.PaymentSummary.ExpMonth),
		PaymentExpYear:   int32(o.PaymentSummary.ExpYear),
		Subtotal:         o.Subtotal,
		Discount:         o.Discount,
		Currency:         o.Currency.String(),
		Status:           string(o.Status),
		PaymentIntentID:  o.PaymentIntentID,
		Version:          o.Version,
	}
}

func mapOrderItemRowToDomain(row db.OrderItem) domain.OrderItem {
	return domain.OrderItem{
		ID: row.ID,
		ItemOrdered: domain.ProductItemOrdered{
			ProductID:   row.ProductID,
			ProductName: row.ProductName,
			PictureURL:  row.PictureUrl,
		},
		Price:    row.Price,
		Quantity: int(row.Quantity),
	}
}

func mapOrderItemDomainToRow(orderID int64, item domain.OrderItem) db.OrderItem {
	return db.OrderItem{
		OrderID:     orderID,
		ProductID:   item.ItemOrdered.ProductID,
		ProductName: item.ItemOrdered.ProductName,
		PictureUrl:  item.ItemOrdered.PictureURL,
		Price:       item.Price,
		Quantity:    int32(item.Quantity),
	}
}
