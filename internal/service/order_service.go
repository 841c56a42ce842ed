package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/metrics"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/nikolayk812/storefront/internal/spec"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type CreateOrderInput struct {
	CartID           string                 `json:"cartId"`
	DeliveryMethodID int64                  `json:"deliveryMethodId"`
	ShippingAddress  domain.ShippingAddress `json:"shippingAddress"`
	PaymentSummary   domain.PaymentSummary  `json:"paymentSummary"`
	Discount         decimal.Decimal        `json:"discount"`
	// BuyerEmail comes from the authenticated caller, never from the request body.
	BuyerEmail string `json:"-"`
}

func (in CreateOrderInput) validate() error {
	if strings.TrimSpace(in.BuyerEmail) == "" {
		return fmt.Errorf("%w: buyerEmail is empty", ErrInvalidCheckoutState)
	}

	if in.CartID == "" {
		return fmt.Errorf("%w: cartID is empty", ErrInvalidCheckoutState)
	}

	if in.Discount.IsNegative() {
		return fmt.Errorf("%w: discount is negative", ErrInvalidCheckoutState)
	}

	return nil
}

type OrderService struct {
	store    port.Store
	carts    port.CartStore
	currency currency.Unit
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewOrderService(store port.Store, carts port.CartStore, unit currency.Unit, m *metrics.Metrics, logger *slog.Logger) (*OrderService, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}

	if carts == nil {
		return nil, fmt.Errorf("carts is nil")
	}

	if m == nil {
		return nil, fmt.Errorf("metrics is nil")
	}

	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	return &OrderService{
		store:    store,
		carts:    carts,
		currency: unit,
		metrics:  m,
		logger:   logger,
	}, nil
}

// CreateOrder converts the cart into an order, reserving stock in the same unit of work.
// Re-running it for the same payment intent updates the existing Pending order.
// A checkout that lost a race on the order row is re-read and retried.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	var (
		order   domain.Order
		created bool
		err     error
	)

	for attempt := 1; attempt <= maxConflictAttempts; attempt++ {
		order, created, err = s.createOrder(ctx, in)
		if !isOrderConflict(err) && !errors.Is(err, port.ErrDuplicate) {
			break
		}

		s.logger.InfoContext(ctx, "order changed concurrently", "cart_id", in.CartID, "attempt", attempt)
	}

	if err != nil {
		if IsValidation(err) {
			s.metrics.Checkout(metrics.CheckoutRejected)
			s.logger.InfoContext(ctx, "checkout rejected", "cart_id", in.CartID, "error", err)
		} else {
			s.metrics.Checkout(metrics.CheckoutPersistenceFailed)
			s.logger.ErrorContext(ctx, "checkout failed", "cart_id", in.CartID, "error", err)
		}

		return domain.Order{}, err
	}

	outcome := metrics.CheckoutUpdated
	if created {
		outcome = metrics.CheckoutCreated
	}
	s.metrics.Checkout(outcome)
	s.logger.InfoContext(ctx, "checkout completed",
		"order_id", order.ID, "payment_intent_id", order.PaymentIntentID, "outcome", outcome)

	return order, nil
}

func (s *OrderService) createOrder(ctx context.Context, in CreateOrderInput) (domain.Order, bool, error) {
	if err := in.validate(); err != nil {
		return domain.Order{}, false, err
	}

	cart, err := s.carts.GetCart(ctx, in.CartID)
	if errors.Is(err, port.ErrNotFound) {
		return domain.Order{}, false, ErrCartNotFound
	}
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("carts.GetCart: %w", err)
	}

	if cart.PaymentIntentID == "" {
		return domain.Order{}, false, ErrNoPaymentIntent
	}

	if len(cart.Items) == 0 {
		return domain.Order{}, false, ErrEmptyCart
	}

	uow := s.store.Begin()

	existing, found, err := s.existingOrder(ctx, uow, cart.PaymentIntentID)
	if err != nil {
		return domain.Order{}, false, err
	}

	if found && !strings.EqualFold(existing.BuyerEmail, strings.TrimSpace(in.BuyerEmail)) {
		return domain.Order{}, false, fmt.Errorf("%w: payment intent %s belongs to another buyer", ErrInvalidCheckoutState, cart.PaymentIntentID)
	}

	// stock already held by a previous checkout of the same payment intent
	reserved := existing.ReservedQuantities()

	requested := make(map[int64]int, len(cart.Items))
	for _, line := range cart.Items {
		if line.Quantity <= 0 {
			return domain.Order{}, false, fmt.Errorf("%w: quantity of product[%d] is not positive", ErrInvalidCheckoutState, line.ProductID)
		}
		requested[line.ProductID] += line.Quantity
	}

	items := make([]domain.OrderItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		product, err := uow.Products().GetByID(ctx, line.ProductID)
		if errors.Is(err, port.ErrNotFound) {
			return domain.Order{}, false, fmt.Errorf("%w: product with ID %d not found", ErrProductNotFound, line.ProductID)
		}
		if err != nil {
			return domain.Order{}, false, fmt.Errorf("products.GetByID: %w", err)
		}

		available := product.QuantityInStock + reserved[product.ID]
		if available < requested[product.ID] {
			return domain.Order{}, false, &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: line.ProductName,
				Requested:   requested[product.ID],
				Available:   available,
			}
		}

		items = append(items, domain.NewOrderItem(product, line))
	}

	deliveryMethod, err := uow.DeliveryMethods().GetByID(ctx, in.DeliveryMethodID)
	if errors.Is(err, port.ErrNotFound) {
		return domain.Order{}, false, ErrDeliveryMethodNotFound
	}
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("deliveryMethods.GetByID: %w", err)
	}

	subtotal := domain.SubtotalOf(items)
	if in.Discount.GreaterThan(subtotal.Add(deliveryMethod.Price)) {
		return domain.Order{}, false, fmt.Errorf("%w: discount exceeds subtotal plus delivery", ErrInvalidCheckoutState)
	}

	order := domain.Order{
		BuyerEmail:       in.BuyerEmail,
		ShippingAddress:  in.ShippingAddress,
		DeliveryMethodID: deliveryMethod.ID,
		DeliveryMethod:   deliveryMethod,
		PaymentSummary:   in.PaymentSummary,
		Items:            items,
		Subtotal:         subtotal,
		Discount:         in.Discount,
		Currency:         s.currency,
		Status:           domain.OrderStatusPending,
		PaymentIntentID:  cart.PaymentIntentID,
	}

	// the order row is written first so checkout and reconciliation lock rows in the same order
	if found {
		existing.Merge(order)
		order = existing
		uow.Orders().Update(&order)
	} else {
		uow.Orders().Add(&order)
	}

	stageStockDelta(uow.Products(), requested, reserved)

	if err := uow.Commit(ctx); err != nil {
		return domain.Order{}, false, s.commitError(ctx, err, cart, requested)
	}

	return order, !found, nil
}

func (s *OrderService) existingOrder(ctx context.Context, uow port.UnitOfWork, paymentIntentID string) (domain.Order, bool, error) {
	existing, err := uow.Orders().GetOne(ctx, spec.OrderByPaymentIntent(paymentIntentID, true))
	if errors.Is(err, port.ErrNotFound) {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("orders.GetOne: %w", err)
	}

	if existing.Status.IsTerminal() {
		return domain.Order{}, false, fmt.Errorf("%w: order for payment intent %s is already %s",
			ErrInvalidCheckoutState, paymentIntentID, existing.Status)
	}

	return existing, true, nil
}

// stageStockDelta moves stock by the difference between what is requested now and what is already reserved.
// Products are staged in ascending ID order so concurrent checkouts lock rows consistently.
func stageStockDelta(products port.ProductRepository, requested, reserved map[int64]int) {
	ids := make([]int64, 0, len(requested)+len(reserved))
	for id := range requested {
		ids = append(ids, id)
	}
	for id := range reserved {
		if _, ok := requested[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	for _, id := range ids {
		switch delta := requested[id] - reserved[id]; {
		case delta > 0:
			products.DecrementStock(id, delta)
		case delta < 0:
			products.IncrementStock(id, -delta)
		}
	}
}

// commitError turns a lost race on a stock row into InsufficientStockError with the stock seen after the race.
func (s *OrderService) commitError(ctx context.Context, err error, cart domain.Cart, requested map[int64]int) error {
	var conflictErr *port.ConflictError
	if !errors.As(err, &conflictErr) || conflictErr.Entity != port.EntityProduct {
		return fmt.Errorf("%w: %w", ErrOrderPersistenceFailed, err)
	}

	product, getErr := s.store.Begin().Products().GetByID(ctx, conflictErr.ID)
	if getErr != nil {
		return fmt.Errorf("%w: %w", ErrOrderPersistenceFailed, errors.Join(err, getErr))
	}

	name := product.Name
	for _, line := range cart.Items {
		if line.ProductID == product.ID {
			name = line.ProductName
			break
		}
	}

	return &InsufficientStockError{
		ProductID:   product.ID,
		ProductName: name,
		Requested:   requested[product.ID],
		Available:   product.QuantityInStock,
	}
}

// ListOrders returns one page of the buyer's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, buyerEmail string, pageIndex, pageSize int) (Page[OrderDTO], error) {
	if strings.TrimSpace(buyerEmail) == "" {
		return Page[OrderDTO]{}, fmt.Errorf("buyerEmail is empty")
	}

	sp := spec.OrdersForBuyer(buyerEmail, pageIndex, pageSize)
	orders := s.store.Begin().Orders()

	count, err := orders.Count(ctx, sp)
	if err != nil {
		return Page[OrderDTO]{}, fmt.Errorf("orders.Count: %w", err)
	}

	data, err := orders.List(ctx, sp)
	if err != nil {
		return Page[OrderDTO]{}, fmt.Errorf("orders.List: %w", err)
	}

	return Page[OrderDTO]{
		PageIndex: sp.PageIndex(),
		PageSize:  int(sp.Take()),
		Count:     count,
		Data:      ToOrderDTOs(data),
	}, nil
}

func (s *OrderService) GetOrder(ctx context.Context, buyerEmail string, id int64) (OrderDTO, error) {
	if strings.TrimSpace(buyerEmail) == "" {
		return OrderDTO{}, fmt.Errorf("buyerEmail is empty")
	}

	order, err := s.store.Begin().Orders().GetOne(ctx, spec.OrderForBuyer(buyerEmail, id))
	if errors.Is(err, port.ErrNotFound) {
		return OrderDTO{}, fmt.Errorf("%w: order[%d]", ErrOrderNotFound, id)
	}
	if err != nil {
		return OrderDTO{}, fmt.Errorf("orders.GetOne: %w", err)
	}

	return ToOrderDTO(order), nil
}

func (s *OrderService) DeliveryMethods(ctx context.Context) ([]domain.DeliveryMethod, error) {
	methods, err := s.store.Begin().DeliveryMethods().List(ctx, spec.DeliveryMethodsByPrice())
	if err != nil {
		return nil, fmt.Errorf("deliveryMethods.List: %w", err)
	}

	return methods, nil
}
