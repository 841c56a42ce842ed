package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/nikolayk812/storefront/internal/service"
	"github.com/nikolayk812/storefront/internal/spec"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *serviceSuite) TestCreateOrder() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	first := suite.addProduct("10.50", 5)
	second := suite.addProduct("3.25", 2)
	method := suite.deliveryMethod("UPS2")
	buyer := gofakeit.Email()

	cart := suite.putCart(line{first, 2}, line{second, 1})

	order, err := suite.orders.CreateOrder(ctx, suite.checkoutInput(cart, buyer, method))
	require.NoError(t, err)

	assert.NotZero(t, order.ID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, cart.PaymentIntentID, order.PaymentIntentID)
	assert.Equal(t, buyer, order.BuyerEmail)
	assert.True(t, decimal.RequireFromString("24.25").Equal(order.Subtotal))
	assert.True(t, decimal.RequireFromString("29.25").Equal(order.Total().Amount))

	assert.Equal(t, 3, suite.stock(first.ID))
	assert.Equal(t, 1, suite.stock(second.ID))

	stored := suite.orderByIntent(cart.PaymentIntentID)
	assert.Equal(t, order.ID, stored.ID)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, first.Name, stored.Items[0].ItemOrdered.ProductName)
	assert.Equal(t, 2, stored.Items[0].Quantity)
	assert.Equal(t, method.ID, stored.DeliveryMethod.ID)
}

// Order items keep the price seen at checkout.
func (suite *serviceSuite) TestCreateOrder_PriceSnapshot() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	product := suite.addProduct("20.00", 5)
	cart := suite.putCart(line{product, 1})

	order, err := suite.orders.CreateOrder(ctx, suite.checkoutInput(cart, gofakeit.Email(), suite.deliveryMethod("FREE")))
	require.NoError(t, err)

	product.Price = decimal.RequireFromString("99.00")
	product.QuantityInStock = suite.stock(product.ID)
	uow := suite.store.Begin()
	uow.Products().Update(&product)
	require.NoError(t, uow.Commit(ctx))

	stored := suite.orderByIntent(order.PaymentIntentID)
	require.Len(t, stored.Items, 1)
	assert.True(t, decimal.RequireFromString("20.00").Equal(stored.Items[0].Price))
}

func (suite *serviceSuite) TestCreateOrder_Idempotent() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	product := suite.addProduct("5.00", 10)
	buyer := gofakeit.Email()
	cart := suite.putCart(line{product, 3})
	in := suite.checkoutInput(cart, buyer, suite.deliveryMethod("UPS1"))

	first, err := suite.orders.CreateOrder(ctx, in)
	require.NoError(t, err)

	second, err := suite.orders.CreateOrder(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.PublicID, second.PublicID)
	assert.Equal(t, 1, suite.countOrders(cart.PaymentIntentID))
	// stock reserved by the first submission is not taken twice
	assert.Equal(t, 7, suite.stock(product.ID))

	// the cart changed before resubmitting: only the difference moves
	cart.Items[0].Quantity = 1
	_, err = suite.carts.SetCart(ctx, cart, time.Hour)
	require.NoError(t, err)

	in.DeliveryMethodID = suite.deliveryMethod("UPS3").ID
	third, err := suite.orders.CreateOrder(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, 1, suite.countOrders(cart.PaymentIntentID))
	assert.Equal(t, 9, suite.stock(product.ID))

	stored := suite.orderByIntent(cart.PaymentIntentID)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 1, stored.Items[0].Quantity)
	assert.Equal(t, "UPS3", stored.DeliveryMethod.ShortName)
	assert.True(t, decimal.RequireFromString("5.00").Equal(stored.Subtotal))
}

func (suite *serviceSuite) TestCreateOrder_Rejected() {
	defer suite.deleteAll()

	product := suite.addProduct("7.00", 2)
	method := suite.deliveryMethod("UPS1")
	buyer := gofakeit.Email()

	tests := []struct {
		name      string
		input     func() service.CreateOrderInput
		wantError error
		wantStock *service.InsufficientStockError
	}{
		{
			name: "cart not found: error",
			input: func() service.CreateOrderInput {
				in := suite.checkoutInput(suite.putCart(line{product, 1}), buyer, method)
				in.CartID = gofakeit.UUID()
				return in
			},
			wantError: service.ErrCartNotFound,
		},
		{
			name: "cart without payment intent: error",
			input: func() service.CreateOrderInput {
				cart := suite.putCart(line{product, 1})
				cart.PaymentIntentID = ""
				_, err := suite.carts.SetCart(suite.T().Context(), cart, time.Hour)
				suite.Require().NoError(err)
				return suite.checkoutInput(cart, buyer, method)
			},
			wantError: service.ErrNoPaymentIntent,
		},
		{
			name: "empty cart: error",
			input: func() service.CreateOrderInput {
				return suite.checkoutInput(suite.putCart(), buyer, method)
			},
			wantError: service.ErrEmptyCart,
		},
		{
			name: "unknown product: error",
			input: func() service.CreateOrderInput {
				ghost := product
				ghost.ID = product.ID + 1000
				return suite.checkoutInput(suite.putCart(line{product, 1}, line{ghost, 1}), buyer, method)
			},
			wantError: service.ErrProductNotFound,
		},
		{
			name: "insufficient stock: error",
			input: func() service.CreateOrderInput {
				return suite.checkoutInput(suite.putCart(line{product, 3}), buyer, method)
			},
			wantStock: &service.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   3,
				Available:   2,
			},
		},
		{
			name: "unknown delivery method: error",
			input: func() service.CreateOrderInput {
				in := suite.checkoutInput(suite.putCart(line{product, 1}), buyer, method)
				in.DeliveryMethodID = 0
				return in
			},
			wantError: service.ErrDeliveryMethodNotFound,
		},
		{
			// 7.00 + 10.00 delivery
			name: "discount above total: error",
			input: func() service.CreateOrderInput {
				in := suite.checkoutInput(suite.putCart(line{product, 1}), buyer, method)
				in.Discount = decimal.RequireFromString("17.01")
				return in
			},
			wantError: service.ErrInvalidCheckoutState,
		},
		{
			name: "missing buyer: error",
			input: func() service.CreateOrderInput {
				return suite.checkoutInput(suite.putCart(line{product, 1}), " ", method)
			},
			wantError: service.ErrInvalidCheckoutState,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()

			_, err := suite.orders.CreateOrder(t.Context(), tt.input())
			require.Error(t, err)
			assert.True(t, service.IsValidation(err))

			if tt.wantError != nil {
				require.ErrorIs(t, err, tt.wantError)
			}

			if tt.wantStock != nil {
				var stockErr *service.InsufficientStockError
				require.ErrorAs(t, err, &stockErr)
				assert.Equal(t, tt.wantStock, stockErr)
				assert.Equal(t, "not enough stock for product "+product.Name+". Available stock: 2", err.Error())
			}

			assert.Equal(t, 2, suite.stock(product.ID))
		})
	}
}

// Concurrent checkouts of the last units never oversell.
func (suite *serviceSuite) TestCreateOrder_ConcurrentStock() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	const (
		stock    = 3
		checkout = 8
	)

	product := suite.addProduct("1.00", stock)
	method := suite.deliveryMethod("FREE")

	inputs := make([]service.CreateOrderInput, checkout)
	for i := range inputs {
		inputs[i] = suite.checkoutInput(suite.putCart(line{product, 1}), gofakeit.Email(), method)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, in := range inputs {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := suite.orders.CreateOrder(ctx, in)

			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}

		var stockErr *service.InsufficientStockError
		assert.True(t, errors.As(err, &stockErr), err)
	}

	assert.Equal(t, stock, succeeded)
	assert.Equal(t, 0, suite.stock(product.ID))
}

// A competing checkout that drains stock between the read and the commit rolls the whole order back.
func (suite *serviceSuite) TestCreateOrder_LostStockRace() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	plenty := suite.addProduct("2.00", 10)
	scarce := suite.addProduct("4.00", 5)
	cart := suite.putCart(line{plenty, 2}, line{scarce, 1})

	orders := suite.newOrderService(racingStore{
		Store:     suite.store,
		pool:      suite.pool,
		productID: scarce.ID,
	})

	_, err := orders.CreateOrder(ctx, suite.checkoutInput(cart, gofakeit.Email(), suite.deliveryMethod("UPS1")))

	var stockErr *service.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, scarce.ID, stockErr.ProductID)
	assert.Equal(t, 0, stockErr.Available)

	assert.Equal(t, 10, suite.stock(plenty.ID))
	assert.Equal(t, 0, suite.countOrders(cart.PaymentIntentID))
}

// Two resubmissions of the same checkout race: the one reading the order first commits last
// and must re-read what the other reserved instead of applying a delta against its old read.
func (suite *serviceSuite) TestCreateOrder_ConcurrentResubmission() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	product := suite.addProduct("5.00", 10)
	buyer := gofakeit.Email()
	method := suite.deliveryMethod("UPS2")
	cart := suite.putCart(line{product, 1})

	_, err := suite.orders.CreateOrder(ctx, suite.checkoutInput(cart, buyer, method))
	require.NoError(t, err)
	require.Equal(t, 9, suite.stock(product.ID))

	setQuantity := func(quantity int) {
		cart.Items[0].Quantity = quantity
		_, err := suite.carts.SetCart(ctx, cart, time.Hour)
		suite.Require().NoError(err)
	}

	setQuantity(3)

	orders := suite.newOrderService(newInterleavingStore(suite.store, func() {
		setQuantity(2)

		_, err := suite.orders.CreateOrder(ctx, suite.checkoutInput(cart, buyer, method))
		suite.Require().NoError(err)
		suite.Require().Equal(8, suite.stock(product.ID))

		setQuantity(3)
	}))

	order, err := orders.CreateOrder(ctx, suite.checkoutInput(cart, buyer, method))
	require.NoError(t, err)

	stored := suite.orderByIntent(cart.PaymentIntentID)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 3, stored.Items[0].Quantity)
	assert.Equal(t, order.Version, stored.Version)
	assert.EqualValues(t, 3, stored.Version)
	assert.Equal(t, 1, suite.countOrders(cart.PaymentIntentID))

	// stock plus what the order holds stays what it started with
	assert.Equal(t, 7, suite.stock(product.ID))
	assert.Equal(t, 10, suite.stock(product.ID)+stored.Items[0].Quantity)
}

// A payment failure lands between the read and the commit of a resubmission.
func (suite *serviceSuite) TestCreateOrder_FailedPaymentInBetween() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	product := suite.addProduct("5.00", 10)
	buyer := gofakeit.Email()
	method := suite.deliveryMethod("UPS2")
	cart := suite.putCart(line{product, 2})

	order, err := suite.orders.CreateOrder(ctx, suite.checkoutInput(cart, buyer, method))
	require.NoError(t, err)
	require.Equal(t, 8, suite.stock(product.ID))

	orders := suite.newOrderService(newInterleavingStore(suite.store, func() {
		payload, header := signedEvent(webhookSecret, order.PaymentIntentID, "payment_failed", 1500)
		suite.Require().NoError(suite.payments.HandleWebhook(ctx, payload, header))
	}))

	_, err = orders.CreateOrder(ctx, suite.checkoutInput(cart, buyer, method))
	require.ErrorIs(t, err, service.ErrInvalidCheckoutState)

	assert.Equal(t, domain.OrderStatusPaymentFailed, suite.orderByIntent(order.PaymentIntentID).Status)
	assert.Equal(t, 10, suite.stock(product.ID))
}

func (suite *serviceSuite) TestCreateOrder_OtherBuyersIntent() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	product := suite.addProduct("5.00", 10)
	owner := gofakeit.Email()
	cart := suite.putCart(line{product, 2})

	_, err := suite.orders.CreateOrder(ctx, suite.checkoutInput(cart, owner, suite.deliveryMethod("UPS1")))
	require.NoError(t, err)

	_, err = suite.orders.CreateOrder(ctx, suite.checkoutInput(cart, gofakeit.Email(), suite.deliveryMethod("FREE")))
	require.ErrorIs(t, err, service.ErrInvalidCheckoutState)

	stored := suite.orderByIntent(cart.PaymentIntentID)
	assert.Equal(t, owner, stored.BuyerEmail)
	assert.Equal(t, "UPS1", stored.DeliveryMethod.ShortName)
	assert.Equal(t, 8, suite.stock(product.ID))
}

func (suite *serviceSuite) TestCreateOrder_PersistenceFailed() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	// the subtotal overflows the order's money column
	product := suite.addProduct("1000000000000000.00", 100)
	cart := suite.putCart(line{product, 20})

	_, err := suite.orders.CreateOrder(ctx, suite.checkoutInput(cart, gofakeit.Email(), suite.deliveryMethod("FREE")))
	require.ErrorIs(t, err, service.ErrOrderPersistenceFailed)
	assert.False(t, service.IsValidation(err))

	assert.Equal(t, 100, suite.stock(product.ID))
	assert.Equal(t, 0, suite.countOrders(cart.PaymentIntentID))
}

func (suite *serviceSuite) TestCreateOrder_CancelledContext() {
	defer suite.deleteAll()

	t := suite.T()

	product := suite.addProduct("1.00", 4)
	cart := suite.putCart(line{product, 2})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := suite.orders.CreateOrder(ctx, suite.checkoutInput(cart, gofakeit.Email(), suite.deliveryMethod("FREE")))
	require.Error(t, err)

	assert.Equal(t, 4, suite.stock(product.ID))
	assert.Equal(t, 0, suite.countOrders(cart.PaymentIntentID))
}

func (suite *serviceSuite) TestListAndGetOrders() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	product := suite.addProduct("2.50", 100)
	method := suite.deliveryMethod("UPS2")
	buyer := gofakeit.Email()

	ids := make([]int64, 0, 4)
	for range 4 {
		order, err := suite.orders.CreateOrder(ctx, suite.checkoutInput(suite.putCart(line{product, 1}), buyer, method))
		require.NoError(t, err)
		ids = append(ids, order.ID)
	}

	_, err := suite.orders.CreateOrder(ctx, suite.checkoutInput(suite.putCart(line{product, 1}), gofakeit.Email(), method))
	require.NoError(t, err)

	page, err := suite.orders.ListOrders(ctx, buyer, 2, 3)
	require.NoError(t, err)

	assert.Equal(t, 2, page.PageIndex)
	assert.Equal(t, 3, page.PageSize)
	assert.Equal(t, 4, page.Count)
	require.Len(t, page.Data, 1)
	assert.Equal(t, ids[0], page.Data[0].ID)
	assert.True(t, decimal.RequireFromString("7.50").Equal(page.Data[0].Total))
	assert.Equal(t, "Pending", page.Data[0].Status)

	dto, err := suite.orders.GetOrder(ctx, buyer, ids[1])
	require.NoError(t, err)
	assert.Equal(t, ids[1], dto.ID)
	require.Len(t, dto.OrderItems, 1)
	assert.Equal(t, product.Name, dto.OrderItems[0].ProductName)

	_, err = suite.orders.GetOrder(ctx, gofakeit.Email(), ids[1])
	require.ErrorIs(t, err, service.ErrOrderNotFound)
}

// racingStore drains one product's stock right before its decrement is staged,
// as a concurrent checkout committing in between would.
type racingStore struct {
	port.Store
	pool      *pgxpool.Pool
	productID int64
}

func (s racingStore) Begin() port.UnitOfWork {
	return racingUnitOfWork{UnitOfWork: s.Store.Begin(), store: s}
}

type racingUnitOfWork struct {
	port.UnitOfWork
	store racingStore
}

func (u racingUnitOfWork) Products() port.ProductRepository {
	return racingProducts{ProductRepository: u.UnitOfWork.Products(), store: u.store}
}

type racingProducts struct {
	port.ProductRepository
	store racingStore
}

func (p racingProducts) DecrementStock(productID int64, n int) {
	if productID == p.store.productID {
		_, _ = p.store.pool.Exec(context.Background(), "UPDATE products SET quantity_in_stock = 0 WHERE id = $1", productID)
	}

	p.ProductRepository.DecrementStock(productID, n)
}

// interleavingStore commits a competing write once, right after the first order read,
// as a concurrent request committing between that read and the commit would.
type interleavingStore struct {
	port.Store
	once    *sync.Once
	between func()
}

func newInterleavingStore(store port.Store, between func()) interleavingStore {
	return interleavingStore{Store: store, once: &sync.Once{}, between: between}
}

func (s interleavingStore) Begin() port.UnitOfWork {
	return interleavingUnitOfWork{UnitOfWork: s.Store.Begin(), store: s}
}

type interleavingUnitOfWork struct {
	port.UnitOfWork
	store interleavingStore
}

func (u interleavingUnitOfWork) Orders() port.OrderRepository {
	return interleavingOrders{OrderRepository: u.UnitOfWork.Orders(), store: u.store}
}

type interleavingOrders struct {
	port.OrderRepository
	store interleavingStore
}

func (o interleavingOrders) GetOne(ctx context.Context, s *spec.Specification[domain.Order]) (domain.Order, error) {
	order, err := o.OrderRepository.GetOne(ctx, s)
	o.store.once.Do(o.store.between)

	return order, err
}
