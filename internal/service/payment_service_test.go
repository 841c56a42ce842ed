package service_test

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/notification"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/nikolayk812/storefront/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkout places a 44.99 item with 5.00 delivery: a 49.99 total.
func (suite *serviceSuite) checkout(buyer string) domain.Order {
	product := suite.addProduct("44.99", 10)
	cart := suite.putCart(line{product, 1})

	order, err := suite.orders.CreateOrder(suite.T().Context(), suite.checkoutInput(cart, buyer, suite.deliveryMethod("UPS2")))
	suite.Require().NoError(err)

	return order
}

func (suite *serviceSuite) connect(buyer string) *notification.ChanConn {
	conn := notification.NewChanConn(4)
	suite.Require().NoError(suite.registry.Register(buyer, conn))

	suite.T().Cleanup(func() {
		suite.registry.Unregister(buyer, conn.ID())
		conn.Close()
	})

	return conn
}

func (suite *serviceSuite) TestHandleWebhook_Succeeded() {
	defer suite.deleteAll()

	tests := []struct {
		name       string
		amount     int64
		wantStatus domain.OrderStatus
	}{
		{
			name:       "charged amount equals total: ok",
			amount:     4999,
			wantStatus: domain.OrderStatusPaymentReceived,
		},
		{
			name:       "charged amount differs from total: mismatch",
			amount:     4500,
			wantStatus: domain.OrderStatusPaymentMismatch,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()

			buyer := gofakeit.Email()
			order := suite.checkout(buyer)
			conn := suite.connect(buyer)

			payload, header := signedEvent(webhookSecret, order.PaymentIntentID, "succeeded", tt.amount)

			err := suite.payments.HandleWebhook(ctx, payload, header)
			require.NoError(t, err)

			stored := suite.orderByIntent(order.PaymentIntentID)
			assert.Equal(t, tt.wantStatus, stored.Status)

			msg := <-conn.Notifications()
			assert.Equal(t, service.NotificationOrderComplete, msg.Method)

			dto, ok := msg.Payload.(service.OrderDTO)
			require.True(t, ok)
			assert.Equal(t, order.ID, dto.ID)
			assert.Equal(t, tt.wantStatus.String(), dto.Status)
		})
	}
}

func (suite *serviceSuite) TestHandleWebhook_DuplicateSucceeded() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	buyer := gofakeit.Email()
	order := suite.checkout(buyer)
	conn := suite.connect(buyer)

	payload, header := signedEvent(webhookSecret, order.PaymentIntentID, "succeeded", 4999)

	for range 2 {
		require.NoError(t, suite.payments.HandleWebhook(ctx, payload, header))
		assert.Equal(t, domain.OrderStatusPaymentReceived, suite.orderByIntent(order.PaymentIntentID).Status)
	}

	assert.Len(t, conn.Notifications(), 2)
}

func (suite *serviceSuite) TestHandleWebhook_SucceededWithoutConnection() {
	defer suite.deleteAll()

	t := suite.T()

	order := suite.checkout(gofakeit.Email())
	payload, header := signedEvent(webhookSecret, order.PaymentIntentID, "succeeded", 4999)

	require.NoError(t, suite.payments.HandleWebhook(t.Context(), payload, header))
	assert.Equal(t, domain.OrderStatusPaymentReceived, suite.orderByIntent(order.PaymentIntentID).Status)
}

func (suite *serviceSuite) TestHandleWebhook_FailedRestocks() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	productA := suite.addProduct("3.00", 10)
	productB := suite.addProduct("8.00", 4)
	cart := suite.putCart(line{productA, 2}, line{productB, 1})

	order, err := suite.orders.CreateOrder(ctx, suite.checkoutInput(cart, gofakeit.Email(), suite.deliveryMethod("UPS3")))
	require.NoError(t, err)

	require.Equal(t, 8, suite.stock(productA.ID))
	require.Equal(t, 3, suite.stock(productB.ID))

	payload, header := signedEvent(webhookSecret, order.PaymentIntentID, "payment_failed", 1600)

	require.NoError(t, suite.payments.HandleWebhook(ctx, payload, header))

	assert.Equal(t, domain.OrderStatusPaymentFailed, suite.orderByIntent(order.PaymentIntentID).Status)
	assert.Equal(t, 10, suite.stock(productA.ID))
	assert.Equal(t, 4, suite.stock(productB.ID))

	// redelivery must not restock twice
	require.NoError(t, suite.payments.HandleWebhook(ctx, payload, header))

	assert.Equal(t, domain.OrderStatusPaymentFailed, suite.orderByIntent(order.PaymentIntentID).Status)
	assert.Equal(t, 10, suite.stock(productA.ID))
	assert.Equal(t, 4, suite.stock(productB.ID))
}

// The cart grows and is resubmitted after the failed event read the order:
// the restock must cover what the order holds at commit time.
func (suite *serviceSuite) TestHandleWebhook_FailedAfterResubmission() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	product := suite.addProduct("6.00", 10)
	buyer := gofakeit.Email()
	method := suite.deliveryMethod("UPS3")
	cart := suite.putCart(line{product, 1})

	order, err := suite.orders.CreateOrder(ctx, suite.checkoutInput(cart, buyer, method))
	require.NoError(t, err)
	require.Equal(t, 9, suite.stock(product.ID))

	payments := suite.newPaymentService(newInterleavingStore(suite.store, func() {
		cart.Items[0].Quantity = 4
		_, err := suite.carts.SetCart(ctx, cart, time.Hour)
		suite.Require().NoError(err)

		_, err = suite.orders.CreateOrder(ctx, suite.checkoutInput(cart, buyer, method))
		suite.Require().NoError(err)
		suite.Require().Equal(6, suite.stock(product.ID))
	}))

	payload, header := signedEvent(webhookSecret, order.PaymentIntentID, "payment_failed", 800)
	require.NoError(t, payments.HandleWebhook(ctx, payload, header))

	stored := suite.orderByIntent(order.PaymentIntentID)
	assert.Equal(t, domain.OrderStatusPaymentFailed, stored.Status)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 4, stored.Items[0].Quantity)
	assert.Equal(t, 10, suite.stock(product.ID))
}

// A succeeded event is checked against the total of the order it finally applies to.
func (suite *serviceSuite) TestHandleWebhook_SucceededAfterResubmission() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	product := suite.addProduct("6.00", 10)
	buyer := gofakeit.Email()
	method := suite.deliveryMethod("UPS3")
	cart := suite.putCart(line{product, 1})

	order, err := suite.orders.CreateOrder(ctx, suite.checkoutInput(cart, buyer, method))
	require.NoError(t, err)

	payments := suite.newPaymentService(newInterleavingStore(suite.store, func() {
		cart.Items[0].Quantity = 2
		_, err := suite.carts.SetCart(ctx, cart, time.Hour)
		suite.Require().NoError(err)

		_, err = suite.orders.CreateOrder(ctx, suite.checkoutInput(cart, buyer, method))
		suite.Require().NoError(err)
	}))

	// 2 x 6.00 + 2.00 delivery
	payload, header := signedEvent(webhookSecret, order.PaymentIntentID, "succeeded", 1400)
	require.NoError(t, payments.HandleWebhook(ctx, payload, header))

	assert.Equal(t, domain.OrderStatusPaymentReceived, suite.orderByIntent(order.PaymentIntentID).Status)
	assert.Equal(t, 8, suite.stock(product.ID))
}

func (suite *serviceSuite) TestHandleWebhook_TerminalOrderIsKept() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	order := suite.checkout(gofakeit.Email())
	product := order.Items[0].ItemOrdered.ProductID

	payload, header := signedEvent(webhookSecret, order.PaymentIntentID, "succeeded", 4999)
	require.NoError(t, suite.payments.HandleWebhook(ctx, payload, header))

	payload, header = signedEvent(webhookSecret, order.PaymentIntentID, "payment_failed", 4999)
	require.NoError(t, suite.payments.HandleWebhook(ctx, payload, header))

	assert.Equal(t, domain.OrderStatusPaymentReceived, suite.orderByIntent(order.PaymentIntentID).Status)
	assert.Equal(t, 9, suite.stock(product))

	// a succeeded event never lifts a failed order
	failed := suite.checkout(gofakeit.Email())

	payload, header = signedEvent(webhookSecret, failed.PaymentIntentID, "payment_failed", 4999)
	require.NoError(t, suite.payments.HandleWebhook(ctx, payload, header))

	payload, header = signedEvent(webhookSecret, failed.PaymentIntentID, "succeeded", 4999)
	require.NoError(t, suite.payments.HandleWebhook(ctx, payload, header))

	assert.Equal(t, domain.OrderStatusPaymentFailed, suite.orderByIntent(failed.PaymentIntentID).Status)
}

func (suite *serviceSuite) TestHandleWebhook_InvalidSignature() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	order := suite.checkout(gofakeit.Email())
	product := order.Items[0].ItemOrdered.ProductID

	payload, header := signedEvent("whsec_forged", order.PaymentIntentID, "payment_failed", 0)

	err := suite.payments.HandleWebhook(ctx, payload, header)
	require.ErrorIs(t, err, service.ErrInvalidWebhookSignature)

	assert.Equal(t, domain.OrderStatusPending, suite.orderByIntent(order.PaymentIntentID).Status)
	assert.Equal(t, 9, suite.stock(product))
}

func (suite *serviceSuite) TestHandleWebhook_OrderNotFound() {
	t := suite.T()

	payload, header := signedEvent(webhookSecret, "pi_"+gofakeit.LetterN(24), "succeeded", 4999)

	err := suite.payments.HandleWebhook(t.Context(), payload, header)
	require.ErrorIs(t, err, service.ErrOrderNotFound)
}

func (suite *serviceSuite) TestHandleWebhook_StockRestorationFailed() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	order := suite.checkout(gofakeit.Email())

	_, err := suite.pool.Exec(ctx, "DELETE FROM products WHERE id = $1", order.Items[0].ItemOrdered.ProductID)
	require.NoError(t, err)

	payload, header := signedEvent(webhookSecret, order.PaymentIntentID, "payment_failed", 4999)

	err = suite.payments.HandleWebhook(ctx, payload, header)
	require.ErrorIs(t, err, service.ErrStockRestorationFailed)

	// the status change is rolled back with the failed restock
	assert.Equal(t, domain.OrderStatusPending, suite.orderByIntent(order.PaymentIntentID).Status)
}

func (suite *serviceSuite) TestReconcile_ConcurrentDuplicates() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	order := suite.checkout(gofakeit.Email())
	product := order.Items[0].ItemOrdered.ProductID

	event := port.PaymentEvent{ID: "evt_1", IntentID: order.PaymentIntentID, Status: "requires_payment_method"}

	errs := make(chan error, 5)
	for range 5 {
		go func() {
			errs <- suite.payments.Reconcile(ctx, event)
		}()
	}
	for range 5 {
		require.NoError(t, <-errs)
	}

	assert.Equal(t, domain.OrderStatusPaymentFailed, suite.orderByIntent(order.PaymentIntentID).Status)
	assert.Equal(t, 10, suite.stock(product))
}
