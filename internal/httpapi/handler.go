package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/notification"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/nikolayk812/storefront/internal/service"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	signatureHeader    = "Stripe-Signature"
	notificationBuffer = 16
)

type OrderService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (domain.Order, error)
	ListOrders(ctx context.Context, buyerEmail string, pageIndex, pageSize int) (service.Page[service.OrderDTO], error)
	GetOrder(ctx context.Context, buyerEmail string, id int64) (service.OrderDTO, error)
	DeliveryMethods(ctx context.Context) ([]domain.DeliveryMethod, error)
}

type CartService interface {
	GetCart(ctx context.Context, cartID string) (domain.Cart, bool, error)
	UpdateCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	DeleteCart(ctx context.Context, cartID string) (bool, error)
}

type PaymentService interface {
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error
}

type PaymentIntentService interface {
	CreateOrUpdatePaymentIntent(ctx context.Context, cartID string) (domain.Cart, error)
}

// ConnectionRegistry tracks the live notification stream of each buyer.
type ConnectionRegistry interface {
	Register(identity string, conn notification.Conn) error
	Unregister(identity, connID string) bool
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type Handler struct {
	orders      OrderService
	payments    PaymentService
	intents     PaymentIntentService
	carts       CartService
	connections ConnectionRegistry
	logger      *slog.Logger
	timeout     time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

func NewHandler(orders OrderService, payments PaymentService, intents PaymentIntentService, carts CartService,
	connections ConnectionRegistry, logger *slog.Logger, timeout time.Duration) *Handler {
	return &Handler{
		orders:      orders,
		payments:    payments,
		intents:     intents,
		carts:       carts,
		connections: connections,
		logger:      logger,
		timeout:     timeout,
		closed:      make(chan struct{}),
	}
}

// POST /api/payments/webhook
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "webhook payload is too large")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_body", "could not read webhook payload")
		return
	}

	err = h.payments.HandleWebhook(ctx, payload, r.Header.Get(signatureHeader))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, service.ErrInvalidWebhookSignature):
		respondError(w, http.StatusBadRequest, "invalid_signature", "invalid webhook signature")
	case errors.Is(err, service.ErrInvalidEventData):
		respondError(w, http.StatusBadRequest, "invalid_event", "invalid event data")
	default:
		// a 5xx makes the provider redeliver the event
		h.logger.ErrorContext(ctx, "webhook handling failed", "error", err)
		respondError(w, http.StatusInternalServerError, "webhook_error", "webhook error")
	}
}

// POST /api/payments/{cartId}
func (h *Handler) CreateOrUpdatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cartID := chi.URLParam(r, "cartId")

	cart, err := h.intents.CreateOrUpdatePaymentIntent(ctx, cartID)
	if err != nil {
		if service.IsValidation(err) {
			respondError(w, http.StatusBadRequest, "invalid_cart", "problem with your cart: "+err.Error())
			return
		}
		h.logger.ErrorContext(ctx, "payment intent failed", "cart_id", cartID, "error", err)
		if errors.Is(err, service.ErrPaymentIntentFailed) {
			respondError(w, http.StatusBadGateway, "payment_intent_failed", "payment provider rejected the request")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

// GET /api/notifications
// Streams the buyer's notifications as server-sent events until the client goes away.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	buyer := buyerFromContext(ctx)
	rc := http.NewResponseController(w)

	conn := notification.NewChanConn(notificationBuffer)
	if err := h.connections.Register(buyer, conn); err != nil {
		h.logger.ErrorContext(ctx, "notification stream not registered", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	defer func() {
		h.connections.Unregister(buyer, conn.ID())
		conn.Close()
	}()

	// the server write timeout is meant for regular requests
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.WarnContext(ctx, "notification stream write deadline not cleared", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(ctx, "notification stream cannot flush", "error", err)
		return
	}

	logger := h.logger.With("conn_id", conn.ID())
	logger.InfoContext(ctx, "notification stream opened")

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "notification stream closed")
			return
		case <-h.closed:
			logger.InfoContext(ctx, "notification stream closed by server")
			return
		case n, ok := <-conn.Notifications():
			if !ok {
				return
			}

			if err := writeEvent(w, n); err != nil {
				logger.WarnContext(ctx, "notification not written", "method", n.Method, "error", err)
				return
			}

			if err := rc.Flush(); err != nil {
				logger.WarnContext(ctx, "notification not flushed", "method", n.Method, "error", err)
				return
			}
		}
	}
}

// CloseStreams ends every open notification stream, so server shutdown does not wait on them.
func (h *Handler) CloseStreams() {
	h.closeOnce.Do(func() {
		close(h.closed)
	})
}

func writeEvent(w io.Writer, n port.Notification) error {
	data, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Method, data)

	return err
}

// GET /api/payments/delivery-methods
func (h *Handler) DeliveryMethods(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	methods, err := h.orders.DeliveryMethods(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list delivery methods failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, methods)
}

// POST /api/orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	buyer := buyerFromContext(r.Context())

	var in service.CreateOrderInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "invalid order request")
		return
	}
	in.BuyerEmail = buyer

	order, err := h.orders.CreateOrder(ctx, in)
	if err != nil {
		if service.IsValidation(err) {
			respondError(w, http.StatusBadRequest, "invalid_order", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "order_failed", "problem creating order")
		return
	}

	respondJSON(w, http.StatusOK, service.ToOrderDTO(order))
}

// GET /api/orders?pageIndex=&pageSize=
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	pageIndex, err := queryInt(r, "pageIndex")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_page", err.Error())
		return
	}

	pageSize, err := queryInt(r, "pageSize")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_page", err.Error())
		return
	}

	page, err := h.orders.ListOrders(ctx, buyerFromContext(r.Context()), pageIndex, pageSize)
	if err != nil {
		h.logger.ErrorContext(ctx, "list orders failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, page)
}

// GET /api/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be an integer")
		return
	}

	order, err := h.orders.GetOrder(ctx, buyerFromContext(r.Context()), id)
	if errors.Is(err, service.ErrOrderNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "get order failed", "order_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// GET /api/cart/{id}
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cartID := chi.URLParam(r, "id")

	cart, found, err := h.carts.GetCart(ctx, cartID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get cart failed", "cart_id", cartID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	// an unknown cart reads as a new empty one
	if !found {
		cart = domain.Cart{ID: cartID, Items: []domain.CartItem{}}
	}

	respondJSON(w, http.StatusOK, cart)
}

// POST /api/cart
func (h *Handler) UpdateCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var cart domain.Cart
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&cart); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "invalid cart")
		return
	}

	saved, err := h.carts.UpdateCart(ctx, cart)
	if errors.Is(err, service.ErrInvalidCart) {
		respondError(w, http.StatusBadRequest, "invalid_cart", err.Error())
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "update cart failed", "cart_id", cart.ID, "error", err)
		respondError(w, http.StatusBadRequest, "cart_error", "problem with cart")
		return
	}

	respondJSON(w, http.StatusOK, saved)
}

// DELETE /api/cart/{id}
func (h *Handler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	deleted, err := h.carts.DeleteCart(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.logger.ErrorContext(ctx, "delete cart failed", "error", err)
		respondError(w, http.StatusBadRequest, "cart_error", "problem deleting cart")
		return
	}

	if !deleted {
		respondError(w, http.StatusNotFound, "not_found", "cart not found")
		return
	}

	w.WriteHeader(http.StatusOK)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}

	return value, nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
