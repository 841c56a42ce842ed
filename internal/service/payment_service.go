package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/nikolayk812/storefront/internal/domain"
	"github.com/nikolayk812/storefront/internal/metrics"
	"github.com/nikolayk812/storefront/internal/port"
	"github.com/nikolayk812/storefront/internal/spec"
)

type PaymentService struct {
	store    port.Store
	verifier port.PaymentVerifier
	notifier port.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewPaymentService(store port.Store, verifier port.PaymentVerifier, notifier port.Notifier, m *metrics.Metrics, logger *slog.Logger) (*PaymentService, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}

	if verifier == nil {
		return nil, fmt.Errorf("verifier is nil")
	}

	if notifier == nil {
		return nil, fmt.Errorf("notifier is nil")
	}

	if m == nil {
		return nil, fmt.Errorf("metrics is nil")
	}

	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	return &PaymentService{
		store:    store,
		verifier: verifier,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}, nil
}

// HandleWebhook verifies the raw provider payload and reconciles the order it refers to.
// Nothing is read or written before the signature checks out.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := s.verifier.Verify(payload, signatureHeader)
	switch {
	case errors.Is(err, port.ErrInvalidSignature):
		s.metrics.Reconciled(metrics.ReconcileInvalidSignature)
		s.logger.WarnContext(ctx, "webhook signature rejected", "event", "security", "error", err)
		return fmt.Errorf("%w: %w", ErrInvalidWebhookSignature, err)
	case errors.Is(err, port.ErrInvalidEventData):
		s.metrics.Reconciled(metrics.ReconcileError)
		s.logger.WarnContext(ctx, "webhook event rejected", "error", err)
		return fmt.Errorf("%w: %w", ErrInvalidEventData, err)
	case err != nil:
		s.metrics.Reconciled(metrics.ReconcileError)
		return fmt.Errorf("verifier.Verify: %w", err)
	}

	return s.Reconcile(ctx, event)
}

// Reconcile applies a verified payment event to its order. Redelivered events are tolerated.
// When the order changes between read and commit, the event is applied again to a fresh read.
func (s *PaymentService) Reconcile(ctx context.Context, event port.PaymentEvent) error {
	logger := s.logger.With("event_id", event.ID, "payment_intent_id", event.IntentID)

	if event.IntentID == "" {
		s.metrics.Reconciled(metrics.ReconcileError)
		return fmt.Errorf("%w: payment intent id is empty", ErrInvalidEventData)
	}

	var err error
	for attempt := 1; attempt <= maxConflictAttempts; attempt++ {
		err = s.reconcile(ctx, logger, event)
		if !isOrderConflict(err) {
			return err
		}

		logger.InfoContext(ctx, "order changed concurrently", "attempt", attempt)
	}

	s.metrics.Reconciled(metrics.ReconcileError)
	logger.ErrorContext(ctx, "event not applied", "error", err)

	return fmt.Errorf("%w: %w", ErrOrderContended, err)
}

func (s *PaymentService) reconcile(ctx context.Context, logger *slog.Logger, event port.PaymentEvent) error {
	uow := s.store.Begin()

	order, err := uow.Orders().GetOne(ctx, spec.OrderByPaymentIntent(event.IntentID, true))
	if errors.Is(err, port.ErrNotFound) {
		s.metrics.Reconciled(metrics.ReconcileError)
		logger.ErrorContext(ctx, "no order for payment intent")
		return fmt.Errorf("%w: payment intent %s", ErrOrderNotFound, event.IntentID)
	}
	if err != nil {
		s.metrics.Reconciled(metrics.ReconcileError)
		return fmt.Errorf("orders.GetOne: %w", err)
	}

	logger = logger.With("order_id", order.ID, "status", order.Status)

	if event.Succeeded() {
		return s.paymentSucceeded(ctx, logger, uow, order, event)
	}

	return s.paymentFailed(ctx, logger, uow, order)
}

func (s *PaymentService) paymentSucceeded(ctx context.Context, logger *slog.Logger, uow port.UnitOfWork, order domain.Order, event port.PaymentEvent) error {
	switch order.Status {
	case domain.OrderStatusPending:
	case domain.OrderStatusPaymentReceived:
		s.metrics.Reconciled(metrics.ReconcileDuplicate)
		logger.InfoContext(ctx, "duplicate succeeded event")
		s.notify(ctx, logger, order)
		return nil
	default:
		s.metrics.Reconciled(metrics.ReconcileDuplicate)
		logger.WarnContext(ctx, "succeeded event for an order already closed, ignored")
		return nil
	}

	next := domain.OrderStatusPaymentReceived
	if !amountMatches(order, event) {
		next = domain.OrderStatusPaymentMismatch
	}

	from := order.Status
	if _, err := order.TransitionTo(next); err != nil {
		return fmt.Errorf("order.TransitionTo: %w", err)
	}
	uow.Orders().TransitionStatus(&order, from)

	if err := uow.Commit(ctx); err != nil {
		return s.reconcileCommitError(ctx, logger, err)
	}

	if next == domain.OrderStatusPaymentMismatch {
		s.metrics.Reconciled(metrics.ReconcileMismatch)
		logger.WarnContext(ctx, "payment amount mismatch",
			"expected", order.Total().MinorUnits(), "charged", event.Amount, "charged_currency", event.Currency)
	} else {
		s.metrics.Reconciled(metrics.ReconcileReceived)
		logger.InfoContext(ctx, "payment received")
	}

	s.notify(ctx, logger, order)

	return nil
}

func (s *PaymentService) paymentFailed(ctx context.Context, logger *slog.Logger, uow port.UnitOfWork, order domain.Order) error {
	switch order.Status {
	case domain.OrderStatusPending:
	case domain.OrderStatusPaymentFailed:
		// already restocked
		s.metrics.Reconciled(metrics.ReconcileDuplicate)
		logger.InfoContext(ctx, "duplicate failed event")
		return nil
	default:
		s.metrics.Reconciled(metrics.ReconcileDuplicate)
		logger.WarnContext(ctx, "failed event for an order already closed, ignored")
		return nil
	}

	from := order.Status
	if _, err := order.TransitionTo(domain.OrderStatusPaymentFailed); err != nil {
		return fmt.Errorf("order.TransitionTo: %w", err)
	}

	// the status write goes first: it locks the order row and makes a concurrent duplicate lose before any restock
	uow.Orders().TransitionStatus(&order, from)

	reserved := order.ReservedQuantities()
	ids := make([]int64, 0, len(reserved))
	for id := range reserved {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		uow.Products().IncrementStock(id, reserved[id])
	}

	if err := uow.Commit(ctx); err != nil {
		return s.reconcileCommitError(ctx, logger, err)
	}

	s.metrics.Reconciled(metrics.ReconcileFailed)
	logger.InfoContext(ctx, "payment failed, stock restored", "products", len(ids))

	return nil
}

// reconcileCommitError hands a lost race on the order row back to Reconcile for a fresh read.
// A redelivered event then finds the order terminal and is counted as a duplicate.
func (s *PaymentService) reconcileCommitError(ctx context.Context, logger *slog.Logger, err error) error {
	var conflictErr *port.ConflictError
	if errors.As(err, &conflictErr) {
		switch conflictErr.Entity {
		case port.EntityOrder:
			return fmt.Errorf("uow.Commit: %w", err)
		case port.EntityProduct:
			s.metrics.Reconciled(metrics.ReconcileError)
			logger.ErrorContext(ctx, "stock restoration failed", "product_id", conflictErr.ID, "error", err)
			return fmt.Errorf("%w: product[%d]: %w", ErrStockRestorationFailed, conflictErr.ID, err)
		}
	}

	s.metrics.Reconciled(metrics.ReconcileError)
	logger.ErrorContext(ctx, "reconciliation commit failed", "error", err)

	return fmt.Errorf("uow.Commit: %w", err)
}

// amountMatches compares the charged minor units with the order total.
// A currency reported by the provider must match the order currency too.
func amountMatches(order domain.Order, event port.PaymentEvent) bool {
	if event.Currency != "" && event.Currency != order.Currency.String() {
		return false
	}

	return order.Total().MinorUnits() == event.Amount
}

func (s *PaymentService) notify(ctx context.Context, logger *slog.Logger, order domain.Order) {
	delivered, err := s.notifier.SendToRecipient(ctx, order.BuyerEmail, port.Notification{
		Method:  NotificationOrderComplete,
		Payload: ToOrderDTO(order),
	})
	if err != nil {
		logger.WarnContext(ctx, "order notification not delivered", "error", err)
	}

	s.metrics.Notified(delivered)
}
