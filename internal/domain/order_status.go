package domain

import (
	"errors"
	"fmt"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "Pending"
	OrderStatusPaymentReceived OrderStatus = "PaymentReceived"
	OrderStatusPaymentFailed   OrderStatus = "PaymentFailed"
	OrderStatusPaymentMismatch OrderStatus = "PaymentMismatch"
)

var ErrIllegalTransition = errors.New("illegal transition of order status")

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch status := OrderStatus(s); status {
	case OrderStatusPending, OrderStatusPaymentReceived, OrderStatusPaymentFailed, OrderStatusPaymentMismatch:
		return status, nil
	default:
		return "", fmt.Errorf("order status[%s] is not valid", s)
	}
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaymentReceived || s == OrderStatusPaymentFailed || s == OrderStatusPaymentMismatch
}

// CanTransitionTo reports whether s may move to next. Only Pending moves, and only to a terminal state.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return s == OrderStatusPending && next.IsTerminal()
}

func (s OrderStatus) String() string {
	return string(s)
}

// TransitionTo moves the order to next. Re-applying the current terminal status
// is a no-op and reports changed=false.
func (o *Order) TransitionTo(next OrderStatus) (changed bool, err error) {
	if o.Status == next && next.IsTerminal() {
		return false, nil
	}

	if !o.Status.CanTransitionTo(next) {
		return false, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.Status, next)
	}

	o.Status = next

	return true, nil
}
