package consumption

import (
	"mise/internal/core/apperror"
)

// OrderStatus is the lifecycle state of an order as reported by the
// order service. The core only cares about it to gate ledger reversals.
type OrderStatus string

const (
	OrderOpen        OrderStatus = "Open"
	OrderPending     OrderStatus = "Pending"
	OrderStarted     OrderStatus = "Started"
	OrderDone        OrderStatus = "Done"
	OrderDontMake    OrderStatus = "Dont Make"
	OrderStartedHold OrderStatus = "Started Hold"
)

// IsValid reports whether s is a known order status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderOpen, OrderPending, OrderStarted, OrderDone, OrderDontMake, OrderStartedHold:
		return true
	}
	return false
}

// CanCancel rejects ledger reversal for orders that already entered
// preparation. Once the kitchen started, stock is spent for real and the
// running count must keep the debit.
func (s OrderStatus) CanCancel() error {
	if !s.IsValid() {
		return apperror.NewValidation("invalid order status").
			WithDetail("status", string(s))
	}

	switch s {
	case OrderOpen, OrderPending:
		return nil
	}
	return apperror.NewOrderNotCancellable(string(s))
}
