package order

import (
	"errors"
	"fmt"

	"storefront-be/internal/inventory"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrRefundIneligible   = errors.New("order is not eligible for refund")
	ErrTrackingRequired   = errors.New("tracking number and carrier are required to ship")
	ErrUnknownStatus      = errors.New("unknown order status")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrTotalMismatch      = errors.New("order total does not match its components")
	ErrOrderBusy          = errors.New("order is being updated by another request")
	ErrConcurrentUpdate   = errors.New("order was modified concurrently")
	ErrUnknownBulkAction  = errors.New("unknown bulk action")
	ErrEmptyNote          = errors.New("note content is empty")
	ErrDuplicateOrderCode = errors.New("order number already exists")
)

// TransitionError carries the rejected edge.
type TransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

type ErrorKind string

const (
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindRefundIneligible  ErrorKind = "refund_ineligible"
	KindNegativeStock     ErrorKind = "negative_stock"
	KindNotFound          ErrorKind = "not_found"
	KindConflict          ErrorKind = "conflict"
	KindValidation        ErrorKind = "validation"
	KindInternal          ErrorKind = "internal"
)

// KindOf classifies err for callers that report failures without inspecting them.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrTrackingRequired):
		return KindInvalidTransition
	case errors.Is(err, ErrRefundIneligible):
		return KindRefundIneligible
	case errors.Is(err, inventory.ErrNegativeStock):
		return KindNegativeStock
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, inventory.ErrStockNotFound):
		return KindNotFound
	case errors.Is(err, ErrOrderBusy), errors.Is(err, ErrConcurrentUpdate), errors.Is(err, ErrDuplicateOrderCode):
		return KindConflict
	case errors.Is(err, ErrUnknownStatus), errors.Is(err, ErrInvalidOrder),
		errors.Is(err, ErrTotalMismatch), errors.Is(err, ErrUnknownBulkAction),
		errors.Is(err, ErrEmptyNote):
		return KindValidation
	}
	return KindInternal
}
