package order

import (
	"fmt"
	"time"
)

const DefaultRefundWindow = 30 * 24 * time.Hour

// DeliveryFallback decides what to measure the refund window from when a
// delivered order has no delivery timestamp.
type DeliveryFallback string

const (
	// FallbackUpdatedAt uses the last update time. Any later edit to the
	// order moves the window.
	FallbackUpdatedAt DeliveryFallback = "updated_at"
	FallbackReject    DeliveryFallback = "reject"
)

func ParseDeliveryFallback(raw string) DeliveryFallback {
	if DeliveryFallback(raw) == FallbackReject {
		return FallbackReject
	}
	return FallbackUpdatedAt
}

type RefundPolicy struct {
	Window   time.Duration
	Fallback DeliveryFallback
}

func NewRefundPolicy(window time.Duration, fallback DeliveryFallback) RefundPolicy {
	if window <= 0 {
		window = DefaultRefundWindow
	}
	if fallback == "" {
		fallback = FallbackUpdatedAt
	}
	return RefundPolicy{Window: window, Fallback: fallback}
}

func (p RefundPolicy) IsEligible(o *Order, now time.Time) bool {
	return p.Check(o, now) == nil
}

// Check returns nil or ErrRefundIneligible wrapped with the failing condition.
func (p RefundPolicy) Check(o *Order, now time.Time) error {
	if o.Status != StatusDelivered {
		return fmt.Errorf("%w: status is %s", ErrRefundIneligible, o.Status)
	}
	if o.PaymentStatus != PaymentPaid {
		return fmt.Errorf("%w: payment status is %s", ErrRefundIneligible, o.PaymentStatus)
	}

	deliveredAt, err := p.deliveredAt(o)
	if err != nil {
		return err
	}

	window := p.Window
	if window <= 0 {
		window = DefaultRefundWindow
	}
	if now.Sub(deliveredAt) > window {
		return fmt.Errorf("%w: delivered %s ago, window is %s",
			ErrRefundIneligible, now.Sub(deliveredAt).Round(time.Hour), window)
	}

	return nil
}

func (p RefundPolicy) deliveredAt(o *Order) (time.Time, error) {
	if o.DeliveredAt != nil {
		return *o.DeliveredAt, nil
	}
	if p.Fallback == FallbackReject {
		return time.Time{}, fmt.Errorf("%w: delivery time unknown", ErrRefundIneligible)
	}
	return o.UpdatedAt, nil
}
