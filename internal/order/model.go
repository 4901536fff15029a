package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusConfirmed  OrderStatus = "CONFIRMED"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
	StatusRefunded   OrderStatus = "REFUNDED"
)

var allStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
	StatusRefunded,
}

func (s OrderStatus) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus accepts any casing and surrounding whitespace.
func ParseStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// Progress is the dashboard progress percentage along the fulfilment path.
func (s OrderStatus) Progress() int {
	switch s {
	case StatusPending:
		return 10
	case StatusConfirmed:
		return 30
	case StatusProcessing:
		return 50
	case StatusShipped:
		return 75
	case StatusDelivered, StatusRefunded:
		return 100
	}
	return 0
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Source string

const (
	SourceWeb         Source = "web"
	SourceMobile      Source = "mobile"
	SourceAdmin       Source = "admin"
	SourceMarketplace Source = "marketplace"
)

type Order struct {
	ID            uint          `json:"id"`
	OrderNumber   string        `json:"order_number"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	CustomerName  string   `json:"customer_name"`
	CustomerEmail string   `json:"customer_email"`
	CouponCode    *string  `json:"coupon_code,omitempty"`
	Priority      Priority `json:"priority"`
	Source        Source   `json:"source"`
	Rating        *int     `json:"rating,omitempty"`

	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`

	TrackingNumber *string `json:"tracking_number,omitempty"`
	Carrier        *string `json:"carrier,omitempty"`

	// Version is bumped on every persisted change.
	Version int `json:"version"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	Items   []OrderItem    `json:"items"`
	Notes   []Note         `json:"notes,omitempty"`
	History []StatusChange `json:"history,omitempty"`
}

// OrderItem prices are snapshots taken at order time and never change.
type OrderItem struct {
	ID          uint            `json:"id"`
	OrderID     uint            `json:"order_id"`
	ProductID   string          `json:"product_id"`
	VariantID   *string         `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Note is append-only. A zero ID marks a note not yet persisted.
type Note struct {
	ID         uint      `json:"id"`
	OrderID    uint      `json:"order_id"`
	Content    string    `json:"content"`
	Author     string    `json:"author"`
	IsInternal bool      `json:"is_internal"`
	CreatedAt  time.Time `json:"created_at"`
}

// StatusChange is one row of the audit trail. A zero ID marks a change not yet persisted.
type StatusChange struct {
	ID      uint        `json:"id"`
	OrderID uint        `json:"order_id"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
	Actor   string      `json:"actor"`
	Reason  *string     `json:"reason,omitempty"`
	At      time.Time   `json:"at"`
}

// ComputeTotal returns subtotal + tax + shipping - discount.
func (o *Order) ComputeTotal() decimal.Decimal {
	return o.Subtotal.Add(o.Tax).Add(o.Shipping).Sub(o.Discount)
}

// ItemsSubtotal sums the line items at their snapshot prices.
func (o *Order) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range o.Items {
		sum = sum.Add(item.Subtotal())
	}
	return sum
}

// Validate enforces the monetary and structural invariants of an order.
func (o *Order) Validate() error {
	if !o.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, o.Status)
	}
	if !o.PaymentStatus.Valid() {
		return fmt.Errorf("%w: payment status %q", ErrInvalidOrder, o.PaymentStatus)
	}

	for _, amount := range []decimal.Decimal{o.Subtotal, o.Tax, o.Shipping, o.Discount} {
		if amount.IsNegative() {
			return fmt.Errorf("%w: negative amount", ErrInvalidOrder)
		}
	}

	if !o.Total.Equal(o.ComputeTotal()) {
		return fmt.Errorf("%w: total %s, expected %s", ErrTotalMismatch, o.Total, o.ComputeTotal())
	}
	if o.Total.IsNegative() {
		return fmt.Errorf("%w: discount exceeds order value", ErrInvalidOrder)
	}

	for i, item := range o.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has quantity %d", ErrInvalidOrder, i, item.Quantity)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d has negative price", ErrInvalidOrder, i)
		}
	}

	return nil
}

func (o *Order) hasTracking() bool {
	return o.TrackingNumber != nil && strings.TrimSpace(*o.TrackingNumber) != "" &&
		o.Carrier != nil && strings.TrimSpace(*o.Carrier) != ""
}
