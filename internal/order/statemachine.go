package order

import (
	"fmt"
	"strings"
	"time"

	"storefront-be/internal/notification"
	"storefront-be/internal/utils"
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  {}, // terminal
	StatusRefunded:   {}, // terminal
}

var events = map[OrderStatus]notification.Event{
	StatusConfirmed:  notification.EventConfirmed,
	StatusProcessing: notification.EventProcessing,
	StatusShipped:    notification.EventShipped,
	StatusDelivered:  notification.EventDelivered,
	StatusCancelled:  notification.EventCancelled,
	StatusRefunded:   notification.EventRefunded,
}

func init() {
	if err := validateTable(transitions); err != nil {
		panic(err)
	}
}

func validateTable(table map[OrderStatus][]OrderStatus) error {
	for _, s := range allStatuses {
		if _, ok := table[s]; !ok {
			return fmt.Errorf("transition table: missing status %s", s)
		}
	}
	for from, targets := range table {
		if !from.Valid() {
			return fmt.Errorf("transition table: unknown status %s", from)
		}
		for _, to := range targets {
			if !to.Valid() {
				return fmt.Errorf("transition table: unknown target %s from %s", to, from)
			}
			if to == from {
				return fmt.Errorf("transition table: self edge on %s", from)
			}
		}
	}
	return nil
}

func CanTransition(from, to OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns a copy of the legal targets from status.
func AllowedTransitions(from OrderStatus) []OrderStatus {
	allowed := transitions[from]
	out := make([]OrderStatus, len(allowed))
	copy(out, allowed)
	return out
}

func IsTerminal(s OrderStatus) bool {
	return s.Valid() && len(transitions[s]) == 0
}

type Warning string

const WarningMissingTracking Warning = "shipped without tracking number or carrier"

// TransitionContext is the caller-supplied input to a status change.
type TransitionContext struct {
	Actor          string
	Reason         string
	TrackingNumber string
	Carrier        string
}

// Restock is one stock return owed by a cancellation.
type Restock struct {
	ProductID string
	VariantID *string
	Quantity  int
}

type TransitionResult struct {
	From     OrderStatus
	To       OrderStatus
	Restocks []Restock
	Warnings []Warning
	Event    notification.Event
	At       time.Time
}

type Policy struct {
	RequireTrackingOnShip bool
}

// StateMachine applies status changes to an order. Apply checks every
// precondition before it touches the order, so a failed Apply leaves it as it was.
type StateMachine struct {
	policy Policy
	refund RefundPolicy
}

func NewStateMachine(policy Policy, refund RefundPolicy) *StateMachine {
	return &StateMachine{policy: policy, refund: refund}
}

func (sm *StateMachine) Apply(o *Order, to OrderStatus, tc TransitionContext, now time.Time) (*TransitionResult, error) {
	from := o.Status
	if !CanTransition(from, to) {
		return nil, &TransitionError{From: from, To: to}
	}

	result := &TransitionResult{From: from, To: to, Event: events[to], At: now}

	tracking := firstNonEmpty(tc.TrackingNumber, utils.PtrString(o.TrackingNumber))
	carrier := firstNonEmpty(tc.Carrier, utils.PtrString(o.Carrier))

	switch to {
	case StatusShipped:
		if tracking == "" || carrier == "" {
			if sm.policy.RequireTrackingOnShip {
				return nil, ErrTrackingRequired
			}
			result.Warnings = append(result.Warnings, WarningMissingTracking)
		}

	case StatusRefunded:
		if err := sm.refund.Check(o, now); err != nil {
			return nil, err
		}

	case StatusCancelled:
		for _, item := range o.Items {
			if item.Quantity <= 0 {
				continue
			}
			result.Restocks = append(result.Restocks, Restock{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Quantity:  item.Quantity,
			})
		}
	}

	// Preconditions hold; mutate.
	o.Status = to
	o.UpdatedAt = now

	switch to {
	case StatusShipped:
		if tracking != "" {
			o.TrackingNumber = &tracking
		}
		if carrier != "" {
			o.Carrier = &carrier
		}
		if o.ShippedAt == nil {
			o.ShippedAt = &now
		}
	case StatusDelivered:
		if o.DeliveredAt == nil {
			o.DeliveredAt = &now
		}
	case StatusRefunded:
		o.PaymentStatus = PaymentRefunded
	}

	change := StatusChange{
		OrderID: o.ID,
		From:    from,
		To:      to,
		Actor:   tc.Actor,
		At:      now,
	}
	if reason := strings.TrimSpace(tc.Reason); reason != "" {
		change.Reason = &reason
	}
	o.History = append(o.History, change)
	o.Notes = append(o.Notes, Note{
		OrderID:    o.ID,
		Content:    auditNote(from, to, tc),
		Author:     tc.Actor,
		IsInternal: true,
		CreatedAt:  now,
	})

	return result, nil
}

func auditNote(from, to OrderStatus, tc TransitionContext) string {
	text := fmt.Sprintf("Status changed from %s to %s", from, to)
	if reason := strings.TrimSpace(tc.Reason); reason != "" {
		text += ": " + reason
	}
	return text
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

