package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Event string

const (
	EventConfirmed  Event = "confirmed"
	EventProcessing Event = "processing"
	EventShipped    Event = "shipped"
	EventDelivered  Event = "delivered"
	EventCancelled  Event = "cancelled"
	EventRefunded   Event = "refunded"
)

// Message is the payload published for every customer-facing order event.
type Message struct {
	OrderID        uint      `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	Event          Event     `json:"event"`
	PreviousStatus string    `json:"previous_status"`
	CurrentStatus  string    `json:"current_status"`
	Actor          string    `json:"actor"`
	TrackingNumber *string   `json:"tracking_number,omitempty"`
	Carrier        *string   `json:"carrier,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Notifier hands order events to the delivery system. Delivery itself is out of scope.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

func encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}
	return body, nil
}

func routingKey(msg Message) string {
	return "order." + string(msg.Event)
}

// LogNotifier only records the event. Used in development and when no broker is configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	logger.FromCtx(ctx).Info("order notification",
		zap.Uint("order_id", msg.OrderID),
		zap.String("order_number", msg.OrderNumber),
		zap.String("event", string(msg.Event)),
		zap.String("from", msg.PreviousStatus),
		zap.String("to", msg.CurrentStatus),
	)
	return nil
}
