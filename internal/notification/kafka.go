package notification

import (
	"context"
	"strconv"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier streams order events to a topic, keyed by order id so
// events of one order stay on one partition.
type KafkaNotifier struct {
	writer messageWriter
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaNotifier{writer: writer}
}

func (k *KafkaNotifier) Notify(ctx context.Context, msg Message) error {
	body, err := encode(msg)
	if err != nil {
		return err
	}

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(msg.OrderID), 10)),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(msg.Event)},
		},
	})
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
