package notification

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitMQNotifier publishes to a topic exchange with routing key order.<event>.
type RabbitMQNotifier struct {
	conn     *amqp.Connection
	channel  publisher
	exchange string
}

func NewRabbitMQNotifier(url, exchange string) (*RabbitMQNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitMQNotifier{conn: conn, channel: channel, exchange: exchange}, nil
}

func (r *RabbitMQNotifier) Notify(ctx context.Context, msg Message) error {
	body, err := encode(msg)
	if err != nil {
		return err
	}

	return r.channel.PublishWithContext(ctx,
		r.exchange,
		routingKey(msg),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    msg.OccurredAt,
			Body:         body,
		})
}

func (r *RabbitMQNotifier) Close() error {
	if ch, ok := r.channel.(*amqp.Channel); ok && ch != nil {
		ch.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
