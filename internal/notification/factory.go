package notification

import (
	"fmt"

	"storefront-be/internal/config"
)

// New builds the notifier selected by cfg.Notifier. The returned close
// function releases broker connections and is never nil.
func New(cfg *config.Config) (Notifier, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Notifier {
	case "", config.NotifierLog:
		return NewLogNotifier(), noop, nil

	case config.NotifierKafka:
		k := NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		return k, k.Close, nil

	case config.NotifierRabbitMQ:
		r, err := NewRabbitMQNotifier(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, noop, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return r, r.Close, nil
	}

	return nil, noop, fmt.Errorf("unknown notifier %q", cfg.Notifier)
}
