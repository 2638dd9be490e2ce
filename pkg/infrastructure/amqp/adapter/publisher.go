package adapter

import (
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mateusmacedo/bus-booking/pkg/application"
)

const (
	ExchangeKind = "topic"
	// DefaultExchange receives booking lifecycle events; the routing key is the topic.
	DefaultExchange = "bookings"
)

// Publisher implements watermill's message.Publisher on top of a RabbitMQ
// topic exchange, so it can back the watermill event bus.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   application.AppLogger
	mu       sync.Mutex
}

var _ message.Publisher = (*Publisher)(nil)

func NewPublisher(url, exchange string, logger application.AppLogger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	return &Publisher{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, msg := range messages {
		headers := amqp.Table{}
		for k, v := range msg.Metadata {
			headers[k] = v
		}

		ctx := msg.Context()
		if err := p.channel.PublishWithContext(ctx, p.exchange, topic, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.UUID,
			Headers:      headers,
			Body:         msg.Payload,
		}); err != nil {
			return fmt.Errorf("publish message %s: %w", msg.UUID, err)
		}

		application.LogDebug(ctx, p.logger, "amqp message published", map[string]interface{}{
			"exchange":   p.exchange,
			"topic":      topic,
			"message_id": msg.UUID,
		})
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
