package notify

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPBackend publishes notifications to an AMQP/RabbitMQ exchange.
// The connection is established lazily on first publish and re-dialled
// after it drops.
type AMQPBackend struct {
	url        string
	exchange   string
	routingKey string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// NewAMQPBackend creates an AMQP notification backend.
func NewAMQPBackend(url, exchange, routingKey string) *AMQPBackend {
	return &AMQPBackend{
		url:        url,
		exchange:   exchange,
		routingKey: routingKey,
	}
}

func (a *AMQPBackend) Name() string {
	return "amqp"
}

func (a *AMQPBackend) Publish(ctx context.Context, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("amqp backend closed")
	}
	if err := a.ensureChannel(); err != nil {
		return err
	}

	err := a.channel.PublishWithContext(ctx, a.exchange, a.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	if err != nil {
		a.reset()
		return fmt.Errorf("amqp publish to %s: %w", a.exchange, err)
	}
	return nil
}

func (a *AMQPBackend) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.reset()
	return nil
}

// ensureChannel must be called with the lock held
func (a *AMQPBackend) ensureChannel() error {
	if a.conn != nil && !a.conn.IsClosed() && a.channel != nil && !a.channel.IsClosed() {
		return nil
	}
	a.reset()

	conn, err := amqp.Dial(a.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	a.conn = conn
	a.channel = ch
	return nil
}

// reset must be called with the lock held
func (a *AMQPBackend) reset() {
	if a.channel != nil {
		a.channel.Close()
		a.channel = nil
	}
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
}
