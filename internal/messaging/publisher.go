package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const OrdersExchange = "orders_topic"

// connection and channel are the parts of *amqp091.Connection and
// *amqp091.Channel the publisher uses.
type connection interface {
	IsClosed() bool
	Close() error
}

type channel interface {
	IsClosed() bool
	Close() error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Publisher publishes order events to RabbitMQ and reconnects when the
// connection or its channel drops.
type Publisher struct {
	logger *zap.Logger
	dial   func() (connection, channel, error)

	mu      sync.Mutex
	conn    connection
	channel channel
}

// NewPublisher dials url and declares the orders exchange.
func NewPublisher(url string, log *zap.Logger) (*Publisher, error) {
	p := &Publisher{
		logger: log,
		dial:   func() (connection, channel, error) { return dialExchange(url) },
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect establishes connection to RabbitMQ with retry logic
func (p *Publisher) connect() error {
	maxRetries := 5
	var err error

	for i := 0; i < maxRetries; i++ {
		err = p.redial()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			waitTime := time.Duration(i+1) * 2 * time.Second
			p.logger.Warn("rabbitmq connection failed, retrying",
				zap.Duration("wait", waitTime),
				zap.Error(err))
			time.Sleep(waitTime)
		}
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

func dialExchange(url string) (connection, channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	err = ch.ExchangeDeclare(
		OrdersExchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare %s exchange: %w", OrdersExchange, err)
	}
	return conn, ch, nil
}

// usable is false once the broker has closed either the connection or the
// channel. A channel exception closes only the channel.
func (p *Publisher) usable() bool {
	return p.conn != nil && !p.conn.IsClosed() && p.channel != nil && !p.channel.IsClosed()
}

// redial releases what is left of the previous connection and opens a new one.
// Callers hold mu, except connect during construction.
func (p *Publisher) redial() error {
	p.release()
	conn, ch, err := p.dial()
	if err != nil {
		return err
	}
	p.conn = conn
	p.channel = ch
	return nil
}

func (p *Publisher) release() error {
	var err error
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		err = p.conn.Close()
		p.conn = nil
	}
	return err
}

func (p *Publisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.usable() {
		p.logger.Warn("rabbitmq channel closed, reconnecting")
		if err := p.redial(); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		OrdersExchange,
		event.RoutingKey(),
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    event.OccurredAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("order event published",
		zap.String("routing_key", event.RoutingKey()),
		zap.Uint("order_id", event.OrderID),
		zap.Int("message_size", len(body)))
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.release()
}
