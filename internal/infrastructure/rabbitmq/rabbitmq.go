package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nerrad567/weddingcue-core/internal/infrastructure/config"
)

// Sentinel errors for RabbitMQ operations.
var (
	// ErrDisabled indicates RabbitMQ is turned off in config.
	ErrDisabled = errors.New("rabbitmq: disabled in configuration")

	// ErrConnectionFailed indicates dialling or opening the channel failed.
	ErrConnectionFailed = errors.New("rabbitmq: connection failed")

	// ErrPublishFailed indicates the broker refused or never received a message.
	ErrPublishFailed = errors.New("rabbitmq: publish failed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("rabbitmq: publisher closed")
)

const contentTypeJSON = "application/json"

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends timeline notifications to a durable queue so downstream
// consumers (guest SMS, vendor reminders) never miss one while offline.
//
// Messages go through the default exchange with the queue name as routing
// key. The logical routing key given to PublishJSON travels in the
// message Type, letting consumers filter without extra bindings.
//
// Thread Safety: all methods are safe for concurrent use. Publishes on the
// shared channel are serialised.
type Publisher struct {
	conn  *amqp.Connection
	ch    Channel
	queue string
	now   func() time.Time

	mu     sync.Mutex
	closed bool
}

// Connect dials the broker, opens a channel and declares the queue.
//
// The queue is durable so messages survive a broker restart. Declaring is
// idempotent; a mismatch with an existing queue's arguments fails here
// rather than on first publish.
//
// Returns:
//   - *Publisher: Ready to publish
//   - error: ErrDisabled, or ErrConnectionFailed wrapping the broker error
func Connect(cfg config.RabbitMQConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %w", ErrConnectionFailed, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: channel: %w", ErrConnectionFailed, err)
	}

	if _, err := ch.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // autoDelete
		false,     // exclusive
		false,     // noWait
		nil,       // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%w: declare %s: %w", ErrConnectionFailed, cfg.Queue, err)
	}

	p := NewPublisher(ch, cfg.Queue)
	p.conn = conn
	return p, nil
}

// NewPublisher wraps an already open channel. Connect is the usual entry
// point; this exists for callers that manage their own connection.
func NewPublisher(ch Channel, queue string) *Publisher {
	return &Publisher{
		ch:    ch,
		queue: queue,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// PublishJSON sends one persistent JSON message.
//
// Parameters:
//   - ctx: Bounds the publish; the broker confirm is not awaited
//   - routingKey: Logical key, for example "weddingcue.timer-started"
//   - body: Already encoded JSON
func (p *Publisher) PublishJSON(ctx context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	msg := amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now(),
		Type:         routingKey,
		Body:         body,
	}

	if err := p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		msg,
	); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// HealthCheck reports ErrClosed after Close or when the connection dropped.
func (p *Publisher) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || (p.conn != nil && p.conn.IsClosed()) {
		return ErrClosed
	}
	return nil
}

// Close closes the channel and the connection. Safe to call twice.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if err := p.ch.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
