package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xpertseller/alertkit/svc/alerting"
)

// RoutingKeyPrefix is prepended to the event type, e.g. "alerting.attempt.recorded".
const RoutingKeyPrefix = "alerting."

var ErrNoChannel = errors.New("events: amqp channel is required")

type AMQPConfig struct {
	URL      string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE" envDefault:"alerts"`
}

func (c AMQPConfig) Enabled() bool { return c.URL != "" }

// AMQPChannel is the subset of *amqp.Channel the publisher uses.
type AMQPChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Envelope is the message body published for every event.
type Envelope struct {
	ID          string                    `json:"id"`
	Type        alerting.EventType        `json:"type"`
	OccurredAt  time.Time                 `json:"occurred_at"`
	AlertID     string                    `json:"alert_id,omitempty"`
	RecipientID string                    `json:"recipient_id,omitempty"`
	Alert       *alerting.Alert           `json:"alert,omitempty"`
	Attempt     *alerting.DeliveryAttempt `json:"attempt,omitempty"`
}

func newEnvelope(id string, e alerting.Event) Envelope {
	env := Envelope{
		ID:         id,
		Type:       e.Type,
		OccurredAt: e.OccurredAt,
		Alert:      e.Alert,
		Attempt:    e.Attempt,
	}
	switch {
	case e.Attempt != nil:
		env.AlertID = e.Attempt.AlertID
		env.RecipientID = e.Attempt.RecipientID
	case e.Alert != nil:
		env.AlertID = e.Alert.ID
		env.RecipientID = e.Alert.RecipientID
	}
	return env
}

// Publisher publishes ledger events to a topic exchange.
type Publisher struct {
	mu       sync.Mutex
	ch       AMQPChannel
	exchange string
	newID    func() string
	closers  []func() error
}

type PublisherOption func(*Publisher)

func WithIDGenerator(fn func() string) PublisherOption {
	return func(p *Publisher) {
		if fn != nil {
			p.newID = fn
		}
	}
}

func NewPublisher(ch AMQPChannel, exchange string, opts ...PublisherOption) (*Publisher, error) {
	if ch == nil {
		return nil, ErrNoChannel
	}
	p := &Publisher{ch: ch, exchange: exchange, newID: uuid.NewString}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// DialPublisher connects to RabbitMQ, declares the durable topic exchange
// and returns a publisher that owns the connection.
func DialPublisher(cfg AMQPConfig, opts ...PublisherOption) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("events: dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: declare exchange %s: %w", cfg.Exchange, err)
	}

	p, err := NewPublisher(ch, cfg.Exchange, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.closers = append(p.closers, ch.Close, conn.Close)
	return p, nil
}

func (p *Publisher) Observe(ctx context.Context, e alerting.Event) error {
	env := newEnvelope(p.newID(), e)
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", e.Type, err)
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.ID,
		CorrelationId: env.AlertID,
		Timestamp:     e.OccurredAt,
		Type:          string(e.Type),
		Body:          body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, p.exchange, RoutingKeyPrefix+string(e.Type), false, false, msg); err != nil {
		return fmt.Errorf("events: publish %s: %w", e.Type, err)
	}
	return nil
}

// Close releases the channel and connection opened by DialPublisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for _, c := range p.closers {
		if err := c(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}
