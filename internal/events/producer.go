// Package events publishes domain events to RabbitMQ for the push notification layer.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys
const (
	RoutingPinLocked = "pin.locked"
)

// Publisher is implemented by types that can publish events
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
	Close()
}

var errNoChannel = errors.New("no open amqp channel")

// EventProducer publishes JSON events to a durable topic exchange
type EventProducer struct {
	mu       sync.Mutex
	url      string
	dial     func(url string) (*amqp.Connection, error)
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

// NewEventProducer dials RabbitMQ and declares the exchange
func NewEventProducer(amqpURL, exchange string, logger *slog.Logger) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	p := &EventProducer{url: cleanURL, dial: dialAMQP, exchange: exchange, logger: logger}
	if err := p.connect(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func dialAMQP(url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
}

// Publish sends body as JSON with the given routing key. A failed publish is
// retried once on a fresh channel, redialing first if the broker dropped the
// connection.
func (p *EventProducer) Publish(ctx context.Context, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.publish(ctx, routingKey, payload); err != nil {
		p.logger.Warn("publish failed, reconnecting",
			slog.String("exchange", p.exchange),
			slog.String("routing_key", routingKey),
			slog.Any("error", err))

		if rErr := p.reconnect(); rErr != nil {
			return errors.Join(err, rErr)
		}
		if err := p.publish(ctx, routingKey, payload); err != nil {
			return fmt.Errorf("failed to publish event: %w", err)
		}
	}

	p.logger.Debug("event published",
		slog.String("exchange", p.exchange),
		slog.String("routing_key", routingKey))
	return nil
}

func (p *EventProducer) publish(ctx context.Context, routingKey string, payload []byte) error {
	if p.channel == nil {
		return errNoChannel
	}
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         payload,
		},
	)
}

// reconnect reopens the channel, or the whole connection once it is closed
func (p *EventProducer) reconnect() error {
	if p.conn == nil || p.conn.IsClosed() {
		return p.connect()
	}
	return p.openChannel()
}

func (p *EventProducer) connect() error {
	conn, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn = conn
	return p.openChannel()
}

func (p *EventProducer) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	p.channel = ch
	return nil
}

// Close closes the channel and connection
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// LogPublisher stands in when no broker is configured; events are only logged
type LogPublisher struct {
	Logger *slog.Logger
}

func (p *LogPublisher) Publish(ctx context.Context, routingKey string, body interface{}) error {
	p.Logger.InfoContext(ctx, "event not published, no broker configured",
		slog.String("routing_key", routingKey),
		slog.Any("body", body))
	return nil
}

func (p *LogPublisher) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("invalid AMQP URL: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}
