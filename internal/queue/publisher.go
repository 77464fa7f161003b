package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes listing events to a durable topic exchange.
type Publisher struct {
	mu       sync.Mutex
	channel  *amqp.Channel
	exchange string
}

// NewPublisher opens a channel on connection and declares the exchange.
func NewPublisher(connection *amqp.Connection, exchange string) (*Publisher, error) {
	channel, err := connection.Channel()
	if err != nil {
		return nil, fmt.Errorf("can't open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		return nil, fmt.Errorf("can't declare exchange %s: %w", exchange, err)
	}
	return &Publisher{channel: channel, exchange: exchange}, nil
}

// Publish sends ev with its type as the routing key.  Messages are marked
// persistent.
func (p *Publisher) Publish(ctx context.Context, ev ListingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("can't marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.PublishWithContext(ctx, p.exchange, string(ev.Type), false, false, msg); err != nil {
		return fmt.Errorf("can't publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close closes the underlying channel.
func (p *Publisher) Close() error {
	return p.channel.Close()
}

// Discard drops every event.  It stands in for Publisher when no broker is
// configured.
type Discard struct{}

// Publish does nothing.
func (Discard) Publish(context.Context, ListingEvent) error { return nil }
