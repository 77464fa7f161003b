package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// AuditConsumer binds a durable queue to the listings exchange and appends
// every event to a moderation audit log, one line per event.
type AuditConsumer struct {
	url      string
	exchange string
	queue    string
	path     string
	logger   *zerolog.Logger
}

// NewAuditConsumer returns a consumer writing to path.
func NewAuditConsumer(url, exchange, queue, path string, logger *zerolog.Logger) *AuditConsumer {
	return &AuditConsumer{url: url, exchange: exchange, queue: queue, path: path, logger: logger}
}

// Run connects to the broker and consumes until ctx is cancelled.  Broken
// connections are re-dialled with exponential backoff capped at 30s.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("audit consumer can't dial broker")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn().Err(err).Msg("audit consumer loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("can't open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn().Err(err).Msg("audit consumer can't set QoS")
	}
	if err := ch.ExchangeDeclare(c.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("can't declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("can't declare queue: %w", err)
	}
	if err := ch.QueueBind(c.queue, "#", c.exchange, false, nil); err != nil {
		return fmt.Errorf("can't bind queue: %w", err)
	}

	msgs, err := ch.Consume(c.queue, "audit-"+uuid.NewString(), false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("can't start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.Body); err != nil {
				c.logger.Error().Err(err).Msg("audit consumer can't handle message")
				_ = d.Nack(false, false) // poison messages are dropped
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *AuditConsumer) handleMessage(body []byte) error {
	var ev ListingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("can't decode event: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("can't create log dir: %w", err)
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("can't open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatAuditLine(ev)); err != nil {
		return fmt.Errorf("can't write audit log: %w", err)
	}
	return nil
}

func formatAuditLine(ev ListingEvent) string {
	line := fmt.Sprintf("[%s] %s | listing_id=%s | user_id=%s | url=%q | status=%s",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.ListingID, ev.UserID, ev.URL, ev.Status)
	if ev.ConflictGroup != "" {
		line += " | conflict_group=" + ev.ConflictGroup
	}
	if ev.Reason != "" {
		line += fmt.Sprintf(" | reason=%q", ev.Reason)
	}
	return line + "\n"
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
