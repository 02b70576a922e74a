package amqp

import (
	"context"
	"errors"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"salone/internal/log"
)

// ErrDeliveriesClosed is returned when the broker closes the delivery channel.
var ErrDeliveriesClosed = errors.New("message channel closed")

type consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
}

// AnalysisHandler processes one analysis completed event.
type AnalysisHandler func(ctx context.Context, msg *AnalysisCompletedMessage) error

// ConsumeAnalysisCompleted feeds queued events to handler until ctx is done.
// Undecodable messages are dropped; handler failures are requeued.
func (c *Client) ConsumeAnalysisCompleted(ctx context.Context, handler AnalysisHandler) error {
	if err := c.ensureChannel(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	c.mu.Lock()
	ch, ok := c.channel.(consumer)
	c.mu.Unlock()
	if !ok {
		return errors.New("channel does not support consuming")
	}

	deliveries, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	c.logger.InfoContext(ctx, "Started consuming analysis messages", "queue", c.queueName)
	return c.drain(ctx, deliveries, handler)
}

func (c *Client) drain(ctx context.Context, deliveries <-chan amqp091.Delivery, handler AnalysisHandler) error {
	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.handle(ctx, delivery, handler)
		}
	}
}

func (c *Client) handle(ctx context.Context, delivery amqp091.Delivery, handler AnalysisHandler) {
	msg, err := AnalysisCompletedMessageFromJSON(delivery.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to unmarshal message", log.FieldError, err)
		_ = delivery.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle message",
			log.FieldError, err, log.FieldSession, msg.SessionID)
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
	c.logger.DebugContext(ctx, "Processed analysis message", log.FieldSession, msg.SessionID)
}
