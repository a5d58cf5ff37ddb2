// Package queue implements the durable sell-instruction queue on RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/trust-engine/internal/config"
	"github.com/trust-engine/internal/logging"
	"github.com/trust-engine/internal/models"
)

// Handler processes one decoded sell instruction. A handler error does not
// requeue the message; consumption is at-most-once.
type Handler func(ctx context.Context, instruction *models.SellInstruction) error

// SellQueue consumes and publishes sell instructions over a single durable
// queue with manual acknowledgment.
type SellQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewSellQueue connects to the broker and declares the durable queue
func NewSellQueue(cfg *config.QueueConfig) (*SellQueue, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to message broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open broker channel: %w", err)
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set channel QoS: %w", err)
	}

	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}

	return &SellQueue{conn: conn, ch: ch, queue: cfg.Queue}, nil
}

// Publish enqueues one sell instruction
func (q *SellQueue) Publish(ctx context.Context, instruction *models.SellInstruction) error {
	body, err := json.Marshal(instruction)
	if err != nil {
		return fmt.Errorf("failed to marshal sell instruction: %w", err)
	}
	return q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Consume pulls messages until the context is cancelled, processing each to
// completion before acknowledging. Malformed or failed messages are logged
// and acknowledged anyway so they cannot pile up on the queue.
func (q *SellQueue) Consume(ctx context.Context, handler Handler) error {
	msgs, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to subscribe to queue %s: %w", q.queue, err)
	}

	logger := logging.FromContext(ctx).WithField("queue", q.queue)
	logger.Info("Sell instruction consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("queue %s delivery channel closed", q.queue)
			}

			var instruction models.SellInstruction
			if err := json.Unmarshal(msg.Body, &instruction); err != nil {
				logger.WithError(err).Error("Failed to decode sell instruction, dropping message")
				_ = msg.Ack(false)
				continue
			}
			if err := instruction.Validate(); err != nil {
				logger.WithError(err).Error("Invalid sell instruction, dropping message")
				_ = msg.Ack(false)
				continue
			}

			if err := handler(ctx, &instruction); err != nil {
				logger.WithFields(map[string]interface{}{
					"tokenAddress": instruction.TokenAddress,
					"error":        err.Error(),
				}).Error("Sell instruction processing failed")
			}
			_ = msg.Ack(false)
		}
	}
}

// Close closes the channel and the broker connection
func (q *SellQueue) Close() error {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
