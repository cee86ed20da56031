package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/viesti/telia-gateway/internal/telia"
	"go.uber.org/zap"
)

var _ Consumer = (*RetryConsumer)(nil)

// RetryConsumer reads due retry tasks and hands them to the gateway.
type RetryConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
}

func NewRetryConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RetryConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryConsumer{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

func (c *RetryConsumer) Consume(ctx context.Context, handler TaskHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if handler == nil {
		return fmt.Errorf("task handler is required")
	}

	backoff := reconnectBackoff
	for {
		err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = reconnectBackoff
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *RetryConsumer) consumeOnce(ctx context.Context, handler TaskHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		RetryQueueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", RetryQueueName, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			if err := c.handleDelivery(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

func (c *RetryConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler TaskHandler) error {
	var task telia.RetryTask
	if err := json.Unmarshal(d.Body, &task); err != nil {
		c.logger.Warn("rejecting retry task: invalid JSON", zap.Error(err))
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid task: %w", rejectErr)
		}
		return nil
	}

	if err := validateTask(task); err != nil {
		c.logger.Warn("rejecting retry task: validation failed", zap.Error(err))
		if rejectErr := d.Reject(false); rejectErr != nil {
			return fmt.Errorf("failed to reject invalid payload: %w", rejectErr)
		}
		return nil
	}

	// A retry is a single best-effort generation. Whatever the handler
	// outcome, the task is acked and never requeued.
	if err := handler(ctx, task); err != nil {
		c.logger.Error("retry delivery failed",
			zap.String("phoneNumber", task.PhoneNumber),
			zap.Error(err),
		)
	}

	if err := d.Ack(false); err != nil {
		return fmt.Errorf("failed to ack retry task: %w", err)
	}

	return nil
}

func (c *RetryConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
