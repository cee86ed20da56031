package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/viesti/telia-gateway/internal/telia"
)

var _ telia.RetryScheduler = (*RetryPublisher)(nil)

// RetryPublisher schedules deferred retries by parking them in the wait
// queue with a per-message TTL equal to the retry delay.
type RetryPublisher struct {
	client *RabbitMQ
}

func NewRetryPublisher(client *RabbitMQ) *RetryPublisher {
	return &RetryPublisher{client: client}
}

func (p *RetryPublisher) Schedule(ctx context.Context, task telia.RetryTask, delay time.Duration) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("retry publisher is not initialized")
	}
	if err := validateTask(task); err != nil {
		return fmt.Errorf("invalid retry task: %w", err)
	}
	if delay < 0 {
		delay = 0
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal retry task: %w", err)
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Expiration:   strconv.FormatInt(delay.Milliseconds(), 10),
		Body:         payload,
	}

	if err := ch.PublishWithContext(ctx, "", retryWaitQueueName, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish retry task: %w", err)
	}

	return nil
}

func (p *RetryPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
