package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/viesti/telia-gateway/internal/telia"
)

const (
	// RetryQueueName is the work queue the retry consumer reads.
	RetryQueueName = "sms.retry"
	// retryWaitQueueName parks scheduled retries until their per-message TTL
	// dead-letters them into the work queue.
	retryWaitQueueName = "sms.retry.wait"
)

// TaskHandler runs one due retry task.
type TaskHandler func(ctx context.Context, task telia.RetryTask) error

// Consumer consumes due retry tasks from the work queue.
type Consumer interface {
	Consume(ctx context.Context, handler TaskHandler) error
	Close() error
}

func validateTask(task telia.RetryTask) error {
	if strings.TrimSpace(task.PhoneNumber) == "" {
		return fmt.Errorf("phoneNumber is required")
	}
	if strings.TrimSpace(task.Code) == "" {
		return fmt.Errorf("code is required")
	}
	if strings.TrimSpace(task.Tenant.SenderAddress) == "" {
		return fmt.Errorf("tenant senderAddress is required")
	}
	return nil
}
