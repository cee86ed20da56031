package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/viesti/telia-gateway/internal/telia"
	"go.uber.org/zap"
)

var _ telia.RetryScheduler = (*TimerScheduler)(nil)

// TimerScheduler runs deferred retries with in-process timers. It is the
// fallback when no message broker is configured; scheduled retries are lost
// on restart.
type TimerScheduler struct {
	handler func(ctx context.Context, task telia.RetryTask) error
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	timers map[*time.Timer]struct{}
	closed bool
}

func NewTimerScheduler(handler func(ctx context.Context, task telia.RetryTask) error, logger *zap.Logger) (*TimerScheduler, error) {
	if handler == nil {
		return nil, fmt.Errorf("retry handler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TimerScheduler{
		handler: handler,
		timeout: time.Minute,
		logger:  logger,
		timers:  make(map[*time.Timer]struct{}),
	}, nil
}

func (s *TimerScheduler) Schedule(_ context.Context, task telia.RetryTask, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("scheduler is closed")
	}

	s.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()

		s.mu.Lock()
		delete(s.timers, timer)
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.handler(ctx, task); err != nil {
			s.logger.Error("retry delivery failed",
				zap.String("phoneNumber", task.PhoneNumber),
				zap.Error(err),
			)
		}
	})
	s.timers[timer] = struct{}{}

	return nil
}

// Close cancels pending timers and waits for in-flight retries to finish.
func (s *TimerScheduler) Close() error {
	s.mu.Lock()
	s.closed = true
	for timer := range s.timers {
		if timer.Stop() {
			s.wg.Done()
		}
		delete(s.timers, timer)
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
