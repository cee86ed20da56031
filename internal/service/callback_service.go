package service

import (
	"context"
	"fmt"

	"github.com/viesti/telia-gateway/internal/domain"
	"github.com/viesti/telia-gateway/internal/observability"
	"github.com/viesti/telia-gateway/internal/repository"
	"github.com/viesti/telia-gateway/internal/telia"
	"go.uber.org/zap"
)

// CallbackService reconciles carrier delivery receipts against the delivery
// ledger. It authenticates each receipt with the per-delivery callback secret
// before touching the record.
type CallbackService struct {
	deliveries repository.DeliveryRepository
	logger     *zap.Logger
	metrics    *observability.Metrics
}

func NewCallbackService(deliveries repository.DeliveryRepository, logger *zap.Logger) (*CallbackService, error) {
	if deliveries == nil {
		return nil, fmt.Errorf("delivery repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CallbackService{
		deliveries: deliveries,
		logger:     logger,
	}, nil
}

func (s *CallbackService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Apply processes one delivery receipt. Unknown delivery IDs and unparseable
// bodies both map to domain.ErrNotFound so a probing caller cannot tell a
// missing record from a rejected payload. A callback secret mismatch maps to
// domain.ErrForbidden and leaves the record untouched.
func (s *CallbackService) Apply(ctx context.Context, deliveryID string, body []byte) (*domain.Delivery, error) {
	delivery, err := s.deliveries.GetByID(ctx, deliveryID)
	if err != nil {
		s.metrics.IncCallback("not_found")
		return nil, err
	}

	notification, ok := telia.ParseDeliveryNotification(body)
	if !ok {
		s.logger.Warn("discarding unparseable delivery receipt",
			zap.String("deliveryId", deliveryID),
		)
		s.metrics.IncCallback("unparseable")
		return nil, fmt.Errorf("%w: delivery receipt could not be parsed", domain.ErrNotFound)
	}

	if notification.CallbackData != delivery.CallbackData {
		s.logger.Warn("delivery receipt rejected: callback data mismatch, possible spoofing attempt",
			zap.String("deliveryId", deliveryID),
		)
		s.metrics.IncCallback("forbidden")
		return nil, domain.ErrForbidden
	}

	status := domain.NormalizeCarrierStatus(notification.DeliveryStatus)
	if status == "" {
		// Receipt without a status is acknowledged but changes nothing.
		s.metrics.IncCallback("accepted")
		return delivery, nil
	}

	if err := s.deliveries.UpdateStatus(ctx, deliveryID, status); err != nil {
		s.metrics.IncCallback("error")
		return nil, fmt.Errorf("failed to update delivery status: %w", err)
	}
	delivery.Status = status

	s.logger.Info("delivery receipt applied",
		zap.String("deliveryId", deliveryID),
		zap.String("status", string(status)),
	)
	s.metrics.IncCallback("accepted")

	return delivery, nil
}
