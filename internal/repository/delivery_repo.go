package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/viesti/telia-gateway/internal/domain"
	"gorm.io/gorm"
)

// DeliveryRepository is the durable ledger of outbound SMS attempts. The
// gateway and the callback receiver write to the same record from independent
// workers, so every mutation is a single conditional UPDATE rather than a
// read-modify-write cycle.
type DeliveryRepository interface {
	Create(ctx context.Context, d *domain.Delivery) error
	GetByID(ctx context.Context, id string) (*domain.Delivery, error)
	ExistsByCallbackData(ctx context.Context, callbackData string) (bool, error)
	MarkSent(ctx context.Context, id string, resourceURL string) error
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
}

type GormDeliveryRepo struct {
	db *gorm.DB
}

func NewGormDeliveryRepo(db *gorm.DB) *GormDeliveryRepo {
	return &GormDeliveryRepo{db: db}
}

func (r *GormDeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	model := deliveryModelFromDomain(d)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: callback data already in use", domain.ErrConflict)
		}
		return err
	}
	if d != nil {
		*d = *deliveryModelToDomain(model)
	}
	return nil
}

func (r *GormDeliveryRepo) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	var model DeliveryModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return deliveryModelToDomain(&model), nil
}

func (r *GormDeliveryRepo) ExistsByCallbackData(ctx context.Context, callbackData string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&DeliveryModel{}).
		Where("callback_data = ?", callbackData).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkSent records a successful carrier accept. Status and resource URL are
// written in one statement so a concurrently arriving delivery receipt cannot
// observe a half-updated record.
func (r *GormDeliveryRepo) MarkSent(ctx context.Context, id string, resourceURL string) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       domain.StatusSent,
			"resource_url": resourceURL,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormDeliveryRepo) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryModel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
