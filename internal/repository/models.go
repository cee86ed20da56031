package repository

import (
	"time"

	"github.com/viesti/telia-gateway/internal/domain"
)

// DeliveryModel is the persistence model for the deliveries table.
type DeliveryModel struct {
	ID           string        `gorm:"type:uuid;primaryKey"`
	From         string        `gorm:"column:from_number;type:varchar(32);not null"`
	To           string        `gorm:"column:to_number;type:varchar(32);not null"`
	Status       domain.Status `gorm:"type:varchar(64);not null"`
	ResourceURL  *string       `gorm:"type:text"`
	CallbackData string        `gorm:"type:varchar(32);not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (DeliveryModel) TableName() string {
	return "deliveries"
}

func deliveryModelFromDomain(d *domain.Delivery) *DeliveryModel {
	if d == nil {
		return nil
	}

	return &DeliveryModel{
		ID:           d.ID,
		From:         d.From,
		To:           d.To,
		Status:       d.Status,
		ResourceURL:  d.ResourceURL,
		CallbackData: d.CallbackData,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func deliveryModelToDomain(m *DeliveryModel) *domain.Delivery {
	if m == nil {
		return nil
	}

	return &domain.Delivery{
		ID:           m.ID,
		From:         m.From,
		To:           m.To,
		Status:       m.Status,
		ResourceURL:  m.ResourceURL,
		CallbackData: m.CallbackData,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
