package store

import (
	"time"

	"github.com/ggz/smsbridge/internal/domain"
)

// AttemptModel is the persistence model for the forward_attempts table.
type AttemptModel struct {
	ObservedAt    int64                `gorm:"primaryKey;autoIncrement:false"`
	Sender        string               `gorm:"type:varchar(255);not null"`
	Body          string               `gorm:"type:text;not null"`
	Code          *string              `gorm:"type:varchar(255)"`
	Transport     domain.TransportKind `gorm:"type:varchar(10);not null;default:NONE"`
	Status        domain.Status        `gorm:"type:varchar(10);not null"`
	FailureReason *string              `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (AttemptModel) TableName() string {
	return "forward_attempts"
}

func attemptModelFromDomain(r *domain.AttemptRecord) *AttemptModel {
	if r == nil {
		return nil
	}

	return &AttemptModel{
		ObservedAt:    r.ObservedAt,
		Sender:        r.Sender,
		Body:          r.Body,
		Code:          r.Code,
		Transport:     r.Transport,
		Status:        r.Status,
		FailureReason: r.FailureReason,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func attemptModelToDomain(m *AttemptModel) *domain.AttemptRecord {
	if m == nil {
		return nil
	}

	return &domain.AttemptRecord{
		ObservedAt:    m.ObservedAt,
		Sender:        m.Sender,
		Body:          m.Body,
		Code:          m.Code,
		Transport:     m.Transport,
		Status:        m.Status,
		FailureReason: m.FailureReason,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
