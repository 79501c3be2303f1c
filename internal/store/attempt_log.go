// Package store persists the attempt history: one row per inbound event,
// replaced in place as processing advances.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ggz/smsbridge/internal/domain"
)

// AttemptLog is the durable history of processing attempts. Upsert replaces
// any row sharing the event key, so concurrent or repeated finalizations
// for the same event converge on one row.
type AttemptLog interface {
	Upsert(ctx context.Context, record *domain.AttemptRecord) error
	GetByKey(ctx context.Context, observedAt int64) (*domain.AttemptRecord, error)
	ListAll(ctx context.Context) ([]domain.AttemptRecord, error)
	ListSince(ctx context.Context, floor int64) ([]domain.AttemptRecord, error)
	ClearAll(ctx context.Context) error
	PurgeOlderThan(ctx context.Context, cutoff int64) (int64, error)
}

type GormAttemptLog struct {
	db *gorm.DB
}

func NewGormAttemptLog(db *gorm.DB) (*GormAttemptLog, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db is required")
	}
	return &GormAttemptLog{db: db}, nil
}

func (l *GormAttemptLog) Upsert(ctx context.Context, record *domain.AttemptRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is required", domain.ErrValidation)
	}
	if err := record.Validate(); err != nil {
		return err
	}

	model := attemptModelFromDomain(record)
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "observed_at"}},
			UpdateAll: true,
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert attempt record: %w", err)
	}

	*record = *attemptModelToDomain(model)
	return nil
}

func (l *GormAttemptLog) GetByKey(ctx context.Context, observedAt int64) (*domain.AttemptRecord, error) {
	var model AttemptModel
	err := l.db.WithContext(ctx).First(&model, "observed_at = ?", observedAt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return attemptModelToDomain(&model), nil
}

func (l *GormAttemptLog) ListAll(ctx context.Context) ([]domain.AttemptRecord, error) {
	return l.list(ctx, nil)
}

func (l *GormAttemptLog) ListSince(ctx context.Context, floor int64) ([]domain.AttemptRecord, error) {
	return l.list(ctx, &floor)
}

func (l *GormAttemptLog) list(ctx context.Context, floor *int64) ([]domain.AttemptRecord, error) {
	query := l.db.WithContext(ctx).Model(&AttemptModel{})
	if floor != nil {
		query = query.Where("observed_at >= ?", *floor)
	}

	var models []AttemptModel
	if err := query.Order("observed_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]domain.AttemptRecord, 0, len(models))
	for i := range models {
		records = append(records, *attemptModelToDomain(&models[i]))
	}
	return records, nil
}

func (l *GormAttemptLog) ClearAll(ctx context.Context) error {
	return l.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&AttemptModel{}).Error
}

func (l *GormAttemptLog) PurgeOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	result := l.db.WithContext(ctx).
		Where("observed_at < ?", cutoff).
		Delete(&AttemptModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
