package repository

import (
	"context"

	"gorm.io/gorm"

	"sorynauth/internal/domain"
)

// UsageLogRepository appends audit records. The table is append-only;
// no update or delete methods exist on purpose.
type UsageLogRepository interface {
	Append(ctx context.Context, entry *domain.UsageLogEntry) error
}

type gormUsageLogRepository struct{ db *gorm.DB }

// NewUsageLogRepository creates a usage log repository backed by gorm.
func NewUsageLogRepository(db *gorm.DB) UsageLogRepository {
	return &gormUsageLogRepository{db: db}
}

func (r *gormUsageLogRepository) Append(ctx context.Context, entry *domain.UsageLogEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
