package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"sorynauth/internal/domain"
)

// BlacklistRepository reads the deny-list. Writes happen out of band
// (administrative tooling); Add exists for seeding and tests.
type BlacklistRepository interface {
	FindByKey(ctx context.Context, licenseKey string) (*domain.BlacklistEntry, error)
	Add(ctx context.Context, licenseKey, reason string) error
}

type gormBlacklistRepository struct{ db *gorm.DB }

// NewBlacklistRepository creates a blacklist repository backed by gorm.
func NewBlacklistRepository(db *gorm.DB) BlacklistRepository {
	return &gormBlacklistRepository{db: db}
}

// FindByKey returns the entry for licenseKey, or (nil, nil) when the key
// is not blacklisted.
func (r *gormBlacklistRepository) FindByKey(ctx context.Context, licenseKey string) (*domain.BlacklistEntry, error) {
	var entry domain.BlacklistEntry
	err := r.db.WithContext(ctx).
		Where("license_key = ?", licenseKey).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *gormBlacklistRepository) Add(ctx context.Context, licenseKey, reason string) error {
	return r.db.WithContext(ctx).Create(&domain.BlacklistEntry{
		LicenseKey: licenseKey,
		Reason:     reason,
	}).Error
}
