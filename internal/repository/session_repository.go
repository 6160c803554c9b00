package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"sorynauth/internal/domain"
)

// ErrSessionNotFound is returned when no active session matches the lookup.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository persists issued sessions. Rows are deactivated, never
// deleted, so the history stays available for audit.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindActiveBySessionID(ctx context.Context, sessionID string) (*domain.Session, error)
	Touch(ctx context.Context, sessionID string) error
	Deactivate(ctx context.Context, sessionID string) (bool, error)
	DeactivateByKeyAndHardware(ctx context.Context, licenseKey, hardwareID string) (int64, error)
}

type gormSessionRepository struct{ db *gorm.DB }

// NewSessionRepository creates a session repository backed by gorm.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &gormSessionRepository{db: db}
}

func (r *gormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.LastUsedAt.IsZero() {
		s.LastUsedAt = now
	}
	s.IsActive = true
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *gormSessionRepository) FindActiveBySessionID(ctx context.Context, sessionID string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND is_active = ?", sessionID, true).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *gormSessionRepository) Touch(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("session_id = ?", sessionID).
		Update("last_used_at", time.Now().UTC()).Error
}

// Deactivate flips is_active off. Returns false when the session was
// already inactive or unknown, which lets logout stay idempotent.
func (r *gormSessionRepository) Deactivate(ctx context.Context, sessionID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("session_id = ? AND is_active = ?", sessionID, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeactivateByKeyAndHardware supersedes prior active sessions for the same
// key+hardware pair so a re-validation never leaves two active rows behind.
func (r *gormSessionRepository) DeactivateByKeyAndHardware(ctx context.Context, licenseKey, hardwareID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("license_key = ? AND hardware_id = ? AND is_active = ?", licenseKey, hardwareID, true).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
