package services

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// HealthStatus is the liveness report returned by the health endpoint.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Database  string    `json:"database"`
}

// HealthService reports process and store liveness.
type HealthService interface {
	Check(ctx context.Context) *HealthStatus
}

type healthService struct {
	db *gorm.DB
}

// NewHealthService creates a health service that pings the given store.
func NewHealthService(db *gorm.DB) HealthService {
	return &healthService{db: db}
}

// Check pings the store. A failing ping degrades the report but the
// endpoint still answers 200; the process itself is alive.
func (s *healthService) Check(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:    "OK",
		Timestamp: time.Now().UTC(),
		Version:   Version,
		Database:  "ok",
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		status.Database = "unavailable"
		return status
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		status.Database = "unavailable"
	}
	return status
}
