package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sorynauth/internal/repository"
)

func TestHealthCheck(t *testing.T) {
	db, err := repository.Open(t.TempDir() + "/health.db")
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db) })

	status := NewHealthService(db).Check(context.Background())

	assert.Equal(t, "OK", status.Status)
	assert.Equal(t, "ok", status.Database)
	assert.Equal(t, Version, status.Version)
	assert.WithinDuration(t, time.Now().UTC(), status.Timestamp, time.Minute)
}

func TestHealthCheckClosedStore(t *testing.T) {
	db, err := repository.Open(t.TempDir() + "/health.db")
	require.NoError(t, err)
	require.NoError(t, repository.Close(db))

	status := NewHealthService(db).Check(context.Background())

	assert.Equal(t, "OK", status.Status)
	assert.Equal(t, "unavailable", status.Database)
}
