package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionSummary(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	used := created.Add(2 * time.Hour)

	session := Session{
		ID:         7,
		SessionID:  "sess-1",
		LicenseKey: "KEY-1",
		HardwareID: "HWID-1",
		CreatedAt:  created,
		LastUsedAt: used,
		IsActive:   true,
	}

	summary := session.Summary()
	assert.Equal(t, "sess-1", summary.SessionID)
	assert.Equal(t, "HWID-1", summary.HardwareID)
	assert.Equal(t, created, summary.CreatedAt)
	assert.Equal(t, used, summary.LastUsedAt)
}

// The summary is the wire shape clients parse; the license key must never
// appear in it.
func TestSessionSummaryJSONShape(t *testing.T) {
	session := Session{
		SessionID:  "sess-1",
		LicenseKey: "KEY-SECRET",
		HardwareID: "HWID-1",
	}
	summary := session.Summary()

	data, err := json.Marshal(summary)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))

	assert.Contains(t, fields, "sessionId")
	assert.Contains(t, fields, "hwid")
	assert.Contains(t, fields, "createdAt")
	assert.Contains(t, fields, "lastUsed")
	assert.NotContains(t, string(data), "KEY-SECRET")
}
