package domain

import "time"

// Usage log actions recorded for every service-facing operation.
const (
	ActionKeyValidation     = "key_validation"
	ActionStatusCheck       = "status_check"
	ActionLicenseActivation = "license_activation"
	ActionLogout            = "logout"
)

// Session represents one authenticated runtime instance of a validated
// key+hardware pair. Rows are never deleted; logout flips IsActive so the
// row remains for audit.
type Session struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"size:64;uniqueIndex;not null" json:"session_id"`
	LicenseKey string    `gorm:"size:128;index;not null" json:"license_key"`
	HardwareID string    `gorm:"size:128;not null" json:"hardware_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	IsActive   bool      `gorm:"index;default:true" json:"is_active"`
}

// BlacklistEntry is an explicit deny-list row. A key present here always
// fails validation regardless of upstream key-authority state.
type BlacklistEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	LicenseKey string    `gorm:"size:128;uniqueIndex;not null" json:"license_key"`
	Reason     string    `gorm:"size:512" json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// UsageLogEntry is an append-only audit record. Never mutated or deleted.
type UsageLogEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"size:64;index" json:"session_id"`
	Action    string    `gorm:"size:32;not null" json:"action"`
	IPAddress string    `gorm:"size:64" json:"ip_address"`
	UserAgent string    `gorm:"size:512" json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionSummary is the session view returned by status checks.
type SessionSummary struct {
	SessionID  string    `json:"sessionId"`
	HardwareID string    `json:"hwid"`
	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsed"`
}

// Summary converts a Session row to its external representation.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		SessionID:  s.SessionID,
		HardwareID: s.HardwareID,
		CreatedAt:  s.CreatedAt,
		LastUsedAt: s.LastUsedAt,
	}
}
