package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"sorynauth/internal/domain"
	apierrors "sorynauth/internal/errors"
	"sorynauth/internal/infrastructure"
	"sorynauth/internal/keyauth"
	"sorynauth/internal/repository"
	"sorynauth/internal/token"
)

// KeyAuthority is the upstream client surface the service depends on.
type KeyAuthority interface {
	KeyInfo(ctx context.Context, key string) (*keyauth.Info, error)
	Activate(ctx context.Context, key, hardwareID string) error
}

// ClientMeta carries request metadata into the usage log.
type ClientMeta struct {
	IPAddress string
	UserAgent string
}

// ValidationResult is returned to a caller whose key+hardware pair was
// accepted.
type ValidationResult struct {
	Token     string
	SessionID string
}

// AuthService answers "is this key+hardware pair allowed to run" and manages
// the sessions it issues.
type AuthService interface {
	ValidateKey(ctx context.Context, key, hardwareID string, meta ClientMeta) (*ValidationResult, error)
	CheckStatus(ctx context.Context, sessionID string, meta ClientMeta) (*domain.SessionSummary, error)
	ActivateLicense(ctx context.Context, sessionID, hardwareID string, meta ClientMeta) error
	Logout(ctx context.Context, sessionID string, meta ClientMeta) error
}

type authService struct {
	sessions  repository.SessionRepository
	blacklist repository.BlacklistRepository
	usageLog  repository.UsageLogRepository
	upstream  KeyAuthority
	tokens    *token.Issuer
	metrics   *infrastructure.RequestMetrics
	logger    *slog.Logger

	// activationLocks serializes first-activation per license key so two
	// concurrent validations cannot both observe "unused" and both activate.
	activationLocks *keyedMutex
}

// NewAuthService creates the validation service.
func NewAuthService(
	sessions repository.SessionRepository,
	blacklist repository.BlacklistRepository,
	usageLog repository.UsageLogRepository,
	upstream KeyAuthority,
	tokens *token.Issuer,
	metrics *infrastructure.RequestMetrics,
	logger *slog.Logger,
) AuthService {
	return &authService{
		sessions:        sessions,
		blacklist:       blacklist,
		usageLog:        usageLog,
		upstream:        upstream,
		tokens:          tokens,
		metrics:         metrics,
		logger:          logger.With(slog.String("service", "auth")),
		activationLocks: newKeyedMutex(),
	}
}

// ValidateKey runs the validation state machine as a linear sequence of
// fallible steps: blacklist check, upstream info fetch, hardware-binding
// check (activating unused keys), then session issuance. No step is retried;
// a caller that sees an upstream failure retries the whole request.
func (s *authService) ValidateKey(ctx context.Context, key, hardwareID string, meta ClientMeta) (*ValidationResult, error) {
	entry, err := s.blacklist.FindByKey(ctx, key)
	if err != nil {
		s.logger.ErrorContext(ctx, "Blacklist lookup failed",
			slog.String("error", err.Error()))
		s.recordOutcome(ctx, "store_error")
		return nil, apierrors.ErrStore
	}
	if entry != nil {
		s.logger.WarnContext(ctx, "Rejected blacklisted key",
			slog.String("key_prefix", maskKey(key)),
			slog.String("reason", entry.Reason))
		s.recordOutcome(ctx, "blacklisted")
		return nil, apierrors.KeyBlacklistedError(entry.Reason)
	}

	info, err := s.upstream.KeyInfo(ctx, key)
	if err != nil {
		return nil, s.failUpstream(ctx, err)
	}

	switch info.Status {
	case keyauth.StatusBanned:
		s.recordOutcome(ctx, "banned")
		return nil, apierrors.ErrKeyBanned
	case keyauth.StatusExpired:
		s.recordOutcome(ctx, "expired")
		return nil, apierrors.ErrKeyExpired
	}

	if info.Bound() && info.BoundHardwareID != hardwareID {
		s.logger.WarnContext(ctx, "Hardware mismatch",
			slog.String("key_prefix", maskKey(key)))
		s.recordOutcome(ctx, "hardware_mismatch")
		return nil, apierrors.ErrHardwareMismatch
	}

	if !info.Bound() {
		if err := s.activateUnboundKey(ctx, key, hardwareID); err != nil {
			return nil, err
		}
	}

	result, err := s.issueSession(ctx, key, hardwareID, meta)
	if err != nil {
		return nil, err
	}

	s.recordOutcome(ctx, "success")
	return result, nil
}

// activateUnboundKey binds an unused key to this hardware, holding a
// per-key lock for the observe-then-activate window. The second of two
// racing callers re-reads the binding and fails with a mismatch instead of
// double-activating.
func (s *authService) activateUnboundKey(ctx context.Context, key, hardwareID string) error {
	s.activationLocks.Lock(key)
	defer s.activationLocks.Unlock(key)

	info, err := s.upstream.KeyInfo(ctx, key)
	if err != nil {
		return s.failUpstream(ctx, err)
	}
	if info.Bound() {
		if info.BoundHardwareID == hardwareID {
			return nil
		}
		s.recordOutcome(ctx, "hardware_mismatch")
		return apierrors.ErrHardwareMismatch
	}

	if err := s.upstream.Activate(ctx, key, hardwareID); err != nil {
		var actErr *keyauth.ActivationError
		if errors.As(err, &actErr) {
			s.logger.WarnContext(ctx, "License activation failed",
				slog.String("key_prefix", maskKey(key)),
				slog.String("message", actErr.Message))
			s.recordOutcome(ctx, "activation_failed")
			return apierrors.ActivationFailedError(actErr.Message)
		}
		return s.failUpstream(ctx, err)
	}

	s.logger.InfoContext(ctx, "License bound to hardware",
		slog.String("key_prefix", maskKey(key)))
	return nil
}

// issueSession supersedes any prior active session for the pair, records
// the new session and usage log entry, and mints the bearer token.
func (s *authService) issueSession(ctx context.Context, key, hardwareID string, meta ClientMeta) (*ValidationResult, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, apierrors.ErrInternalServer
	}

	if _, err := s.sessions.DeactivateByKeyAndHardware(ctx, key, hardwareID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to supersede previous sessions",
			slog.String("error", err.Error()))
		s.recordOutcome(ctx, "store_error")
		return nil, apierrors.ErrStore
	}

	session := &domain.Session{
		SessionID:  sessionID,
		LicenseKey: key,
		HardwareID: hardwareID,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		s.logger.ErrorContext(ctx, "Failed to create session",
			slog.String("error", err.Error()))
		s.recordOutcome(ctx, "store_error")
		return nil, apierrors.ErrStore
	}

	signed, err := s.tokens.Issue(sessionID, key, hardwareID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to issue token",
			slog.String("error", err.Error()))
		return nil, apierrors.ErrInternalServer
	}

	s.logUsage(ctx, sessionID, domain.ActionKeyValidation, meta)

	s.logger.InfoContext(ctx, "Session issued",
		slog.String("session_id", sessionID),
		slog.String("key_prefix", maskKey(key)))

	return &ValidationResult{
		Token:     signed,
		SessionID: sessionID,
	}, nil
}

// CheckStatus returns the session summary and refreshes the last-used
// timestamp. Trust resides in the store: the token alone is not enough.
func (s *authService) CheckStatus(ctx context.Context, sessionID string, meta ClientMeta) (*domain.SessionSummary, error) {
	session, err := s.loadActiveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Touch(ctx, sessionID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to refresh session timestamp",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return nil, apierrors.ErrStore
	}

	s.logUsage(ctx, sessionID, domain.ActionStatusCheck, meta)

	summary := session.Summary()
	return &summary, nil
}

// ActivateLicense re-invokes upstream activation for the session's stored
// key with the hardware id supplied in the request. The token is not
// rotated.
func (s *authService) ActivateLicense(ctx context.Context, sessionID, hardwareID string, meta ClientMeta) error {
	session, err := s.loadActiveSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := s.upstream.Activate(ctx, session.LicenseKey, hardwareID); err != nil {
		var actErr *keyauth.ActivationError
		if errors.As(err, &actErr) {
			return apierrors.ActivationFailedError(actErr.Message)
		}
		return s.mapUpstreamError(ctx, err)
	}

	s.logUsage(ctx, sessionID, domain.ActionLicenseActivation, meta)

	s.logger.InfoContext(ctx, "License re-activated",
		slog.String("session_id", sessionID))
	return nil
}

// Logout deactivates the session. A second logout for the same session
// reports SessionNotFound rather than a distinct double-logout error.
func (s *authService) Logout(ctx context.Context, sessionID string, meta ClientMeta) error {
	deactivated, err := s.sessions.Deactivate(ctx, sessionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to deactivate session",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return apierrors.ErrStore
	}
	if !deactivated {
		return apierrors.ErrSessionNotFound
	}

	s.logUsage(ctx, sessionID, domain.ActionLogout, meta)

	s.logger.InfoContext(ctx, "Session logged out",
		slog.String("session_id", sessionID))
	return nil
}

func (s *authService) loadActiveSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.sessions.FindActiveBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, apierrors.ErrSessionNotFound
		}
		s.logger.ErrorContext(ctx, "Session lookup failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return nil, apierrors.ErrStore
	}
	return session, nil
}

// failUpstream maps an upstream error to its API error and records the
// validation outcome that matches the mapped result, so invalid-key
// rejections are not counted as upstream failures.
func (s *authService) failUpstream(ctx context.Context, err error) error {
	mapped := s.mapUpstreamError(ctx, err)

	var apiErr *apierrors.APIError
	if errors.As(mapped, &apiErr) && apiErr.ErrorCode == apierrors.CodeInvalidKey {
		s.recordOutcome(ctx, "invalid_key")
	} else {
		s.recordOutcome(ctx, "upstream_error")
	}
	return mapped
}

// mapUpstreamError converts key-authority client errors to API errors.
func (s *authService) mapUpstreamError(ctx context.Context, err error) error {
	var invalidErr *keyauth.InvalidKeyError
	if errors.As(err, &invalidErr) {
		return apierrors.InvalidKeyError(invalidErr.Message)
	}
	if errors.Is(err, keyauth.ErrUpstreamUnavailable) || errors.Is(err, keyauth.ErrUpstreamMalformed) {
		s.logger.ErrorContext(ctx, "Key authority unreachable or malformed",
			slog.String("error", err.Error()))
		return apierrors.ErrUpstreamUnavailable
	}
	s.logger.ErrorContext(ctx, "Unexpected key authority error",
		slog.String("error", err.Error()))
	return apierrors.ErrUpstreamUnavailable
}

// logUsage appends an audit record. The log is diagnostic only, so append
// failures are logged and swallowed rather than failing the operation.
func (s *authService) logUsage(ctx context.Context, sessionID, action string, meta ClientMeta) {
	err := s.usageLog.Append(ctx, &domain.UsageLogEntry{
		SessionID: sessionID,
		Action:    action,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to append usage log",
			slog.String("session_id", sessionID),
			slog.String("action", action),
			slog.String("error", err.Error()))
	}
}

func (s *authService) recordOutcome(ctx context.Context, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordValidation(ctx, outcome)
	}
}

// generateSessionID returns 32 random bytes hex-encoded, the session id
// format clients already store.
func generateSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// maskKey returns a loggable prefix of a license key
func maskKey(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8]
}
