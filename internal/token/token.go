// Package token issues and verifies the signed bearer tokens that bind a
// session id, license key and hardware id. Tokens are capabilities derived
// from a session row; callers must still confirm the session is active in
// the store before trusting one.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"sorynauth/internal/config"
)

var (
	// ErrTokenInvalid covers signature, shape and algorithm failures.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned for well-formed but expired tokens.
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the signed claim set. The HS256 signature covers every field,
// so a token cannot be edited to reference a different session, key or
// hardware id without invalidating it.
type Claims struct {
	SessionID  string `json:"sessionId"`
	LicenseKey string `json:"key"`
	HardwareID string `json:"hwid"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies session tokens with a process-wide secret.
// Rotating the secret invalidates all outstanding tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewIssuer creates a token issuer from configuration.
func NewIssuer(cfg config.TokenConfig) *Issuer {
	return &Issuer{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
	}
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a bearer token for the given session. Expiry is TTL from now;
// there is no refresh mechanism, expiry forces full re-validation.
func (i *Issuer) Issue(sessionID, licenseKey, hardwareID string) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID:  sessionID,
		LicenseKey: licenseKey,
		HardwareID: hardwareID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a raw token, returning its claims.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tok.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.SessionID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
