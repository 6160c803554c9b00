package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sorynauth/internal/config"
	"sorynauth/internal/token"
)

func authTestIssuer(ttl time.Duration) *token.Issuer {
	return token.NewIssuer(config.TokenConfig{
		Secret: "test-secret",
		TTL:    ttl,
		Issuer: "soryn-auth",
	})
}

func claimsEcho(t *testing.T) (http.Handler, *token.Claims) {
	captured := &token.Claims{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		*captured = *claims
		w.WriteHeader(http.StatusOK)
	})
	return handler, captured
}

func TestBearerAuthValidToken(t *testing.T) {
	issuer := authTestIssuer(time.Hour)
	raw, err := issuer.Issue("sess-1", "KEY-1", "HWID-1")
	require.NoError(t, err)

	next, captured := claimsEcho(t)
	handler := BearerAuth(issuer)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sess-1", captured.SessionID)
	assert.Equal(t, "KEY-1", captured.LicenseKey)
}

func TestBearerAuthRejections(t *testing.T) {
	issuer := authTestIssuer(time.Hour)

	expired, err := authTestIssuer(-time.Minute).Issue("sess-1", "KEY-1", "HWID-1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{
			name:     "missing header",
			header:   "",
			wantCode: "TOKEN_INVALID",
		},
		{
			name:     "wrong scheme",
			header:   "Basic dXNlcjpwYXNz",
			wantCode: "TOKEN_INVALID",
		},
		{
			name:     "garbage token",
			header:   "Bearer not-a-token",
			wantCode: "TOKEN_INVALID",
		},
		{
			name:     "expired token",
			header:   "Bearer " + expired,
			wantCode: "TOKEN_EXPIRED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := BearerAuth(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not run")
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			var body struct {
				Error struct {
					ErrorCode string `json:"error_code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error.ErrorCode)
		})
	}
}

func TestBearerTokenCaseInsensitiveScheme(t *testing.T) {
	issuer := authTestIssuer(time.Hour)
	raw, err := issuer.Issue("sess-1", "KEY-1", "HWID-1")
	require.NoError(t, err)

	next, captured := claimsEcho(t)
	handler := BearerAuth(issuer)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sess-1", captured.SessionID)
}
