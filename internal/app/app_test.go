package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sorynauth/internal/config"
	"sorynauth/internal/infrastructure"
)

// TestApplicationEndToEnd wires the real application against a fake
// key-authority and drives it through the HTTP router. Built once because
// the observability providers register process-wide collectors.
func TestApplicationEndToEnd(t *testing.T) {
	infrastructure.ResetLoggerForTesting()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("type") {
		case "info":
			w.Write([]byte(`{"success": true, "status": "active", "usedby": "HWID-1"}`))
		case "activate":
			w.Write([]byte(`{"success": true, "message": "activated"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer upstream.Close()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Token.Secret = "test-secret"
	cfg.Token.TTL = time.Hour
	cfg.KeyAuth.BaseURL = upstream.URL
	cfg.KeyAuth.SellerKey = "seller-key"
	cfg.Database.Path = dir + "/auth.db"
	cfg.Logging.Output = "stdout"
	require.NoError(t, cfg.Validate())

	application, err := NewWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		application.Shutdown()
		infrastructure.ResetLoggerForTesting()
	})

	router := application.Router

	do := func(method, path, body, bearer string) *httptest.ResponseRecorder {
		var req *http.Request
		if body != "" {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		} else {
			req = httptest.NewRequest(method, path, nil)
		}
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("health", func(t *testing.T) {
		rec := do(http.MethodGet, "/api/health", "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "OK", body["status"])
	})

	t.Run("metrics endpoint", func(t *testing.T) {
		rec := do(http.MethodGet, "/metrics", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown route returns json 404", func(t *testing.T) {
		rec := do(http.MethodGet, "/api/nope", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
	})

	t.Run("full session lifecycle", func(t *testing.T) {
		rec := do(http.MethodPost, "/api/validate-key", `{"key": "KEY-1", "hwid": "HWID-1"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var validated struct {
			Success   bool   `json:"success"`
			Token     string `json:"token"`
			SessionID string `json:"sessionId"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &validated))
		require.True(t, validated.Success)
		require.NotEmpty(t, validated.Token)

		rec = do(http.MethodGet, "/api/check-status", "", validated.Token)
		require.Equal(t, http.StatusOK, rec.Code)

		var status struct {
			Success bool `json:"success"`
			Session struct {
				SessionID string `json:"sessionId"`
			} `json:"session"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, validated.SessionID, status.Session.SessionID)

		rec = do(http.MethodPost, "/api/logout", "", validated.Token)
		require.Equal(t, http.StatusOK, rec.Code)

		// The token still verifies but the session is gone.
		rec = do(http.MethodGet, "/api/check-status", "", validated.Token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("validation rejected without token", func(t *testing.T) {
		rec := do(http.MethodGet, "/api/check-status", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad payload", func(t *testing.T) {
		rec := do(http.MethodPost, "/api/validate-key", `{"key": "KEY-1"}`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
