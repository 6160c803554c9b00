package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorImplementsError(t *testing.T) {
	err := New(http.StatusForbidden, CodeKeyBanned, "Your License Has Been Banned")
	assert.Equal(t, "Your License Has Been Banned", err.Error())
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *APIError
	}{
		{
			name: "nil error",
			err:  nil,
			want: nil,
		},
		{
			name: "api error passes through",
			err:  ErrKeyExpired,
			want: ErrKeyExpired,
		},
		{
			name: "wrapped api error unwraps",
			err:  fmt.Errorf("handling request: %w", ErrHardwareMismatch),
			want: ErrHardwareMismatch,
		},
		{
			name: "unknown error stays generic",
			err:  fmt.Errorf("sqlite disk io error"),
			want: ErrInternalServer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromError(tt.err))
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrRateLimitExceeded)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.Error.ErrorCode)
	assert.Equal(t, http.StatusTooManyRequests, body.Error.StatusCode)
}

func TestKeyBlacklistedErrorCarriesReason(t *testing.T) {
	err := KeyBlacklistedError("refund abuse")

	assert.Equal(t, http.StatusForbidden, err.StatusCode)
	assert.Equal(t, CodeKeyBlacklisted, err.ErrorCode)
	assert.Equal(t, map[string]string{"reason": "refund abuse"}, err.Details)
}

func TestActivationFailedErrorDefaultMessage(t *testing.T) {
	assert.Equal(t, "Failed To Activate License, Please Contact Support",
		ActivationFailedError("").Message)
	assert.Equal(t, "no activations left",
		ActivationFailedError("no activations left").Message)
}

func TestInvalidKeyErrorDefaultMessage(t *testing.T) {
	assert.Equal(t, "Invalid key", InvalidKeyError("").Message)
	assert.Equal(t, "upstream says no", InvalidKeyError("upstream says no").Message)
}
