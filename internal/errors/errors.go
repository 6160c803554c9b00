package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError represents a single field validation failure
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Error codes for license and session operations
const (
	CodeKeyBlacklisted      = "KEY_BLACKLISTED"
	CodeInvalidKey          = "INVALID_KEY"
	CodeKeyBanned           = "KEY_BANNED"
	CodeKeyExpired          = "KEY_EXPIRED"
	CodeHardwareMismatch    = "HARDWARE_MISMATCH"
	CodeActivationFailed    = "ACTIVATION_FAILED"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeTokenInvalid        = "TOKEN_INVALID"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodeStoreError          = "STORE_ERROR"
)

// Predefined error types for common scenarios
var (
	// 400 Bad Request
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrValidationFailed = New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")

	// 401 Unauthorized
	ErrInvalidKey      = New(http.StatusUnauthorized, CodeInvalidKey, "Invalid key")
	ErrTokenInvalid    = New(http.StatusUnauthorized, CodeTokenInvalid, "Invalid token")
	ErrTokenExpired    = New(http.StatusUnauthorized, CodeTokenExpired, "Access token has expired")
	ErrTokenRequired   = New(http.StatusUnauthorized, CodeTokenInvalid, "Access token required")
	ErrSessionNotFound = New(http.StatusUnauthorized, CodeSessionNotFound, "Session not found or inactive")

	// 403 Forbidden
	ErrKeyBanned        = New(http.StatusForbidden, CodeKeyBanned, "Your License Has Been Banned")
	ErrKeyExpired       = New(http.StatusForbidden, CodeKeyExpired, "Your License Has Expired")
	ErrHardwareMismatch = New(http.StatusForbidden, CodeHardwareMismatch, "License Already Registered")

	// 404 Not Found
	ErrNotFound = New(http.StatusNotFound, "NOT_FOUND", "Endpoint not found")

	// 405 Method Not Allowed
	ErrMethodNotAllowed = New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")

	// 429 Too Many Requests
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
		"Too many requests from this IP, please try again later.")

	// 500 Internal Server Error. Store and upstream failures are logged
	// server-side with detail; the response stays generic.
	ErrInternalServer      = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrStore               = New(http.StatusInternalServerError, CodeStoreError, "Internal server error")
	ErrUpstreamUnavailable = New(http.StatusInternalServerError, CodeUpstreamUnavailable, "Authentication service unavailable")
)

// KeyBlacklistedError creates a blacklist rejection carrying the stored reason
func KeyBlacklistedError(reason string) *APIError {
	return NewWithDetails(http.StatusForbidden, CodeKeyBlacklisted, "Key is blacklisted",
		map[string]string{"reason": reason})
}

// ActivationFailedError creates an activation failure with the upstream message
func ActivationFailedError(message string) *APIError {
	if message == "" {
		message = "Failed To Activate License, Please Contact Support"
	}
	return New(http.StatusBadRequest, CodeActivationFailed, message)
}

// InvalidKeyError creates an invalid-key failure with the upstream message
func InvalidKeyError(message string) *APIError {
	if message == "" {
		message = "Invalid key"
	}
	return New(http.StatusUnauthorized, CodeInvalidKey, message)
}

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// NewValidationErrors creates a validation error from multiple field failures
func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed",
		map[string][]ValidationError{"errors": errs})
}

// ErrorResponse represents a standard error response envelope
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Error:   err,
	}
}

// Render implements the render.Renderer interface
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}

// WriteError writes an error response to the HTTP response writer.
// Used where chi/render is not available, such as middleware.
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	json.NewEncoder(w).Encode(NewErrorResponse(err))
}

// FromError maps any error to an APIError, defaulting unknown errors to a
// generic 500 so internal detail never leaks to callers.
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return ErrInternalServer
}
