// Package http contains the HTTP transport layer: request DTOs, handlers
// and route registration. Handlers translate between the wire format and
// the service layer; no validation or session logic lives here.
package http

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sorynauth/internal/domain"
	apierrors "sorynauth/internal/errors"
	"sorynauth/internal/middleware"
	"sorynauth/internal/services"
	"sorynauth/internal/token"
)

var validate = validator.New()

// AuthHandler handles license validation and session HTTP requests.
type AuthHandler struct {
	service services.AuthService
	issuer  *token.Issuer
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(service services.AuthService, issuer *token.Issuer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		issuer:  issuer,
		logger:  logger.With(slog.String("handler", "auth")),
	}
}

// ValidateKeyRequest is the payload for POST /api/validate-key.
type ValidateKeyRequest struct {
	Key        string `json:"key" validate:"required"`
	HardwareID string `json:"hwid" validate:"required"`
}

// Bind implements the render.Binder interface.
func (v *ValidateKeyRequest) Bind(r *http.Request) error {
	return validate.Struct(v)
}

// ActivateLicenseRequest is the payload for POST /api/activate-license.
type ActivateLicenseRequest struct {
	HardwareID string `json:"hwid" validate:"required"`
}

// Bind implements the render.Binder interface.
func (a *ActivateLicenseRequest) Bind(r *http.Request) error {
	return validate.Struct(a)
}

// ValidateKeyResponse is returned when a key+hardware pair is accepted.
type ValidateKeyResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// SessionStatusResponse wraps the session summary for status checks.
type SessionStatusResponse struct {
	Success bool                   `json:"success"`
	Session *domain.SessionSummary `json:"session"`
}

// MessageResponse is the generic success envelope.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Routes returns a chi router for the auth endpoints. Session endpoints
// sit behind bearer-token authentication.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/validate-key", h.ValidateKey)

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(h.issuer))
		r.Get("/check-status", h.CheckStatus)
		r.Post("/activate-license", h.ActivateLicense)
		r.Post("/logout", h.Logout)
	})

	return r
}

// ValidateKey handles POST /api/validate-key.
func (h *AuthHandler) ValidateKey(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("auth-handler").Start(r.Context(), "auth_handler.validate_key",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/validate-key"),
		),
	)
	defer span.End()
	start := time.Now()

	req := &ValidateKeyRequest{}
	if err := render.Bind(r, req); err != nil {
		h.renderError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	result, err := h.service.ValidateKey(ctx, req.Key, req.HardwareID, clientMeta(r))
	if err != nil {
		span.SetAttributes(attribute.Bool("validation.accepted", false))
		h.renderError(w, r, apierrors.FromError(err))
		return
	}

	span.SetAttributes(attribute.Bool("validation.accepted", true))
	h.logger.InfoContext(ctx, "key validated",
		slog.String("session_id", result.SessionID),
		slog.Duration("duration", time.Since(start)),
	)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, &ValidateKeyResponse{
		Success:   true,
		Token:     result.Token,
		SessionID: result.SessionID,
		Message:   "License validated successfully",
	})
}

// CheckStatus handles GET /api/check-status.
func (h *AuthHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := middleware.ClaimsFromContext(ctx)
	if !ok {
		h.renderError(w, r, apierrors.ErrTokenRequired)
		return
	}

	summary, err := h.service.CheckStatus(ctx, claims.SessionID, clientMeta(r))
	if err != nil {
		h.renderError(w, r, apierrors.FromError(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, &SessionStatusResponse{
		Success: true,
		Session: summary,
	})
}

// ActivateLicense handles POST /api/activate-license.
func (h *AuthHandler) ActivateLicense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := middleware.ClaimsFromContext(ctx)
	if !ok {
		h.renderError(w, r, apierrors.ErrTokenRequired)
		return
	}

	req := &ActivateLicenseRequest{}
	if err := render.Bind(r, req); err != nil {
		h.renderError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.service.ActivateLicense(ctx, claims.SessionID, req.HardwareID, clientMeta(r)); err != nil {
		h.renderError(w, r, apierrors.FromError(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, &MessageResponse{
		Success: true,
		Message: "License activated successfully",
	})
}

// Logout handles POST /api/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := middleware.ClaimsFromContext(ctx)
	if !ok {
		h.renderError(w, r, apierrors.ErrTokenRequired)
		return
	}

	if err := h.service.Logout(ctx, claims.SessionID, clientMeta(r)); err != nil {
		h.renderError(w, r, apierrors.FromError(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, &MessageResponse{
		Success: true,
		Message: "Logged out successfully",
	})
}

func (h *AuthHandler) renderError(w http.ResponseWriter, r *http.Request, apiErr *apierrors.APIError) {
	if err := render.Render(w, r, apierrors.NewErrorResponse(apiErr)); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render error response",
			slog.String("error", err.Error()))
	}
}

// clientMeta captures request metadata for the usage log. RealIP runs
// before the handlers, so RemoteAddr already reflects forwarding headers.
func clientMeta(r *http.Request) services.ClientMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return services.ClientMeta{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

// NotFound answers unknown paths with the JSON error envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteError(w, apierrors.ErrNotFound)
}

// MethodNotAllowed answers known paths hit with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteError(w, apierrors.ErrMethodNotAllowed)
}
