package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apierrors "sorynauth/internal/errors"
	"sorynauth/internal/token"
)

// ClaimsKey is the context key under which verified token claims are stored.
const ClaimsKey contextKey = "token-claims"

// BearerAuth verifies the Authorization bearer token and stores its claims
// in the request context. It proves the token only; handlers still confirm
// the referenced session is active in the store.
func BearerAuth(issuer *token.Issuer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				apierrors.WriteError(w, apierrors.ErrTokenRequired)
				return
			}

			claims, err := issuer.Verify(raw)
			if err != nil {
				if errors.Is(err, token.ErrTokenExpired) {
					apierrors.WriteError(w, apierrors.ErrTokenExpired)
					return
				}
				apierrors.WriteError(w, apierrors.ErrTokenInvalid)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the verified claims stored by BearerAuth.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*token.Claims)
	return claims, ok
}

// bearerToken extracts the token from the Authorization header. The
// "Bearer" scheme is matched case-insensitively.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
