package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "verilink/pkg/domain"
	"verilink/pkg/requestcontext"
)

// StaffClaims represents the claims we expect from a staff bearer token.
type StaffClaims struct {
	VerifierID id.VerifierID
	BusinessID id.BusinessID
	Role       string
}

// TokenValidator validates staff bearer tokens. Customer traffic never carries
// one; customers reach records only through opaque link tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*StaffClaims, error)
}

// RequireStaff guards verifier/admin endpoints with JWT bearer auth and
// injects the authenticated identity into the request context.
func RequireStaff(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok || token == "" {
				writeUnauthorized(w)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				writeUnauthorized(w)
				return
			}

			ctx := requestcontext.WithVerifierID(r.Context(), claims.VerifierID)
			ctx = requestcontext.WithBusinessID(ctx, claims.BusinessID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"Invalid or expired token"}`))
}
