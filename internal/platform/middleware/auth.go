package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "idvgate/pkg/domain-errors"
	"idvgate/pkg/requestcontext"
)

// JWTValidator validates bearer tokens for user-facing endpoints.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims are the claims this service reads from a validated token.
type JWTClaims struct {
	UserID   string
	TenantID string
}

// RequireAuth rejects requests without a valid bearer token and records the
// authenticated user and tenant on the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access, missing token",
					"request_id", requestcontext.RequestID(ctx))
				writeUnauthorized(w, r, "missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access, invalid token",
					"error", err, "request_id", requestcontext.RequestID(ctx))
				writeUnauthorized(w, r, "invalid or expired token")
				return
			}

			ctx = requestcontext.WithUserID(ctx, claims.UserID)
			if claims.TenantID != "" {
				ctx = requestcontext.WithTenantID(ctx, claims.TenantID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, description string) {
	err := dErrors.New(dErrors.CodeUnauthorized, "unauthorized").WithDescription("%s", description)
	writeMiddlewareError(w, r, err)
}
