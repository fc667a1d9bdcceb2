package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"sentra/internal/token"
	"sentra/pkg/platform/httputil"
	"sentra/pkg/requestcontext"
)

// TokenValidator validates persona bearer tokens.
type TokenValidator interface {
	Validate(tokenString string) (*token.Claims, error)
}

// RequirePersona resolves the caller's persona from a bearer token and
// injects it into the request context. It is the actor-resolution layer the
// decision engine relies on; the engine itself never sees a token.
func RequirePersona(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.Validate(raw)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithPersonaKey(ctx, claims.PersonaKey)
			ctx = requestcontext.WithActorID(ctx, claims.Subject)
			ctx = requestcontext.WithActorEmail(ctx, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
