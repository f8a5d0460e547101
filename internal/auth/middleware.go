package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/oceangate/oceangate/internal/platform/httpx"
	"github.com/oceangate/oceangate/internal/shared"
)

// Middleware rejects requests without a valid bearer token and stores the
// caller in the request context.
func Middleware(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httpx.RespondError(w, logger, ErrMissingToken)
				return
			}
			principal, err := service.Verify(r.Context(), token)
			if err != nil {
				httpx.RespondError(w, logger, err)
				return
			}
			ctx := shared.ContextWithPrincipal(r.Context(), &principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ErrAdminOnly rejects callers without the admin role.
var ErrAdminOnly = shared.Public("Admin access required", shared.ErrForbidden)

// RequireRole allows only principals carrying role. It must run after
// Middleware.
func RequireRole(role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := shared.PrincipalFromContext(r.Context())
			if p == nil {
				httpx.RespondError(w, logger, ErrMissingToken)
				return
			}
			if p.Role != role {
				httpx.RespondError(w, logger, ErrAdminOnly)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
