package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"identity-service/internal/apperror"
	"identity-service/internal/security"
	"identity-service/internal/server/httpx"
	userdomain "identity-service/internal/user/domain"
)

const bearerPrefix = "bearer "

// ErrUnauthorized is returned for a missing, invalid or expired bearer token, or when the
// token's account no longer exists.
var ErrUnauthorized = apperror.New(apperror.KindUnauthorized, "Unauthorized")

// UserLoader loads the account named by a token subject.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Authenticate validates the Bearer token and stores the current account in the request context.
// Requests without a valid token are rejected with 401.
func Authenticate(tokens *security.TokenProvider, users UserLoader, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				httpx.Error(w, log, ErrUnauthorized)
				return
			}
			claims, err := tokens.Validate(token)
			if err != nil {
				httpx.Error(w, log, ErrUnauthorized)
				return
			}
			u, err := users.GetByID(r.Context(), claims.UserID)
			if err != nil {
				httpx.Error(w, log, err)
				return
			}
			if u == nil {
				httpx.Error(w, log, ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// extractBearer returns the token of an "Authorization: Bearer <token>" value, or "".
func extractBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
