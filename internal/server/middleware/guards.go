package middleware

import (
	"net/http"

	"identity-service/internal/apperror"
	"identity-service/internal/server/httpx"
	userdomain "identity-service/internal/user/domain"
)

// ErrForbidden is returned when the current account does not satisfy a guard.
var ErrForbidden = apperror.New(apperror.KindForbidden, "Forbidden resource")

// RequireEmailVerified admits only accounts whose email is verified. Must run after Authenticate.
func RequireEmailVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok {
			httpx.Error(w, nil, ErrUnauthorized)
			return
		}
		if !u.EmailVerified {
			httpx.Error(w, nil, ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole admits only accounts holding one of roles. Must run after Authenticate.
func RequireRole(roles ...userdomain.Role) func(http.Handler) http.Handler {
	allowed := make(map[userdomain.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				httpx.Error(w, nil, ErrUnauthorized)
				return
			}
			if !allowed[u.Role] {
				httpx.Error(w, nil, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
