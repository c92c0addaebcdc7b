// Package middleware holds the HTTP middleware of the API: bearer authentication, guards, client
// IP resolution, audit logging and request metrics.
package middleware

import (
	"context"

	userdomain "identity-service/internal/user/domain"
)

type contextKey struct{ name string }

var (
	userKey     = contextKey{"user"}
	clientIPKey = contextKey{"client_ip"}
	stateKey    = contextKey{"request_state"}
)

// requestState is shared between the outer observers (audit, metrics) and the inner
// authentication middleware, which runs on a derived request.
type requestState struct {
	userID string
}

func withRequestState(ctx context.Context) (context.Context, *requestState) {
	if st, ok := ctx.Value(stateKey).(*requestState); ok {
		return ctx, st
	}
	st := &requestState{}
	return context.WithValue(ctx, stateKey, st), st
}

// WithUser returns a context carrying the authenticated account.
func WithUser(ctx context.Context, u *userdomain.User) context.Context {
	if st, ok := ctx.Value(stateKey).(*requestState); ok && u != nil {
		st.userID = u.ID
	}
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the authenticated account and true if set; otherwise nil, false.
func UserFromContext(ctx context.Context) (*userdomain.User, bool) {
	u, ok := ctx.Value(userKey).(*userdomain.User)
	return u, ok && u != nil
}

// WithClientIP returns a context carrying the client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the client IP stored by RealIP, or "unknown".
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
