package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"identity-service/internal/audit"
	auditdomain "identity-service/internal/audit/domain"
)

// observedPrefixes are the route groups that are audited and counted.
var observedPrefixes = []string{"/auth", "/user"}

// requestMetadata is the JSON stored in the audit entry's metadata column.
type requestMetadata struct {
	Method string `json:"method"`
	Route  string `json:"route"`
	Status int    `json:"status"`
}

// Audit records one audit entry per /auth and /user request after the handler has run.
// The outcome is derived from the response status. Recording is best effort.
func Audit(logger audit.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx, st := withRequestState(r.Context())
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			route := routeOf(r)
			if !observed(route) {
				return
			}
			status := statusOf(ww)
			ar := audit.ParseRoute(r.Method, route)
			outcome := auditdomain.OutcomeSuccess
			if status >= http.StatusBadRequest {
				outcome = auditdomain.OutcomeFailure
			}
			meta, _ := json.Marshal(requestMetadata{Method: r.Method, Route: route, Status: status})
			logger.LogEvent(ctx, st.userID, ar.Action, ar.Resource, outcome, string(meta))
		})
	}
}

// Metrics counts auth attempts by operation and outcome.
type Metrics struct {
	attempts *prometheus.CounterVec
}

// NewMetrics registers the auth counters with reg. A nil reg selects the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "identity_auth_attempts_total",
			Help: "Auth API requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}
	reg.MustRegister(m.attempts)
	return m
}

// Middleware increments the attempts counter for every /auth and /user request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := routeOf(r)
		if !observed(route) {
			return
		}
		outcome := "success"
		if statusOf(ww) >= http.StatusBadRequest {
			outcome = "failure"
		}
		m.attempts.WithLabelValues(audit.ParseRoute(r.Method, route).Action, outcome).Inc()
	})
}

// routeOf returns the matched route pattern without a trailing slash, or "" when no route matched.
func routeOf(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	p := rctx.RoutePattern()
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func observed(route string) bool {
	for _, p := range observedPrefixes {
		if route == p || strings.HasPrefix(route, p+"/") {
			return true
		}
	}
	return false
}

func statusOf(ww chimw.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}
