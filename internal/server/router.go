package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"identity-service/internal/apperror"
	"identity-service/internal/audit"
	"identity-service/internal/devotp"
	devotphandler "identity-service/internal/devotp/handler"
	healthhandler "identity-service/internal/health/handler"
	identityhandler "identity-service/internal/identity/handler"
	"identity-service/internal/security"
	"identity-service/internal/server/httpx"
	"identity-service/internal/server/middleware"
	userhandler "identity-service/internal/user/handler"
)

var errRouteNotFound = apperror.New(apperror.KindNotFound, "Cannot find the requested route")

const msgMethodNotAllowed = "Method not allowed"

// Deps holds the collaborators of the HTTP API.
type Deps struct {
	// Auth serves the /auth routes.
	Auth identityhandler.Authenticator
	// Accounts serves the /user routes.
	Accounts userhandler.AccountService
	// Tokens validates bearer tokens on protected routes.
	Tokens *security.TokenProvider
	// Users loads the account named by a bearer token.
	Users middleware.UserLoader
	// Health backs /healthz and /readyz. If nil, only /healthz is served.
	Health *healthhandler.Checker
	// Audit records one entry per /auth and /user request. If nil, nothing is audited.
	Audit audit.AuditLogger
	// Metrics counts auth attempts. If nil, nothing is counted.
	Metrics *middleware.Metrics
	// Gatherer is exposed on /metrics. If nil, the default gatherer is used.
	Gatherer prometheus.Gatherer
	// DevOTP is the dev-only plain OTP store. If nil, /dev is not mounted.
	DevOTP devotp.Store
	// AllowedOrigins are the CORS origins (FRONTEND_URL).
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter builds the HTTP API:
//
//	/auth     login, federated login, email verification
//	/user     registration, links, passwords, phone OTP, profile, logout
//	/dev      dev OTP lookup (dev mode only)
//	/healthz, /readyz, /metrics
func NewRouter(deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   originsOrAny(deps.AllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if deps.Audit != nil {
		r.Use(middleware.Audit(deps.Audit))
	}
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Error(w, log, errRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusMethodNotAllowed, httpx.Envelope{
			HTTPResponseCode: http.StatusMethodNotAllowed,
			Message:          msgMethodNotAllowed,
		})
	})

	if deps.Health != nil {
		healthhandler.NewHandler(deps.Health, log).Routes(r)
	} else {
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			httpx.Success(w, http.StatusOK, "ok", nil)
		})
	}
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	} else {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	authenticate := middleware.Authenticate(deps.Tokens, deps.Users, log)
	if deps.Auth != nil {
		r.Route("/auth", identityhandler.NewHandler(deps.Auth, log).Routes)
	}
	if deps.Accounts != nil {
		r.Route("/user", userhandler.NewHandler(deps.Accounts, log).Routes(authenticate))
	}
	if deps.DevOTP != nil {
		r.Route("/dev", devotphandler.NewHandler(deps.DevOTP).Routes)
	}

	return otelhttp.NewHandler(r, "identity-http",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}

func originsOrAny(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
