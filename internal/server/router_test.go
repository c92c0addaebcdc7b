package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"identity-service/internal/devotp"
	healthhandler "identity-service/internal/health/handler"
	identityhandler "identity-service/internal/identity/handler"
	"identity-service/internal/identity/service"
	"identity-service/internal/security"
	"identity-service/internal/server/httpx"
	"identity-service/internal/server/middleware"
	userdomain "identity-service/internal/user/domain"
	userhandler "identity-service/internal/user/handler"
)

type stubAuth struct {
	identityhandler.Authenticator
}

func (stubAuth) Login(_ context.Context, identifier, _ string) (*service.AuthResult, error) {
	if identifier != "alice" {
		return nil, service.ErrUserNotFound
	}
	return &service.AuthResult{User: &userdomain.User{ID: "u1"}, Token: "jwt"}, nil
}

type stubAccounts struct {
	userhandler.AccountService
}

func (stubAccounts) Profile(_ context.Context, id string) (*userdomain.User, error) {
	return &userdomain.User{ID: id, UserName: "alice", Role: userdomain.RoleUser}, nil
}

type stubUsers map[string]*userdomain.User

func (s stubUsers) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	return s[id], nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type recordingAudit struct {
	mu  sync.Mutex
	ips []string
	ids []string
}

func (a *recordingAudit) LogEvent(ctx context.Context, userID, _, _, _, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, userID)
	a.ips = append(a.ips, middleware.ClientIP(ctx))
}

func newTestRouter(t *testing.T, mod func(*Deps)) (http.Handler, *security.TokenProvider) {
	t.Helper()
	tokens := security.NewTestTokenProvider()
	deps := Deps{
		Auth:     stubAuth{},
		Accounts: stubAccounts{},
		Tokens:   tokens,
		Users:    stubUsers{"u1": {ID: "u1", Role: userdomain.RoleUser}},
		Health:   healthhandler.NewChecker(stubPinger{}, nil),
		Metrics:  middleware.NewMetrics(prometheus.NewRegistry()),
		Gatherer: prometheus.NewRegistry(),
	}
	if mod != nil {
		mod(&deps)
	}
	return NewRouter(deps), tokens
}

func send(h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func envelopeOf(t *testing.T, rec *httptest.ResponseRecorder) httpx.Envelope {
	t.Helper()
	var env httpx.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestRouter_Health(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	if rec := send(h, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	if rec := send(h, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d", rec.Code)
	}

	down, _ := newTestRouter(t, func(d *Deps) {
		d.Health = healthhandler.NewChecker(stubPinger{err: errors.New("refused")}, nil)
	})
	if rec := send(down, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with db down = %d, want 503", rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	if rec := send(h, http.MethodGet, "/metrics", "", nil); rec.Code != http.StatusOK {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestRouter_NotFound(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := send(h, http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if env := envelopeOf(t, rec); env.Succeeded || env.HTTPResponseCode != http.StatusNotFound {
		t.Errorf("env = %+v", env)
	}
}

func TestRouter_AuthRoutes(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := send(h, http.MethodPost, "/auth/login", `{"email":"alice","password":"pw"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", rec.Code, rec.Body.String())
	}
	rec = send(h, http.MethodPost, "/auth/login", `{"email":"bob","password":"pw"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown user = %d, want 404", rec.Code)
	}
}

func TestRouter_ProtectedUserRoutes(t *testing.T) {
	h, tokens := newTestRouter(t, nil)
	if rec := send(h, http.MethodGet, "/user", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous profile = %d, want 401", rec.Code)
	}

	token, _, err := tokens.Issue("u1", "a@x.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	rec := send(h, http.MethodGet, "/user", "", http.Header{"Authorization": {"Bearer " + token}})
	if rec.Code != http.StatusOK {
		t.Fatalf("profile = %d: %s", rec.Code, rec.Body.String())
	}
	env := envelopeOf(t, rec)
	if data, _ := env.Data.(map[string]interface{}); data["id"] != "u1" {
		t.Errorf("data = %v", env.Data)
	}
}

func TestRouter_DevOTPOnlyWhenEnabled(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	if rec := send(h, http.MethodGet, "/dev/otp?phone=%2B15550001", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("dev route without store = %d, want 404", rec.Code)
	}

	store := devotp.NewMemoryStore()
	store.Put(context.Background(), "+15550001", "123456", time.Now().Add(time.Minute))
	h, _ = newTestRouter(t, func(d *Deps) { d.DevOTP = store })
	rec := send(h, http.MethodGet, "/dev/otp?phone=%2B15550001", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dev otp = %d: %s", rec.Code, rec.Body.String())
	}
	if data, _ := envelopeOf(t, rec).Data.(map[string]interface{}); data["otp"] != "123456" {
		t.Errorf("data = %v", data)
	}
}

func TestRouter_AuditCarriesClientIP(t *testing.T) {
	a := &recordingAudit{}
	h, _ := newTestRouter(t, func(d *Deps) { d.Audit = a })
	send(h, http.MethodPost, "/auth/login", `{"email":"alice","password":"pw"}`, http.Header{"X-Forwarded-For": {"203.0.113.7"}})
	send(h, http.MethodGet, "/healthz", "", nil)

	if len(a.ips) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(a.ips))
	}
	if a.ips[0] != "203.0.113.7" {
		t.Errorf("ip = %q", a.ips[0])
	}
}

func TestRouter_CORS(t *testing.T) {
	h, _ := newTestRouter(t, func(d *Deps) { d.AllowedOrigins = []string{"http://localhost:3000/"} })
	rec := send(h, http.MethodOptions, "/auth/login", "", http.Header{
		"Origin":                        {"http://localhost:3000"},
		"Access-Control-Request-Method": {http.MethodPost},
	})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow origin = %q", got)
	}
}
