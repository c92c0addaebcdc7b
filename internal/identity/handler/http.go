// Package handler serves the /auth routes.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"identity-service/internal/identity/federation"
	"identity-service/internal/identity/service"
	"identity-service/internal/server/httpx"
	userdomain "identity-service/internal/user/domain"
)

// Authenticator is the part of the auth service the /auth routes need.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (*service.AuthResult, error)
	LoginFederated(ctx context.Context, email, accessToken, origin string) (*service.AuthResult, error)
	LoginLinkedIn(ctx context.Context, p federation.ExchangeParams) (*service.AuthResult, error)
	VerifyEmail(ctx context.Context, email, token string) (*service.AuthResult, error)
}

// Handler serves login, federated login and email verification.
type Handler struct {
	auth Authenticator
	log  *zap.Logger
}

// NewHandler returns a /auth handler over auth.
func NewHandler(auth Authenticator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{auth: auth, log: log}
}

// Routes mounts the /auth endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/login-and-sign-up-with-oauth", h.LoginWithOAuth)
	r.Post("/login-and-sign-up-with-linkedin", h.LoginWithLinkedIn)
	r.Post("/verify-email", h.VerifyEmail)
}

// AuthResponse is an account with its bearer token, flattened into one object.
type AuthResponse struct {
	*userdomain.User
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewAuthResponse renders res.
func NewAuthResponse(res *service.AuthResult) AuthResponse {
	return AuthResponse{User: res.User, Token: res.Token, ExpiresAt: res.ExpiresAt}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /auth/login. The email field may hold a user name.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Success(w, http.StatusOK, service.MsgLoggedIn, NewAuthResponse(res))
}

type oauthRequest struct {
	Email       string `json:"email"`
	AccessToken string `json:"accessToken"`
	LoginType   string `json:"loginType"`
}

// LoginWithOAuth handles POST /auth/login-and-sign-up-with-oauth.
func (h *Handler) LoginWithOAuth(w http.ResponseWriter, r *http.Request) {
	var req oauthRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	res, err := h.auth.LoginFederated(r.Context(), req.Email, req.AccessToken, req.LoginType)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Success(w, http.StatusOK, service.MsgLoggedIn, NewAuthResponse(res))
}

type linkedInRequest struct {
	GrantType    string `json:"grantType"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirectURI"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// LoginWithLinkedIn handles POST /auth/login-and-sign-up-with-linkedin.
func (h *Handler) LoginWithLinkedIn(w http.ResponseWriter, r *http.Request) {
	var req linkedInRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	res, err := h.auth.LoginLinkedIn(r.Context(), federation.ExchangeParams{
		GrantType:    req.GrantType,
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
	})
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Success(w, http.StatusOK, service.MsgLoggedIn, NewAuthResponse(res))
}

type verifyEmailRequest struct {
	Email       string `json:"email"`
	AccessToken string `json:"accessToken"`
}

// VerifyEmail handles POST /auth/verify-email.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	res, err := h.auth.VerifyEmail(r.Context(), req.Email, req.AccessToken)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Success(w, http.StatusOK, service.MsgEmailVerified, NewAuthResponse(res))
}
