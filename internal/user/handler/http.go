// Package handler serves the /user routes: registration, email links, password changes, phone
// verification, logout and the current profile.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"identity-service/internal/email"
	"identity-service/internal/identity/service"
	"identity-service/internal/server/httpx"
	"identity-service/internal/server/middleware"
	"identity-service/internal/user/domain"
)

// MsgOK is the message of responses that carry only data.
const MsgOK = "Operation successful"

// AccountService is the part of the auth service the /user routes need.
type AccountService interface {
	Register(ctx context.Context, userName, email, password string) (*domain.User, error)
	SendVerificationEmail(ctx context.Context, identifier string, kind email.Kind) (string, error)
	ResetPasswordViaLink(ctx context.Context, email, token, newPassword string) error
	ChangePassword(ctx context.Context, u *domain.User, oldPassword, newPassword, confirmPassword string) error
	Profile(ctx context.Context, id string) (*domain.User, error)
	AddPhoneAndRequestOtp(ctx context.Context, id, phone string) (*service.OTPResult, error)
	RequestOtp(ctx context.Context, u *domain.User) (*service.OTPResult, error)
	VerifyOtp(ctx context.Context, u *domain.User, phone, code string) (*domain.User, error)
	Logout(ctx context.Context, id string) error
}

// Handler serves the /user routes.
type Handler struct {
	accounts AccountService
	log      *zap.Logger
}

// NewHandler returns a /user handler over accounts.
func NewHandler(accounts AccountService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{accounts: accounts, log: log}
}

// Routes mounts the /user endpoints on r. authenticate is the bearer middleware for the
// protected routes.
func (h *Handler) Routes(authenticate func(http.Handler) http.Handler) func(chi.Router) {
	anyRole := middleware.RequireRole(domain.RoleUser, domain.RoleAdmin, domain.RoleSuperAdmin)
	return func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/generate-forget-password-link", h.ForgotPassword)
		r.Post("/regenerate-email-link", h.RegenerateEmailLink)
		r.Post("/change-password-from-link", h.ChangePasswordFromLink)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/change-password", h.ChangePassword)

			r.Group(func(r chi.Router) {
				r.Use(anyRole)
				r.Get("/", h.Profile)
				r.Post("/logout", h.Logout)
				r.Get("/logout", h.Logout)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireEmailVerified)
					r.Post("/add-phone-and-generate-otp", h.AddPhone)
					r.Get("/generate-otp", h.GenerateOtp)
					r.Post("/verify-otp", h.VerifyOtp)
				})
			})
		})
	}
}

type registerRequest struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /user/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	u, err := h.accounts.Register(r.Context(), req.UserName, req.Email, req.Password)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Success(w, http.StatusCreated, service.MsgRegistered, u)
}

type emailRequest struct {
	Email string `json:"email"`
}

// ForgotPassword handles POST /user/generate-forget-password-link.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	h.sendLink(w, r, email.KindResetPassword)
}

// RegenerateEmailLink handles POST /user/regenerate-email-link.
func (h *Handler) RegenerateEmailLink(w http.ResponseWriter, r *http.Request) {
	h.sendLink(w, r, email.KindEmailVerification)
}

func (h *Handler) sendLink(w http.ResponseWriter, r *http.Request, kind email.Kind) {
	var req emailRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	msg, err := h.accounts.SendVerificationEmail(r.Context(), req.Email, kind)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Success(w, http.StatusOK, msg, nil)
}

type changePasswordFromLinkRequest struct {
	Email       string `json:"email"`
	AccessToken string `json:"accessToken"`
	Password    string `json:"password"`
}

// ChangePasswordFromLink handles POST /user/change-password-from-link.
func (h *Handler) ChangePasswordFromLink(w http.ResponseWriter, r *http.Request) {
	var req changePasswordFromLinkRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	if err := h.accounts.ResetPasswordViaLink(r.Context(), req.Email, req.AccessToken, req.Password); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Success(w, http.StatusOK, service.MsgPasswordUpdated, map[string]string{"email": req.Email})
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ChangePassword handles POST /user/change-password for the current account.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	var req changePasswordRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	if err := h.accounts.ChangePassword(r.Context(), u, req.OldPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Success(w, http.StatusOK, service.MsgPasswordUpdated, nil)
}

// Profile handles GET /user.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	p, err := h.accounts.Profile(r.Context(), u.ID)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Success(w, http.StatusOK, MsgOK, p)
}

// Logout handles POST (and GET) /user/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	if err := h.accounts.Logout(r.Context(), u.ID); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Success(w, http.StatusOK, service.MsgLoggedOut, nil)
}

type addPhoneRequest struct {
	Phone string `json:"phone"`
}

type otpResponse struct {
	ExpiresAt time.Time `json:"expiresAt"`
	OTP       string    `json:"otp,omitempty"`
}

// AddPhone handles POST /user/add-phone-and-generate-otp.
func (h *Handler) AddPhone(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	var req addPhoneRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	res, err := h.accounts.AddPhoneAndRequestOtp(r.Context(), u.ID, req.Phone)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Success(w, http.StatusOK, res.Message, otpResponse{ExpiresAt: res.ExpiresAt, OTP: res.Code})
}

// GenerateOtp handles GET /user/generate-otp for the account's current phone.
func (h *Handler) GenerateOtp(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	res, err := h.accounts.RequestOtp(r.Context(), u)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Success(w, http.StatusOK, res.Message, otpResponse{ExpiresAt: res.ExpiresAt, OTP: res.Code})
}

// otpCode accepts the code as a JSON number or string.
type otpCode string

func (c *otpCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = otpCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return err
	}
	*c = otpCode(n.String())
	return nil
}

type verifyOtpRequest struct {
	OTP otpCode `json:"otp"`
}

// VerifyOtp handles POST /user/verify-otp. The phone is the current account's.
func (h *Handler) VerifyOtp(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	var req verifyOtpRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	out, err := h.accounts.VerifyOtp(r.Context(), u, u.Phone, string(req.OTP))
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Success(w, http.StatusOK, service.MsgOTPVerified, out)
}
