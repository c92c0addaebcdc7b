// Package handler serves the dev-only OTP lookup endpoint.
package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"identity-service/internal/apperror"
	"identity-service/internal/devotp"
	"identity-service/internal/server/httpx"
)

const devOTPNote = "DEV MODE ONLY"

var (
	ErrPhoneRequired = apperror.New(apperror.KindInvalidInput, "phone is required")
	ErrOTPNotFound   = apperror.New(apperror.KindNotFound, "OTP not found or expired")
)

// Handler serves GET /dev/otp. Only mounted when dev OTP mode is enabled and not production.
type Handler struct {
	store devotp.Store
}

// NewHandler returns a handler that reads OTP from the given store.
func NewHandler(store devotp.Store) *Handler {
	return &Handler{store: store}
}

// Routes mounts the dev endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/otp", h.GetOTP)
}

type otpResponse struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
	Note  string `json:"note"`
}

// GetOTP returns the plain OTP for the phone query parameter.
func (h *Handler) GetOTP(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if phone == "" {
		httpx.Error(w, nil, ErrPhoneRequired)
		return
	}
	otp, ok := h.store.Get(r.Context(), phone)
	if !ok {
		httpx.Error(w, nil, ErrOTPNotFound)
		return
	}
	httpx.Success(w, http.StatusOK, devOTPNote, otpResponse{Phone: phone, OTP: otp, Note: devOTPNote})
}
