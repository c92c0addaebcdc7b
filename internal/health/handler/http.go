package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"identity-service/internal/apperror"
	"identity-service/internal/server/httpx"
)

// Handler serves GET /healthz and GET /readyz.
type Handler struct {
	checker *Checker
	log     *zap.Logger
}

// NewHandler returns a health handler backed by checker.
func NewHandler(checker *Checker, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{checker: checker, log: log}
}

// Routes mounts the health endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.Live)
	r.Get("/readyz", h.Ready)
}

// Live reports that the process is up.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	httpx.Success(w, http.StatusOK, "ok", nil)
}

// Ready reports 503 while a dependency is unhealthy.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.checker.Check(r.Context()); err != nil {
		h.log.Warn("readiness check failed", zap.Error(err))
		httpx.JSON(w, http.StatusServiceUnavailable, httpx.Envelope{
			Succeeded:        false,
			HTTPResponseCode: http.StatusServiceUnavailable,
			Message:          apperror.MessageOf(err),
		})
		return
	}
	httpx.Success(w, http.StatusOK, "ready", nil)
}
