// Package httpx renders the JSON response envelope shared by every HTTP handler and maps error
// kinds to status codes.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"identity-service/internal/apperror"
)

// maxBodyBytes bounds a decoded request body.
const maxBodyBytes = 1 << 20

// ErrInvalidBody is returned by Decode when the body is missing or not valid JSON.
var ErrInvalidBody = apperror.New(apperror.KindInvalidInput, "Invalid request body")

// Envelope is the body of every API response.
type Envelope struct {
	Succeeded        bool   `json:"succeeded"`
	HTTPResponseCode int    `json:"httpResponseCode"`
	Message          string `json:"message"`
	Data             any    `json:"data"`
}

// Decode reads a JSON request body into dest.
func Decode(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return ErrInvalidBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dest); err != nil {
		return apperror.Wrap(apperror.KindInvalidInput, ErrInvalidBody.Message, err)
	}
	return nil
}

// JSON writes payload with the given status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// Success writes a succeeded envelope.
func Success(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Succeeded: true, HTTPResponseCode: status, Message: message, Data: data})
}

// Error writes a failed envelope for err. Unclassified errors are logged and rendered as 500
// without their text.
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	kind := apperror.KindOf(err)
	status := StatusFor(kind)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed", zap.Error(err))
	}
	JSON(w, status, Envelope{Succeeded: false, HTTPResponseCode: status, Message: apperror.MessageOf(err)})
}

// StatusFor maps an error kind to an HTTP status. InvalidCredentials and FederationProvider are
// reported as 409 like every other business conflict.
func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindInvalidCredentials, apperror.KindConflict, apperror.KindFederationProvider:
		return http.StatusConflict
	case apperror.KindInvalidInput:
		return http.StatusBadRequest
	case apperror.KindUnauthorized:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
