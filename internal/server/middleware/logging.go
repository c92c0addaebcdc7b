package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request at debug level, or warn for 5xx responses.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				status := statusOf(ww)
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Duration("duration", time.Since(start)),
					zap.String("client_ip", ClientIP(r.Context())),
					zap.String("request_id", chimw.GetReqID(r.Context())),
				}
				if status >= http.StatusInternalServerError {
					log.Warn("http request", fields...)
					return
				}
				log.Debug("http request", fields...)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
