package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/patientportal/internal/filex"
	"github.com/dmitrijs2005/patientportal/internal/logging"
	"github.com/dmitrijs2005/patientportal/internal/server/metrics"
)

type ctxKey string

const loggerKey ctxKey = "logger"

func loggerFrom(ctx context.Context, fallback logging.Logger) logging.Logger {
	if l, ok := ctx.Value(loggerKey).(logging.Logger); ok {
		return l
	}
	return fallback
}

// accessLog attaches a request-scoped logger, then logs and measures every
// request once it completes.
func accessLog(logger logging.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			l := logger.With("request_id", middleware.GetReqID(r.Context()))
			ctx := context.WithValue(r.Context(), loggerKey, l)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			d := time.Since(start)

			m.ObserveHTTP(r.Method, route, status, d)
			l.Info(ctx, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", d.String(),
			)
		})
	}
}

// maintenance answers 503 for everything but the probes while the flag file
// exists.
func maintenance(flagFile string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if flagFile == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/healthz", "/readyz", "/metrics":
				next.ServeHTTP(w, r)
				return
			}
			if filex.Exists(flagFile) {
				w.Header().Set("Retry-After", "300")
				writeFailure(w, http.StatusServiceUnavailable,
					"The portal is undergoing maintenance. Please try again later.", envelope{"maintenance": true})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// userHandler is a handler that runs for an authenticated user.
type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// authed resolves the session cookie to a user id, sliding the session
// expiry, and refreshes the cookie before calling next. Requests without a
// valid session get 401 and a cleared cookie.
func (h *handlers) authed(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := h.cookie.token(r)

		userID, err := h.auth.ValidateToken(r.Context(), token, true)
		if err != nil {
			status, _ := statusFor(err)
			if status >= http.StatusInternalServerError {
				loggerFrom(r.Context(), h.logger).Error(r.Context(), "session validation failed", "error", err)
			}
			h.cookie.clear(w)
			writeFailure(w, http.StatusUnauthorized, "Not authenticated", nil)
			return
		}

		h.cookie.set(w, token)
		next(w, r, userID)
	}
}
