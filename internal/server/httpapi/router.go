package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/dmitrijs2005/patientportal/internal/common"
	"github.com/dmitrijs2005/patientportal/internal/logging"
	"github.com/dmitrijs2005/patientportal/internal/server/metrics"
	"github.com/dmitrijs2005/patientportal/internal/server/telemetry"
)

const serviceName = "patientportal"

// Options configures NewRouter.
type Options struct {
	Cookie          CookieOptions
	AllowedOrigins  []string
	AuthRateLimit   int
	MaintenanceFile string
	RequestTimeout  time.Duration
	Tracing         bool

	// TrustProxyHeaders rewrites RemoteAddr from X-Forwarded-For and
	// X-Real-IP. Off, the rate limiter keys on the socket address only.
	TrustProxyHeaders bool
}

// Services bundles the handler dependencies.
type Services struct {
	Auth      AuthService
	Chat      ChatService
	Records   RecordService
	Dashboard DashboardService
	DB        Pinger
}

// NewRouter builds the portal HTTP handler.
func NewRouter(opts Options, svc Services, logger logging.Logger, m *metrics.Metrics) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.Cookie.Name == "" {
		opts.Cookie.Name = common.SessionCookieName
	}
	if opts.Cookie.MaxAge <= 0 {
		opts.Cookie.MaxAge = common.SessionTTL
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 90 * time.Second
	}

	h := &handlers{
		auth:      svc.Auth,
		chat:      svc.Chat,
		records:   svc.Records,
		dashboard: svc.Dashboard,
		db:        svc.DB,
		cookie:    opts.Cookie,
		logger:    logger.With("module", "http_server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if opts.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(accessLog(h.logger, m))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(maintenance(opts.MaintenanceFile))

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))

		r.Route("/auth", func(r chi.Router) {
			if opts.AuthRateLimit > 0 {
				r.Use(httprate.LimitByIP(opts.AuthRateLimit, time.Minute))
			}
			r.Post("/code", h.issueCode)
			r.Post("/verify", h.verifyCode)
			r.Post("/session", h.session)
			r.Post("/logout", h.logout)
		})

		r.Get("/dashboard", h.authed(h.getDashboard))

		r.Get("/conversations", h.authed(h.listConversations))
		r.Get("/conversations/{id}", h.authed(h.getConversation))
		r.Delete("/conversations/{id}", h.authed(h.deleteConversation))
		r.Post("/conversations/{id}/clear", h.authed(h.clearConversation))
		r.Delete("/messages/{id}", h.authed(h.deleteMessage))

		r.Post("/chat", h.authed(h.chatTurn))

		r.Get("/records", h.authed(h.listRecords))
		r.Get("/records/{id}/pdf", h.authed(h.recordPDF))
	})

	if opts.Tracing {
		return telemetry.Middleware(serviceName)(r)
	}
	return r
}
