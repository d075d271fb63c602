package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lisavoice/orderstatus/internal/http/handlers"
	httpmiddleware "github.com/lisavoice/orderstatus/internal/http/middleware"
	"github.com/lisavoice/orderstatus/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger     *logging.Logger
	Voice      *handlers.VoiceWebhookHandler
	AdminCalls *handlers.AdminCallsHandler

	// AdminAuthSecret protects the audit API; empty disables the routes.
	AdminAuthSecret string

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// WebhookRateLimit caps requests per second per client IP on the
	// voice webhook routes. Zero disables rate limiting.
	WebhookRateLimit float64
	WebhookRateBurst int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}

		if cfg.Voice != nil {
			public.Group(func(voice chi.Router) {
				if cfg.WebhookRateLimit > 0 {
					burst := cfg.WebhookRateBurst
					if burst <= 0 {
						burst = int(cfg.WebhookRateLimit) + 1
					}
					voice.Use(httpmiddleware.RateLimit(cfg.WebhookRateLimit, burst))
				}
				cfg.Voice.Register(voice)
			})
		}
	})

	// Audit API (protected by JWT)
	if cfg.AdminAuthSecret != "" && cfg.AdminCalls != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Mount("/", cfg.AdminCalls.Routes())
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","service":"orderstatus"}`))
}
