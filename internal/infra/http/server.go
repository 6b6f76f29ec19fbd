package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"edtech-enrollment/internal/config"
	"edtech-enrollment/internal/infra/i18n"
	"edtech-enrollment/internal/usecase"
)

// RateLimiter is the part of the redis limiter the intake route needs.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Deps are the collaborators behind the HTTP surface. Limiter and Health are optional.
type Deps struct {
	Enrollments     usecase.EnrollmentUseCase
	Reconciler      usecase.ReconcileUseCase
	Limiter         RateLimiter
	Auth            *AuthManager
	AdminAPIKey     string
	WebhookSecret   string
	InitializeLimit int // requests per minute per client IP
	Translator      *i18n.Translator
	Health          func(ctx context.Context) error
	Dev             bool
}

type Server struct {
	cfg    config.ServerConfig
	deps   Deps
	log     *zerolog.Logger
	server  *http.Server
	proxies []netip.Prefix
}

func NewServer(cfg config.ServerConfig, deps Deps, logger *zerolog.Logger) *Server {
	if deps.Translator == nil {
		deps.Translator = i18n.MustDefault()
	}
	if deps.Auth == nil {
		deps.Auth = NewAuthManager("", false, 0)
	}
	if cfg.HandlerLimit <= 0 {
		cfg.HandlerLimit = 15 * time.Second
	}
	compLog := logger.With().Str("component", "HTTPServer").Logger()
	s := &Server{cfg: cfg, deps: deps, log: &compLog}
	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		compLog.Warn().Err(err).Msg("ignoring trusted proxies; forwarding headers will not be used")
	}
	s.proxies = proxies
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Router(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

// Router builds the full route table with the middleware chain applied.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RealIP(s.proxies))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/paystack/webhook", s.handlePaystackWebhook)
		r.Post("/enrollments/initialize", s.handleInitialize)
		r.Get("/enrollments/callback", s.handleCallback)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/session", s.handleAdminSession)
			r.With(s.deps.Auth.Middleware).Get("/enrollments/{reference}", s.handleAdminEnrollment)
		})
	})

	return Chain(r,
		Recover(s.log),
		TraceID(),
		RequestLog(s.log),
		Timeout(s.cfg.HandlerLimit),
	)
}

func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			http.Error(w, "UNAVAILABLE", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
