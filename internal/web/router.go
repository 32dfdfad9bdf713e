// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package web

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/inkletter/inkletter/internal/auth"
	"github.com/inkletter/inkletter/internal/email"
	"github.com/inkletter/inkletter/internal/idempotency"
	"github.com/inkletter/inkletter/internal/newsletter"
	"github.com/inkletter/inkletter/internal/observability"
	"github.com/inkletter/inkletter/internal/subscriber"
)

// Handler bundles the HTTP handlers and their collaborators.
type Handler struct {
	logger      *slog.Logger
	auth        *auth.Service
	resets      *auth.PasswordResetService
	subscribers subscriber.Repository
	publisher   *newsletter.Publisher
	coordinator *idempotency.Coordinator
	sender      email.Sender
	metrics     *observability.Metrics
	baseURL     string
}

// HandlerConfig wires a Handler. Metrics may be nil when the observability
// server is disabled.
type HandlerConfig struct {
	Logger      *slog.Logger
	Auth        *auth.Service
	Resets      *auth.PasswordResetService
	Subscribers subscriber.Repository
	Publisher   *newsletter.Publisher
	Coordinator *idempotency.Coordinator
	Sender      email.Sender
	Metrics     *observability.Metrics
	BaseURL     string
}

// NewHandler validates collaborators and builds a Handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	errb := oops.Code("WEB_HANDLER_INVALID")
	if cfg.Auth == nil {
		return nil, errb.Errorf("auth service is required")
	}
	if cfg.Resets == nil {
		return nil, errb.Errorf("password reset service is required")
	}
	if cfg.Subscribers == nil {
		return nil, errb.Errorf("subscriber repository is required")
	}
	if cfg.Publisher == nil {
		return nil, errb.Errorf("newsletter publisher is required")
	}
	if cfg.Coordinator == nil {
		return nil, errb.Errorf("idempotency coordinator is required")
	}
	if cfg.Sender == nil {
		return nil, errb.Errorf("email sender is required")
	}
	if cfg.BaseURL == "" {
		return nil, errb.Errorf("base URL is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		auth:        cfg.Auth,
		resets:      cfg.Resets,
		subscribers: cfg.Subscribers,
		publisher:   cfg.Publisher,
		coordinator: cfg.Coordinator,
		sender:      cfg.Sender,
		metrics:     cfg.Metrics,
		baseURL:     cfg.BaseURL,
	}, nil
}

// Router assembles the route tree with middleware.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health_check", h.HealthCheck)
	r.Post("/subscriptions", h.Subscribe)

	r.Get("/login", h.LoginForm)
	r.Post("/login", h.Login)

	r.Get("/password-reset", h.PasswordResetRequestForm)
	r.Post("/password-reset", h.RequestPasswordReset)
	r.Get("/password-reset/confirm", h.PasswordResetForm)
	r.Post("/password-reset/confirm", h.ConfirmPasswordReset)

	r.Route("/admin", func(r chi.Router) {
		r.Use(SessionGate(h.auth, h.logger))

		r.Get("/dashboard", h.Dashboard)
		r.Post("/logout", h.Logout)
		r.Get("/password", h.PasswordForm)
		r.Post("/password", h.ChangePassword)
		r.Get("/newsletters", h.NewsletterForm)
		r.Post("/newsletters", h.PublishNewsletter)
	})

	return r
}

// HealthCheck reports process liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
