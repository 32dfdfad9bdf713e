// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/inkletter/inkletter/internal/auth"
	"github.com/inkletter/inkletter/pkg/errutil"
)

// sessionCookieName carries the raw session token.
const sessionCookieName = "session"

// RequestLogger logs one line per request with status and duration.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

// SessionValidator validates a session cookie token.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*auth.Session, error)
}

// SessionGate protects a route subtree. Requests without a valid, unexpired
// session are redirected to the login page; the handler is never invoked.
// Storage failures during validation are logged and answered with 500, not a
// redirect. On success the session rides the request context.
func SessionGate(sessions SessionValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			session, err := sessions.ValidateSession(r.Context(), cookie.Value)
			if err != nil {
				// Invalid and expired tokens get the same treatment as no
				// token at all.
				if errors.Is(err, auth.ErrSessionInvalid) {
					http.Redirect(w, r, "/login", http.StatusSeeOther)
					return
				}
				errutil.LogError(logger, "session validation failed", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), session)))
		})
	}
}
