// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

// Package web exposes the HTTP surface: routing, session enforcement, and
// the form handlers for authentication, password reset, subscriptions, and
// newsletter publishing.
package web

import (
	"context"

	"github.com/inkletter/inkletter/internal/auth"
)

type contextKey int

const sessionContextKey contextKey = iota

// withSession stores the authenticated session in the request context.
func withSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext returns the authenticated session, if any.
func SessionFromContext(ctx context.Context) (*auth.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*auth.Session)
	return session, ok
}

// UserIDFromContext returns the authenticated user's ID, if any.
func UserIDFromContext(ctx context.Context) (auth.UserID, bool) {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return auth.UserID{}, false
	}
	return session.UserID, true
}
