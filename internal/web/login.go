// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/inkletter/inkletter/internal/auth"
)

// LoginForm renders the login page. HTML templating is out of scope; the
// body carries any pending flash message as plain text.
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	flash := popFlash(w, r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if flash != "" {
		fmt.Fprintln(w, flash)
	}
	fmt.Fprintln(w, "Login")
}

// Login validates submitted credentials and opens a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	password, err := auth.ParsePassword(r.PostForm.Get("password"))
	if err != nil {
		// Unparseable passwords cannot match any account; treated the same
		// as a wrong password so the form gives a single failure signal.
		h.recordLogin("failure")
		setFlash(w, "Authentication failed")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	credentials := auth.Credentials{
		Username: r.PostForm.Get("username"),
		Password: password,
	}

	session, token, err := h.auth.Login(r.Context(), credentials, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.recordLogin("failure")
			setFlash(w, "Authentication failed")
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		h.recordLogin("error")
		h.respondError(w, err, "login failed")
		return
	}

	h.recordLogin("success")
	setSessionCookie(w, token, session)
	http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
}

// Dashboard is the landing page behind the session gate.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	flash := popFlash(w, r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if flash != "" {
		fmt.Fprintln(w, flash)
	}
	fmt.Fprintf(w, "Welcome %s\n", userID.String())
}

// Logout deletes the current session and drops the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := h.auth.Logout(r.Context(), session.ID); err != nil {
		h.respondError(w, err, "logout failed")
		return
	}

	clearSessionCookie(w)
	setFlash(w, "You have successfully logged out.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func setSessionCookie(w http.ResponseWriter, token string, session *auth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// recordLogin bumps the login counter when metrics are enabled.
func (h *Handler) recordLogin(result string) {
	if h.metrics != nil {
		h.metrics.LoginAttemptsTotal.WithLabelValues(result).Inc()
	}
}
