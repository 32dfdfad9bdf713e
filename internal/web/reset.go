// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package web

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/inkletter/inkletter/internal/auth"
	"github.com/inkletter/inkletter/internal/email"
	"github.com/inkletter/inkletter/internal/subscriber"
	"github.com/inkletter/inkletter/pkg/errutil"
)

// resetRequestedMessage is sent regardless of whether the address belongs to
// an account, so the endpoint cannot be used to probe for registered emails.
const resetRequestedMessage = "If that email is in our system, you will receive a password reset link shortly."

// PasswordResetRequestForm renders the page where a user asks for a reset
// link to be emailed.
func (h *Handler) PasswordResetRequestForm(w http.ResponseWriter, r *http.Request) {
	flash := popFlash(w, r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if flash != "" {
		fmt.Fprintln(w, flash)
	}
	fmt.Fprintln(w, "Forgot your password?")
}

// RequestPasswordReset issues a reset token and emails the reset link when
// the address belongs to an account. The response is identical either way.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	addr, err := subscriber.ParseEmailAddress(r.PostForm.Get("email"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	token, user, err := h.resets.RequestReset(r.Context(), addr.String())
	if err != nil {
		h.respondError(w, err, "failed to issue password reset token")
		return
	}

	if user != nil {
		h.recordReset("requested")
		if err := h.sendResetEmail(r, addr, token); err != nil {
			// The generic response stands even when delivery fails; failing
			// loudly here would reveal that the address has an account.
			errutil.LogError(h.logger, "failed to send password reset email", err)
		}
	}

	setFlash(w, resetRequestedMessage)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// PasswordResetForm checks the token from the emailed link and renders the
// new-password page when it is still valid.
func (h *Handler) PasswordResetForm(w http.ResponseWriter, r *http.Request) {
	rawToken := r.URL.Query().Get("token")

	if _, err := h.resets.ValidateToken(r.Context(), rawToken); err != nil {
		if errors.Is(err, auth.ErrMalformedToken) || errors.Is(err, auth.ErrInvalidToken) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.respondError(w, err, "failed to validate reset token")
		return
	}

	flash := popFlash(w, r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if flash != "" {
		fmt.Fprintln(w, flash)
	}
	fmt.Fprintln(w, "Choose a new password")
}

// ConfirmPasswordReset consumes the token and sets the new password.
func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	rawToken := r.PostForm.Get("token")
	backTo := "/password-reset/confirm?token=" + url.QueryEscape(rawToken)

	newPassword := r.PostForm.Get("new_password")
	newPasswordCheck := r.PostForm.Get("new_password_check")
	if subtle.ConstantTimeCompare([]byte(newPassword), []byte(newPasswordCheck)) != 1 {
		setFlash(w, "You entered two different new passwords - the field values must match.")
		http.Redirect(w, r, backTo, http.StatusSeeOther)
		return
	}

	parsed, err := auth.ParsePassword(newPassword)
	if err != nil {
		setFlash(w, "The new password does not meet the password policy.")
		http.Redirect(w, r, backTo, http.StatusSeeOther)
		return
	}

	if err := h.resets.ResetPassword(r.Context(), rawToken, parsed); err != nil {
		if errors.Is(err, auth.ErrMalformedToken) || errors.Is(err, auth.ErrInvalidToken) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.respondError(w, err, "failed to reset password")
		return
	}

	h.recordReset("completed")
	setFlash(w, "Your password has been reset. Please log in with your new password.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) sendResetEmail(r *http.Request, to subscriber.EmailAddress, token auth.ResetToken) error {
	link := h.baseURL + "/password-reset/confirm?token=" + url.QueryEscape(token.String())
	msg := email.Email{
		To:      to,
		Subject: "Reset your password",
		HTMLBody: fmt.Sprintf(
			`<p>Someone requested a password reset for this address.</p><p><a href="%s">Reset your password</a></p><p>The link expires in one hour. If this wasn't you, ignore this email.</p>`,
			link),
		TextBody: fmt.Sprintf(
			"Someone requested a password reset for this address.\nVisit %s to choose a new password.\nThe link expires in one hour. If this wasn't you, ignore this email.\n",
			link),
	}
	if err := h.sender.Send(r.Context(), msg); err != nil {
		return err
	}
	if h.metrics != nil {
		h.metrics.EmailsSentTotal.Inc()
	}
	return nil
}

// recordReset bumps the reset-stage counter when metrics are enabled.
func (h *Handler) recordReset(stage string) {
	if h.metrics != nil {
		h.metrics.PasswordResetsTotal.WithLabelValues(stage).Inc()
	}
}
