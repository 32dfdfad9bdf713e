// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package web

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/inkletter/inkletter/internal/auth"
)

// PasswordForm renders the change-password page with any pending flash.
func (h *Handler) PasswordForm(w http.ResponseWriter, r *http.Request) {
	flash := popFlash(w, r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if flash != "" {
		fmt.Fprintln(w, flash)
	}
	fmt.Fprintln(w, "Change password")
}

// ChangePassword lets a signed-in user replace their password. The current
// password is re-checked here; the service layer does not.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	session, ok := SessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	newPassword := r.PostForm.Get("new_password")
	newPasswordCheck := r.PostForm.Get("new_password_check")
	if subtle.ConstantTimeCompare([]byte(newPassword), []byte(newPasswordCheck)) != 1 {
		setFlash(w, "You entered two different new passwords - the field values must match.")
		http.Redirect(w, r, "/admin/password", http.StatusSeeOther)
		return
	}

	parsed, err := auth.ParsePassword(newPassword)
	if err != nil {
		setFlash(w, "The new password does not meet the password policy.")
		http.Redirect(w, r, "/admin/password", http.StatusSeeOther)
		return
	}

	current, err := auth.ParsePassword(r.PostForm.Get("current_password"))
	if err != nil {
		setFlash(w, "The current password is incorrect.")
		http.Redirect(w, r, "/admin/password", http.StatusSeeOther)
		return
	}

	user, err := h.auth.GetUser(r.Context(), session.UserID)
	if err != nil {
		h.respondError(w, err, "failed to load user for password change")
		return
	}

	_, err = h.auth.ValidateCredentials(r.Context(), auth.Credentials{
		Username: user.Username,
		Password: current,
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			setFlash(w, "The current password is incorrect.")
			http.Redirect(w, r, "/admin/password", http.StatusSeeOther)
			return
		}
		h.respondError(w, err, "failed to verify current password")
		return
	}

	if err := h.auth.ChangePassword(r.Context(), session.UserID, parsed); err != nil {
		h.respondError(w, err, "failed to change password")
		return
	}

	setFlash(w, "Your password has been changed.")
	http.Redirect(w, r, "/admin/password", http.StatusSeeOther)
}
