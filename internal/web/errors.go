// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/inkletter/inkletter/internal/auth"
	"github.com/inkletter/inkletter/internal/idempotency"
	"github.com/inkletter/inkletter/internal/subscriber"
	"github.com/inkletter/inkletter/pkg/errutil"
)

// statusForError maps domain errors to HTTP status codes in one place so
// handlers stay free of status arithmetic.
func statusForError(err error) int {
	switch {
	case errors.Is(err, auth.ErrMalformedToken):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, idempotency.ErrConcurrentRequest):
		return http.StatusConflict
	case errors.Is(err, subscriber.ErrDuplicateEmail):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the cause chain for operators and sends the client a
// bare status line. Internals never leak into the response body.
func (h *Handler) respondError(w http.ResponseWriter, err error, msg string) {
	errutil.LogError(h.logger, msg, err)
	status := statusForError(err)
	http.Error(w, http.StatusText(status), status)
}
