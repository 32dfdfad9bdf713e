// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/inkletter/inkletter/internal/subscriber"
)

// Subscribe registers a new newsletter subscriber from a form post.
// Subscribing an already-registered address reports success so the form
// stays idempotent from the reader's point of view.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	addr, err := subscriber.ParseEmailAddress(r.PostForm.Get("email"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	sub, err := subscriber.NewSubscriber(addr, r.PostForm.Get("name"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.subscribers.Insert(r.Context(), sub); err != nil {
		if errors.Is(err, subscriber.ErrDuplicateEmail) {
			w.WriteHeader(http.StatusOK)
			return
		}
		h.respondError(w, err, "failed to store subscriber")
		return
	}

	w.WriteHeader(http.StatusOK)
}
