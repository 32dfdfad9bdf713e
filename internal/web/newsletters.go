// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/inkletter/inkletter/internal/idempotency"
	"github.com/inkletter/inkletter/internal/newsletter"
)

// NewsletterForm renders the publish page with any pending flash.
func (h *Handler) NewsletterForm(w http.ResponseWriter, r *http.Request) {
	flash := popFlash(w, r)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if flash != "" {
		fmt.Fprintln(w, flash)
	}
	fmt.Fprintln(w, "Publish a newsletter issue")
}

// PublishNewsletter sends an issue to every confirmed subscriber, exactly
// once per idempotency key. Retries with the same key replay the recorded
// response; a concurrent duplicate is rejected with 409.
func (h *Handler) PublishNewsletter(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	key, err := idempotency.ParseKey(r.PostForm.Get("idempotency_key"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	issue, err := newsletter.NewIssue(
		r.PostForm.Get("title"),
		r.PostForm.Get("html_content"),
		r.PostForm.Get("text_content"),
	)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	txn, saved, err := h.coordinator.TryProcessing(r.Context(), userID, key)
	if err != nil {
		if errors.Is(err, idempotency.ErrConcurrentRequest) {
			h.recordPublish("concurrent_duplicate")
		}
		h.respondError(w, err, "failed to claim idempotency key")
		return
	}

	if saved != nil {
		h.recordPublish("replayed")
		writeSavedResponse(w, saved)
		return
	}

	if err := h.publisher.Publish(r.Context(), issue); err != nil {
		h.coordinator.Abort(r.Context(), txn)
		h.recordPublish("failed")
		h.respondError(w, err, "failed to publish newsletter issue")
		return
	}

	resp := idempotency.SavedResponse{
		StatusCode: http.StatusSeeOther,
		Headers:    http.Header{"Location": []string{"/admin/newsletters"}},
	}
	if err := h.coordinator.SaveResponse(r.Context(), txn, userID, key, resp); err != nil {
		h.recordPublish("failed")
		h.respondError(w, err, "failed to record publish response")
		return
	}

	h.recordPublish("published")
	setFlash(w, "The newsletter issue has been published!")
	writeSavedResponse(w, &resp)
}

// writeSavedResponse replays a recorded response verbatim.
func writeSavedResponse(w http.ResponseWriter, resp *idempotency.SavedResponse) {
	for name, values := range resp.Headers {
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		w.Write(resp.Body) //nolint:errcheck // response write error, client may disconnect
	}
}

// recordPublish bumps the publish counter when metrics are enabled.
func (h *Handler) recordPublish(result string) {
	if h.metrics != nil {
		h.metrics.NewsletterPublishesTotal.WithLabelValues(result).Inc()
	}
}
