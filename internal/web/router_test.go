// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package web_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/inkletter/inkletter/internal/auth"
	"github.com/inkletter/inkletter/internal/auth/mocks"
	"github.com/inkletter/inkletter/internal/email"
	"github.com/inkletter/inkletter/internal/idempotency"
	"github.com/inkletter/inkletter/internal/newsletter"
	"github.com/inkletter/inkletter/internal/subscriber"
	"github.com/inkletter/inkletter/internal/web"
)

// stubSubscriberRepo is an in-memory subscriber.Repository.
type stubSubscriberRepo struct {
	mu        sync.Mutex
	inserted  []*subscriber.Subscriber
	confirmed []subscriber.EmailAddress
	insertErr error
	listErr   error
}

func (s *stubSubscriberRepo) Insert(_ context.Context, sub *subscriber.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, sub)
	return nil
}

func (s *stubSubscriberRepo) ConfirmedEmails(context.Context) ([]subscriber.EmailAddress, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.confirmed, nil
}

// recordingSender captures outbound emails.
type recordingSender struct {
	mu      sync.Mutex
	sent    []email.Email
	sendErr error
}

func (s *recordingSender) Send(_ context.Context, msg email.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// harness assembles a full Handler over mocked persistence.
type harness struct {
	router      http.Handler
	users       *mocks.MockUserRepository
	sessions    *mocks.MockSessionRepository
	resets      *mocks.MockPasswordResetRepository
	uow         *mocks.MockResetUnitOfWork
	hasher      *mocks.MockPasswordHasher
	subscribers *stubSubscriberRepo
	sender      *recordingSender
	db          pgxmock.PgxPoolIface
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		users:       mocks.NewMockUserRepository(t),
		sessions:    mocks.NewMockSessionRepository(t),
		resets:      mocks.NewMockPasswordResetRepository(t),
		uow:         mocks.NewMockResetUnitOfWork(t),
		hasher:      mocks.NewMockPasswordHasher(t),
		subscribers: &stubSubscriberRepo{},
		sender:      &recordingSender{},
	}

	db, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(db.Close)
	h.db = db

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := auth.NewBlockingPool(1)

	authService, err := auth.NewService(h.users, h.sessions, h.hasher, pool)
	require.NoError(t, err)
	resetService, err := auth.NewPasswordResetService(h.users, h.resets, h.uow, h.hasher, pool)
	require.NoError(t, err)
	publisher, err := newsletter.NewPublisher(h.subscribers, h.sender, logger)
	require.NoError(t, err)

	handler, err := web.NewHandler(web.HandlerConfig{
		Logger:      logger,
		Auth:        authService,
		Resets:      resetService,
		Subscribers: h.subscribers,
		Publisher:   publisher,
		Coordinator: idempotency.NewCoordinator(db),
		Sender:      h.sender,
		BaseURL:     "https://newsletter.example.com",
	})
	require.NoError(t, err)
	h.router = handler.Router()
	return h
}

// signIn arranges a valid session for requests carrying sessionCookie.
func (h *harness) signIn(t *testing.T) (*auth.Session, *http.Cookie) {
	t.Helper()
	token, tokenHash, err := auth.GenerateSessionToken()
	require.NoError(t, err)

	session := &auth.Session{
		ID:        ulid.Make(),
		UserID:    auth.NewUserID(),
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	h.sessions.On("GetByTokenHash", mock.Anything, tokenHash).Return(session, nil)
	h.sessions.On("UpdateLastSeen", mock.Anything, session.ID, mock.AnythingOfType("time.Time")).Return(nil).Maybe()

	return session, &http.Cookie{Name: "session", Value: token}
}

func postForm(t *testing.T, router http.Handler, path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, router http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func flashCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "_flash" && c.MaxAge >= 0 {
			return c
		}
	}
	t.Fatal("no flash cookie set")
	return nil
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t)

	rec := get(t, h.router, "/health_check")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestSubscribe(t *testing.T) {
	t.Run("valid form data", func(t *testing.T) {
		h := newHarness(t)

		rec := postForm(t, h.router, "/subscriptions", url.Values{
			"email": {"reader@example.com"},
			"name":  {"Jane Reader"},
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, h.subscribers.inserted, 1)
		assert.Equal(t, "reader@example.com", h.subscribers.inserted[0].Email.String())
	})

	t.Run("invalid email", func(t *testing.T) {
		h := newHarness(t)

		rec := postForm(t, h.router, "/subscriptions", url.Values{
			"email": {"definitely-not-an-email"},
			"name":  {"Jane Reader"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, h.subscribers.inserted)
	})

	t.Run("invalid name", func(t *testing.T) {
		h := newHarness(t)

		rec := postForm(t, h.router, "/subscriptions", url.Values{
			"email": {"reader@example.com"},
			"name":  {"<script>"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate address is idempotent", func(t *testing.T) {
		h := newHarness(t)
		h.subscribers.insertErr = subscriber.ErrDuplicateEmail

		rec := postForm(t, h.router, "/subscriptions", url.Values{
			"email": {"reader@example.com"},
			"name":  {"Jane Reader"},
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestLogin(t *testing.T) {
	form := url.Values{
		"username": {"editor"},
		"password": {"hunter2hunter2"},
	}

	t.Run("valid credentials redirect to the dashboard", func(t *testing.T) {
		h := newHarness(t)

		user := &auth.User{ID: auth.NewUserID(), Username: "editor", PasswordHash: "stored-hash"}
		h.users.On("GetByUsername", mock.Anything, "editor").Return(user, nil)
		h.hasher.On("Verify", "hunter2hunter2", "stored-hash").Return(true, nil)
		h.sessions.On("Create", mock.Anything, mock.AnythingOfType("*auth.Session")).Return(nil)

		rec := postForm(t, h.router, "/login", form)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/admin/dashboard", rec.Header().Get("Location"))

		var sessionCookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == "session" {
				sessionCookie = c
			}
		}
		require.NotNil(t, sessionCookie, "session cookie must be set")
		assert.True(t, sessionCookie.HttpOnly)
		assert.Len(t, sessionCookie.Value, 64)
	})

	t.Run("wrong password redirects back with a flash", func(t *testing.T) {
		h := newHarness(t)

		user := &auth.User{ID: auth.NewUserID(), Username: "editor", PasswordHash: "stored-hash"}
		h.users.On("GetByUsername", mock.Anything, "editor").Return(user, nil)
		h.hasher.On("Verify", "hunter2hunter2", "stored-hash").Return(false, nil)

		rec := postForm(t, h.router, "/login", form)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		flashCookie(t, rec)
	})

	t.Run("unknown username gets the identical response", func(t *testing.T) {
		h := newHarness(t)

		h.users.On("GetByUsername", mock.Anything, "editor").Return(nil, auth.ErrNotFound)
		h.hasher.On("Verify", "hunter2hunter2", mock.AnythingOfType("string")).Return(false, nil)

		rec := postForm(t, h.router, "/login", form)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		flashCookie(t, rec)
	})

	t.Run("unparseable password is treated as a failed attempt", func(t *testing.T) {
		h := newHarness(t)

		rec := postForm(t, h.router, "/login", url.Values{
			"username": {"editor"},
			"password": {"short"},
		})
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})
}

func TestLoginForm_ShowsFlash(t *testing.T) {
	h := newHarness(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{
		Name:  "_flash",
		Value: base64.URLEncoding.EncodeToString([]byte("Authentication failed")),
	})
	h.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authentication failed")

	// The flash must be cleared after rendering once.
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "_flash" && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "flash cookie must be cleared")
}

func TestSessionGate(t *testing.T) {
	t.Run("no cookie redirects to login", func(t *testing.T) {
		h := newHarness(t)

		rec := get(t, h.router, "/admin/dashboard")
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("invalid token redirects to login", func(t *testing.T) {
		h := newHarness(t)

		h.sessions.On("GetByTokenHash", mock.Anything, mock.AnythingOfType("string")).Return(nil, auth.ErrNotFound)

		rec := get(t, h.router, "/admin/dashboard", &http.Cookie{Name: "session", Value: "bogus"})
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("valid session reaches the dashboard", func(t *testing.T) {
		h := newHarness(t)
		session, cookie := h.signIn(t)

		rec := get(t, h.router, "/admin/dashboard", cookie)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), session.UserID.String())
	})

	t.Run("storage failure answers 500, not a redirect", func(t *testing.T) {
		h := newHarness(t)

		h.sessions.On("GetByTokenHash", mock.Anything, mock.AnythingOfType("string")).Return(nil, assert.AnError)

		rec := get(t, h.router, "/admin/dashboard", &http.Cookie{Name: "session", Value: "bogus"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Empty(t, rec.Header().Get("Location"))
	})
}

// brokenValidator simulates session storage being unreachable.
type brokenValidator struct{ err error }

func (v *brokenValidator) ValidateSession(context.Context, string) (*auth.Session, error) {
	return nil, v.err
}

func TestSessionGate_LogsStorageFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	infraErr := oops.Code("SESSION_VALIDATE_FAILED").Errorf("connection refused")
	gate := web.SessionGate(&brokenValidator{err: infraErr}, logger)
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run when validation fails")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "whatever"})
	gate(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "session validation failed")
	assert.Contains(t, buf.String(), "SESSION_VALIDATE_FAILED")
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	session, cookie := h.signIn(t)

	h.sessions.On("Delete", mock.Anything, session.ID).Return(nil)

	rec := postForm(t, h.router, "/admin/logout", url.Values{}, cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "session cookie must be cleared")
}
