// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// startServer starts s on an ephemeral port and registers shutdown cleanup.
func startServer(t *testing.T, s *Server) {
	t.Helper()
	_, err := s.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	require.NotEmpty(t, s.Addr())
}

func fetch(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	server := NewServer("127.0.0.1:0", func() bool { return true })
	startServer(t, server)

	m := server.Metrics()
	m.LoginAttemptsTotal.WithLabelValues("failure").Inc()
	m.LoginAttemptsTotal.WithLabelValues("failure").Inc()
	m.PasswordResetsTotal.WithLabelValues("requested").Inc()
	m.NewsletterPublishesTotal.WithLabelValues("published").Inc()
	m.EmailsSentTotal.Add(3)

	status, body := fetch(t, "http://"+server.Addr()+"/metrics")
	assert.Equal(t, http.StatusOK, status)

	// Prometheus exposition format with runtime collectors.
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "# TYPE")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")

	// Application counters with the values recorded above.
	assert.Contains(t, body, `inkletter_login_attempts_total{result="failure"} 2`)
	assert.Contains(t, body, `inkletter_password_resets_total{stage="requested"} 1`)
	assert.Contains(t, body, `inkletter_newsletter_publishes_total{result="published"} 1`)
	assert.Contains(t, body, `inkletter_emails_sent_total 3`)
}

func TestServer_HealthProbes(t *testing.T) {
	tests := []struct {
		name       string
		checker    ReadinessChecker
		path       string
		wantStatus int
		wantBody   string
	}{
		{"liveness is unconditional", func() bool { return false }, "/healthz/liveness", http.StatusOK, "ok\n"},
		{"ready", func() bool { return true }, "/healthz/readiness", http.StatusOK, "ok\n"},
		{"not ready", func() bool { return false }, "/healthz/readiness", http.StatusServiceUnavailable, "not ready\n"},
		{"nil checker means always ready", nil, "/healthz/readiness", http.StatusOK, "ok\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewServer("127.0.0.1:0", tt.checker)
			startServer(t, server)

			status, body := fetch(t, "http://"+server.Addr()+tt.path)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	startServer(t, server)

	_, err := server.Start()
	require.Error(t, err)
}

func TestServer_StopBeforeStartIsNoop(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))
}

func TestServer_ErrorChannelReportsServeFailure(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	errCh, err := server.Start()
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	}()

	// Yank the listener out from under Serve.
	require.NotNil(t, server.listener)
	require.NoError(t, server.listener.Close())

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("serve error never reached the error channel")
	}
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	errCh, err := server.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err, "graceful shutdown must not surface an error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error channel never closed after shutdown")
	}
}

func TestServer_StartStopNoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	server := NewServer("127.0.0.1:0", nil)

	errCh, err := server.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("serve goroutine did not exit")
	}
}
