// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func logOneJSON(t *testing.T, logger *slog.Logger, ctx context.Context, msg string, buf *bytes.Buffer) map[string]any {
	t.Helper()
	logger.InfoContext(ctx, msg)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "output is not JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONCarriesServiceIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("inkletter", "1.0.0", "json", &buf)

	entry := logOneJSON(t, logger, context.Background(), "hello", &buf)

	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "inkletter", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "level")
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("inkletter-migrate", "1.0.0", "text", &buf)

	logger.Info("plain text entry")

	assert.Contains(t, buf.String(), "plain text entry")
	assert.Contains(t, buf.String(), "inkletter-migrate")
}

func TestSetup_UnknownFormatFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("inkletter", "1.0.0", "", &buf)

	entry := logOneJSON(t, logger, context.Background(), "fallback", &buf)
	assert.Equal(t, "fallback", entry["msg"])
}

func TestHandler_SpanContextInjected(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("inkletter", "1.0.0", "json", &buf)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	entry := logOneJSON(t, logger, ctx, "traced", &buf)

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_NoSpanContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("inkletter", "1.0.0", "json", &buf)

	entry := logOneJSON(t, logger, context.Background(), "untraced", &buf)

	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	SetDefault("test-service", "2.0.0", "json")

	assert.NotEqual(t, original, slog.Default())
}
