// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

// Package logging provides structured logging with OpenTelemetry trace context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// spanHandler decorates a slog.Handler with service identity and, when the
// context carries an active span, the trace and span IDs.
type spanHandler struct {
	next    slog.Handler
	service string
	version string
}

func (h *spanHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := []slog.Attr{
		slog.String("service", h.service),
		slog.String("version", h.version),
	}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
		if sc.HasSpanID() {
			attrs = append(attrs, slog.String("span_id", sc.SpanID().String()))
		}
	}
	r.AddAttrs(attrs...)

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.next.Handle(ctx, r)
}

func (h *spanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *spanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &spanHandler{next: h.next.WithAttrs(attrs), service: h.service, version: h.version}
}

func (h *spanHandler) WithGroup(name string) slog.Handler {
	return &spanHandler{next: h.next.WithGroup(name), service: h.service, version: h.version}
}

// Setup builds a logger writing to w (os.Stderr when nil). Format is "json"
// or "text"; anything else falls back to JSON.
func Setup(service, version, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var base slog.Handler
	if format == "text" {
		base = slog.NewTextHandler(w, opts)
	} else {
		base = slog.NewJSONHandler(w, opts)
	}

	return slog.New(&spanHandler{next: base, service: service, version: version})
}

// SetDefault installs a Setup logger as the process default.
func SetDefault(service, version, format string) {
	slog.SetDefault(Setup(service, version, format, nil))
}
