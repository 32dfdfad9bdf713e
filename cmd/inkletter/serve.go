// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkletter/inkletter/internal/auth"
	authpg "github.com/inkletter/inkletter/internal/auth/postgres"
	"github.com/inkletter/inkletter/internal/config"
	"github.com/inkletter/inkletter/internal/email"
	"github.com/inkletter/inkletter/internal/idempotency"
	"github.com/inkletter/inkletter/internal/logging"
	"github.com/inkletter/inkletter/internal/newsletter"
	"github.com/inkletter/inkletter/internal/observability"
	"github.com/inkletter/inkletter/internal/store"
	"github.com/inkletter/inkletter/internal/subscriber"
	"github.com/inkletter/inkletter/internal/web"
)

// shutdownTimeout bounds graceful shutdown of the HTTP servers.
const shutdownTimeout = 15 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the newsletter service",
		Long: `Start the HTTP application server along with the observability
server. Blocks until SIGINT or SIGTERM, then shuts down gracefully.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}

	cmd.Flags().String("app.addr", "", "application listen address")
	cmd.Flags().String("metrics.addr", "", "metrics/health listen address (empty = disabled)")
	cmd.Flags().String("log.format", "", "log format (json or text)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("inkletter", version, cfg.Log.Format)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database.URL.Expose())
	if err != nil {
		return err
	}
	defer pool.Close()

	logger.Info("database connected")

	// Observability server (optional)
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obs := observability.NewServer(cfg.Metrics.Addr, func() bool {
			pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return pool.Ping(pingCtx) == nil
		})
		obsErrCh, err := obs.Start()
		if err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := obs.Stop(stopCtx); err != nil {
				logger.Error("failed to stop observability server", "error", err)
			}
		}()
		go func() {
			if obsErr := <-obsErrCh; obsErr != nil {
				logger.Error("observability server error", "error", obsErr)
			}
		}()
		metrics = obs.Metrics()
	}

	// Domain wiring
	hasher := auth.NewArgon2idHasher(cfg.Auth.Pepper)
	blocking := auth.NewBlockingPool(cfg.Auth.HashWorkers)

	users := authpg.NewUserRepository(pool)
	sessions := authpg.NewSessionRepository(pool)
	resets := authpg.NewPasswordResetRepository(pool)
	uow := authpg.NewResetUnitOfWork(pool)

	authService, err := auth.NewService(users, sessions, hasher, blocking)
	if err != nil {
		return err
	}
	resetService, err := auth.NewPasswordResetService(users, resets, uow, hasher, blocking)
	if err != nil {
		return err
	}

	subscribers := subscriber.NewPostgresRepository(pool, logger)
	sender := email.NewClient(cfg.Email)
	publisher, err := newsletter.NewPublisher(subscribers, sender, logger)
	if err != nil {
		return err
	}
	coordinator := idempotency.NewCoordinator(pool)

	handler, err := web.NewHandler(web.HandlerConfig{
		Logger:      logger,
		Auth:        authService,
		Resets:      resetService,
		Subscribers: subscribers,
		Publisher:   publisher,
		Coordinator: coordinator,
		Sender:      sender,
		Metrics:     metrics,
		BaseURL:     cfg.App.BaseURL,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.App.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErrCh := make(chan error, 1)
	go func() {
		logger.Info("application server started", "addr", cfg.App.Addr)
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			srvErrCh <- serveErr
		}
	}()

	select {
	case err := <-srvErrCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
