// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

//go:build integration

package integration

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/inkletter/inkletter/internal/auth"
	authpg "github.com/inkletter/inkletter/internal/auth/postgres"
	"github.com/inkletter/inkletter/internal/config"
	"github.com/inkletter/inkletter/internal/idempotency"
	"github.com/inkletter/inkletter/internal/store"
	"github.com/inkletter/inkletter/internal/subscriber"
)

// testEnv holds the shared resources for the integration suite.
type testEnv struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container testcontainers.Container
	pool      *pgxpool.Pool

	authService  *auth.Service
	resetService *auth.PasswordResetService
	users        *authpg.UserRepository
	subscribers  *subscriber.PostgresRepository
	coordinator  *idempotency.Coordinator
}

var env *testEnv

var _ = BeforeSuite(func() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	env = &testEnv{ctx: ctx, cancel: cancel}

	container, err := tcpostgres.Run(ctx,
		"postgres:18-alpine",
		tcpostgres.WithDatabase("inkletter_test"),
		tcpostgres.WithUsername("inkletter"),
		tcpostgres.WithPassword("inkletter"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())
	env.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	pool, err := store.Connect(ctx, connStr)
	Expect(err).NotTo(HaveOccurred())
	env.pool = pool

	hasher := auth.NewArgon2idHasher(config.NewSecret("integration-pepper"))
	blocking := auth.NewBlockingPool(2)

	env.users = authpg.NewUserRepository(pool)
	sessions := authpg.NewSessionRepository(pool)
	resets := authpg.NewPasswordResetRepository(pool)
	uow := authpg.NewResetUnitOfWork(pool)

	env.authService, err = auth.NewService(env.users, sessions, hasher, blocking)
	Expect(err).NotTo(HaveOccurred())
	env.resetService, err = auth.NewPasswordResetService(env.users, resets, uow, hasher, blocking)
	Expect(err).NotTo(HaveOccurred())

	env.subscribers = subscriber.NewPostgresRepository(pool, nil)
	env.coordinator = idempotency.NewCoordinator(pool)

	// Seed the editor account the specs authenticate as.
	hash, err := hasher.Hash("the original password")
	Expect(err).NotTo(HaveOccurred())
	now := time.Now()
	Expect(env.users.Create(ctx, &auth.User{
		ID:           auth.NewUserID(),
		Username:     "editor",
		Email:        "editor@example.com",
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})).To(Succeed())

	// A second account owned by the reset specs, so the password change
	// cannot race the login specs under randomized ordering.
	Expect(env.users.Create(ctx, &auth.User{
		ID:           auth.NewUserID(),
		Username:     "forgetful",
		Email:        "forgetful@example.com",
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})).To(Succeed())
})

var _ = AfterSuite(func() {
	if env == nil {
		return
	}
	if env.pool != nil {
		env.pool.Close()
	}
	if env.container != nil {
		Expect(env.container.Terminate(context.Background())).To(Succeed())
	}
	env.cancel()
})

func mustPassword(raw string) auth.Password {
	p, err := auth.ParsePassword(raw)
	Expect(err).NotTo(HaveOccurred())
	return p
}

var _ = Describe("Authentication", func() {
	It("opens and validates a session for valid credentials", func() {
		session, token, err := env.authService.Login(env.ctx, auth.Credentials{
			Username: "editor",
			Password: mustPassword("the original password"),
		}, "integration-test", "127.0.0.1")
		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(HaveLen(64))

		validated, err := env.authService.ValidateSession(env.ctx, token)
		Expect(err).NotTo(HaveOccurred())
		Expect(validated.UserID).To(Equal(session.UserID))

		Expect(env.authService.Logout(env.ctx, session.ID)).To(Succeed())

		_, err = env.authService.ValidateSession(env.ctx, token)
		Expect(err).To(HaveOccurred())
	})

	It("rejects wrong passwords and unknown usernames identically", func() {
		_, err := env.authService.ValidateCredentials(env.ctx, auth.Credentials{
			Username: "editor",
			Password: mustPassword("definitely not it"),
		})
		Expect(err).To(MatchError(auth.ErrInvalidCredentials))

		_, err = env.authService.ValidateCredentials(env.ctx, auth.Credentials{
			Username: "nobody",
			Password: mustPassword("definitely not it"),
		})
		Expect(err).To(MatchError(auth.ErrInvalidCredentials))
	})
})

var _ = Describe("Password reset", func() {
	It("walks the full request, confirm, and re-login flow", func() {
		token, user, err := env.resetService.RequestReset(env.ctx, "forgetful@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(user).NotTo(BeNil())
		Expect(token.String()).To(HaveLen(auth.ResetTokenLength))

		userID, err := env.resetService.ValidateToken(env.ctx, token.String())
		Expect(err).NotTo(HaveOccurred())
		Expect(userID).To(Equal(user.ID))

		Expect(env.resetService.ResetPassword(env.ctx, token.String(), mustPassword("a replacement password"))).
			To(Succeed())

		// Old password no longer works, the new one does.
		_, err = env.authService.ValidateCredentials(env.ctx, auth.Credentials{
			Username: "forgetful",
			Password: mustPassword("the original password"),
		})
		Expect(err).To(MatchError(auth.ErrInvalidCredentials))

		_, err = env.authService.ValidateCredentials(env.ctx, auth.Credentials{
			Username: "forgetful",
			Password: mustPassword("a replacement password"),
		})
		Expect(err).NotTo(HaveOccurred())

		// A consumed token cannot be used again.
		err = env.resetService.ResetPassword(env.ctx, token.String(), mustPassword("yet another password"))
		Expect(err).To(MatchError(auth.ErrInvalidToken))
	})

	It("reports success for unregistered addresses without issuing a token", func() {
		token, user, err := env.resetService.RequestReset(env.ctx, "ghost@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(user).To(BeNil())
		Expect(token.String()).To(BeEmpty())
	})
})

var _ = Describe("Subscribers", func() {
	It("stores subscribers and rejects duplicate addresses", func() {
		addr, err := subscriber.ParseEmailAddress("reader@example.com")
		Expect(err).NotTo(HaveOccurred())
		sub, err := subscriber.NewSubscriber(addr, "Jane Reader")
		Expect(err).NotTo(HaveOccurred())

		Expect(env.subscribers.Insert(env.ctx, sub)).To(Succeed())

		dup, err := subscriber.NewSubscriber(addr, "Jane Again")
		Expect(err).NotTo(HaveOccurred())
		Expect(env.subscribers.Insert(env.ctx, dup)).To(MatchError(subscriber.ErrDuplicateEmail))
	})

	It("lists only confirmed subscribers", func() {
		addr, err := subscriber.ParseEmailAddress("confirmed@example.com")
		Expect(err).NotTo(HaveOccurred())
		sub, err := subscriber.NewSubscriber(addr, "Confirmed Reader")
		Expect(err).NotTo(HaveOccurred())
		sub.Status = subscriber.StatusConfirmed
		Expect(env.subscribers.Insert(env.ctx, sub)).To(Succeed())

		emails, err := env.subscribers.ConfirmedEmails(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(emails).To(ContainElement(addr))
		// Pending subscribers from the previous spec stay out of the list.
		pending, err := subscriber.ParseEmailAddress("reader@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(emails).NotTo(ContainElement(pending))
	})
})

var _ = Describe("Idempotent publication", func() {
	It("records the first response and replays it on retry", func() {
		userID := auth.NewUserID()
		key, err := idempotency.ParseKey("issue-" + ulid.Make().String())
		Expect(err).NotTo(HaveOccurred())

		txn, saved, err := env.coordinator.TryProcessing(env.ctx, userID, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(saved).To(BeNil())
		Expect(txn).NotTo(BeNil())

		resp := idempotency.SavedResponse{
			StatusCode: http.StatusSeeOther,
			Headers:    http.Header{"Location": []string{"/admin/newsletters"}},
			Body:       []byte("see other"),
		}
		Expect(env.coordinator.SaveResponse(env.ctx, txn, userID, key, resp)).To(Succeed())

		txn, replayed, err := env.coordinator.TryProcessing(env.ctx, userID, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(txn).To(BeNil())
		Expect(replayed).NotTo(BeNil())
		Expect(replayed.StatusCode).To(Equal(http.StatusSeeOther))
		Expect(replayed.Headers.Get("Location")).To(Equal("/admin/newsletters"))
		Expect(replayed.Body).To(Equal([]byte("see other")))
	})

	It("scopes keys per user", func() {
		key, err := idempotency.ParseKey("shared-key")
		Expect(err).NotTo(HaveOccurred())

		first := auth.NewUserID()
		txn, _, err := env.coordinator.TryProcessing(env.ctx, first, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.coordinator.SaveResponse(env.ctx, txn, first, key, idempotency.SavedResponse{
			StatusCode: http.StatusSeeOther,
			Headers:    http.Header{},
		})).To(Succeed())

		// The same key under a different user starts fresh.
		second := auth.NewUserID()
		txn, saved, err := env.coordinator.TryProcessing(env.ctx, second, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(saved).To(BeNil())
		Expect(txn).NotTo(BeNil())
		env.coordinator.Abort(env.ctx, txn)
	})
})
