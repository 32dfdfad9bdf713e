// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package subscriber

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository implements Repository backed by Postgres.
type PostgresRepository struct {
	db     DB
	logger *slog.Logger
}

// NewPostgresRepository creates a subscriber repository.
func NewPostgresRepository(db DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// Insert stores a new subscriber.
func (r *PostgresRepository) Insert(ctx context.Context, sub *Subscriber) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO subscriptions (id, email, name, status, subscribed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		sub.ID.String(), sub.Email.String(), sub.Name, sub.Status, sub.SubscribedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("SUBSCRIBER_DUPLICATE").
				With("email", sub.Email.String()).
				Wrap(ErrDuplicateEmail)
		}
		return oops.Code("SUBSCRIBER_INSERT_FAILED").
			With("subscriber_id", sub.ID.String()).
			Wrapf(err, "inserting subscriber")
	}
	return nil
}

// ConfirmedEmails returns the addresses of all confirmed subscribers.
// Rows that no longer parse as valid addresses are logged and skipped so one
// bad historical record cannot block a publish.
func (r *PostgresRepository) ConfirmedEmails(ctx context.Context) ([]EmailAddress, error) {
	errb := oops.Code("SUBSCRIBER_QUERY_FAILED")

	rows, err := r.db.Query(ctx, `
		SELECT email FROM subscriptions WHERE status = $1`,
		StatusConfirmed,
	)
	if err != nil {
		return nil, errb.Wrapf(err, "querying confirmed subscribers")
	}
	defer rows.Close()

	var emails []EmailAddress
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errb.Wrapf(err, "scanning subscriber row")
		}
		email, err := ParseEmailAddress(raw)
		if err != nil {
			r.logger.Warn("skipping confirmed subscriber with invalid stored email",
				slog.String("email", raw),
				slog.String("error", err.Error()))
			continue
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, errb.Wrapf(err, "iterating subscriber rows")
	}
	return emails, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
