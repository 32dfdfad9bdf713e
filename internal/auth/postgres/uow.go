// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package postgres

import (
	"context"

	"github.com/samber/oops"

	"github.com/inkletter/inkletter/internal/auth"
)

// ResetUnitOfWork implements auth.ResetUnitOfWork: it hands fn user and reset
// repositories bound to one transaction, committing only when fn succeeds.
// pgx.Tx satisfies the DB interface, so the regular repositories are reused
// unchanged inside the transaction.
type ResetUnitOfWork struct {
	db DB
}

// NewResetUnitOfWork creates a ResetUnitOfWork.
func NewResetUnitOfWork(db DB) *ResetUnitOfWork {
	return &ResetUnitOfWork{db: db}
}

// WithinTx runs fn inside a transaction.
func (u *ResetUnitOfWork) WithinTx(ctx context.Context, fn func(users auth.UserRepository, resets auth.PasswordResetRepository) error) error {
	tx, err := u.db.Begin(ctx)
	if err != nil {
		return oops.Code("RESET_TX_BEGIN_FAILED").Wrap(err)
	}
	// Rollback after Commit returns pgx.ErrTxClosed, which is fine here.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewUserRepository(tx), NewPasswordResetRepository(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("RESET_TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.ResetUnitOfWork = (*ResetUnitOfWork)(nil)
