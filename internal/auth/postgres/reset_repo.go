// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/inkletter/inkletter/internal/auth"
)

// PasswordResetRepository implements auth.PasswordResetRepository using
// PostgreSQL.
type PasswordResetRepository struct {
	db DB
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(db DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Create stores a new password reset request.
func (r *PasswordResetRepository) Create(ctx context.Context, reset *auth.PasswordReset) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO password_resets (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, reset.ID.String(), reset.UserID.String(), reset.TokenHash, reset.ExpiresAt, reset.CreatedAt)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password_reset").
			With("user_id", reset.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetValidByTokenHash retrieves a reset that is neither used nor expired.
// Not-found, expired, and already-used are indistinguishable: all surface as
// auth.ErrNotFound.
func (r *PasswordResetRepository) GetValidByTokenHash(ctx context.Context, tokenHash string) (*auth.PasswordReset, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM password_resets
		WHERE token_hash = $1
		  AND used_at IS NULL
		  AND expires_at > $2
	`, tokenHash, time.Now())

	reset, err := r.scanReset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RESET_GET_FAILED").
			With("operation", "get reset by token hash").
			Wrap(err)
	}
	return reset, nil
}

// MarkUsed sets used_at. The used_at IS NULL guard plus the rows-affected
// check make the Issued -> Used transition happen exactly once; a second
// caller sees auth.ErrNotFound.
func (r *PasswordResetRepository) MarkUsed(ctx context.Context, tokenHash string, usedAt time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE password_resets
		SET used_at = $1
		WHERE token_hash = $2 AND used_at IS NULL
	`, usedAt, tokenHash)
	if err != nil {
		return oops.Code("RESET_MARK_USED_FAILED").
			With("operation", "mark reset used").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes all expired reset requests and returns the count.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM password_resets WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired password_resets").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanReset scans a single row into a PasswordReset.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *PasswordResetRepository) scanReset(row pgx.Row) (*auth.PasswordReset, error) {
	var (
		idStr     string
		userIDStr string
		tokenHash string
		expiresAt time.Time
		usedAt    *time.Time
		createdAt time.Time
	)

	err := row.Scan(&idStr, &userIDStr, &tokenHash, &expiresAt, &usedAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("RESET_SCAN_FAILED").
			With("operation", "scan password_reset").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}

	userID, err := auth.ParseUserID(userIDStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_USER_ID").
			With("user_id", userIDStr).
			Wrap(err)
	}

	return &auth.PasswordReset{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		UsedAt:    usedAt,
		CreatedAt: createdAt,
	}, nil
}

// Compile-time interface check.
var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
