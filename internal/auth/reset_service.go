// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ResetUnitOfWork runs fn with repositories bound to a single database
// transaction. Used to couple the password overwrite and the token's
// used_at transition atomically: a crash between the two must not leave a
// spent-but-still-valid token behind.
type ResetUnitOfWork interface {
	WithinTx(ctx context.Context, fn func(users UserRepository, resets PasswordResetRepository) error) error
}

// PasswordResetService handles the reset token lifecycle: issue on request,
// validate on confirm, consume exactly once on success.
type PasswordResetService struct {
	users  UserRepository
	resets PasswordResetRepository
	uow    ResetUnitOfWork
	hasher PasswordHasher
	pool   *BlockingPool
}

// NewPasswordResetService creates a PasswordResetService. All dependencies
// are required.
func NewPasswordResetService(users UserRepository, resets PasswordResetRepository, uow ResetUnitOfWork, hasher PasswordHasher, pool *BlockingPool) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("user repository is required")
	}
	if resets == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("reset repository is required")
	}
	if uow == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("unit of work is required")
	}
	if hasher == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if pool == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("blocking pool is required")
	}
	return &PasswordResetService{
		users:  users,
		resets: resets,
		uow:    uow,
		hasher: hasher,
		pool:   pool,
	}, nil
}

// RequestReset issues a reset token for the account registered under email.
// If no such account exists it reports success with an empty token, so the
// response gives no signal about which addresses are registered. The raw
// token is returned for the emailed link and never persisted; only its hash
// is stored.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (ResetToken, *User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ResetToken{}, nil, nil
		}
		return ResetToken{}, nil, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, err := GenerateResetToken()
	if err != nil {
		return ResetToken{}, nil, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	now := time.Now()
	reset := &PasswordReset{
		ID:        ulid.Make(),
		UserID:    user.ID,
		TokenHash: token.Hash(),
		ExpiresAt: now.Add(ResetTokenExpiry),
		CreatedAt: now,
	}

	if err := s.resets.Create(ctx, reset); err != nil {
		return ResetToken{}, nil, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "create reset").
			Wrap(err)
	}

	return token, user, nil
}

// ValidateToken checks a raw token and returns the owning user ID.
// Format violations surface ErrMalformedToken before any lookup; not-found,
// expired, and already-used all collapse into ErrInvalidToken.
func (s *PasswordResetService) ValidateToken(ctx context.Context, rawToken string) (UserID, error) {
	token, err := ParseResetToken(rawToken)
	if err != nil {
		return UserID{}, err
	}

	reset, err := s.resets.GetValidByTokenHash(ctx, token.Hash())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return UserID{}, oops.Wrap(ErrInvalidToken)
		}
		return UserID{}, oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "get reset by token hash").
			Wrap(err)
	}

	return reset.UserID, nil
}

// ResetPassword consumes a valid token and replaces the user's password.
// The hash overwrite and the token's used_at transition commit in one
// transaction, so a retry after a mid-flight crash sees either a fully valid
// or a fully spent token, never the in-between.
func (s *PasswordResetService) ResetPassword(ctx context.Context, rawToken string, newPassword Password) error {
	token, err := ParseResetToken(rawToken)
	if err != nil {
		return err
	}

	userID, err := s.ValidateToken(ctx, rawToken)
	if err != nil {
		return err
	}

	// Hash outside the transaction; argon2 work has no business holding a
	// database transaction open for tens of milliseconds.
	var hash string
	var hashErr error
	if poolErr := s.pool.Run(ctx, func() {
		hash, hashErr = s.hasher.Hash(newPassword.Expose())
	}); poolErr != nil {
		return poolErr
	}
	if hashErr != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(hashErr)
	}

	err = s.uow.WithinTx(ctx, func(users UserRepository, resets PasswordResetRepository) error {
		if err := users.UpdatePasswordHash(ctx, userID, hash); err != nil {
			return oops.Code("RESET_PASSWORD_FAILED").
				With("operation", "update password hash").
				Wrap(err)
		}
		if err := resets.MarkUsed(ctx, token.Hash(), time.Now()); err != nil {
			// A concurrent confirm already consumed the token; roll back the
			// password change and report the token as invalid.
			if errors.Is(err, ErrNotFound) {
				return oops.Wrap(ErrInvalidToken)
			}
			return oops.Code("RESET_PASSWORD_FAILED").
				With("operation", "mark token used").
				Wrap(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return nil
}
