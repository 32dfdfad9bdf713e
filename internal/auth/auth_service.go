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

// fallbackPasswordHash is verified against when a username does not exist, so
// that credential validation costs the same amount of argon2 work either way
// and response latency cannot be used for username enumeration. It was
// generated with the same parameters as real hashes (m=15000, t=2, p=1); a
// parameter drift here would break the timing-equalization property.
// This is NOT a real credential - no password hashes to it.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const fallbackPasswordHash = "$argon2id$v=19$m=15000,t=2,p=1$gZiV/M1gPc22ElAH/Jh1Hw$CWOrkoo7oJBQ/iyh7uJ0LO2aLEfrHwTWllSAxT0zRno"

// Service provides credential validation and session management.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	hasher   PasswordHasher
	pool     *BlockingPool
}

// NewService creates a Service. All dependencies are required.
func NewService(users UserRepository, sessions SessionRepository, hasher PasswordHasher, pool *BlockingPool) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("user repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if pool == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("blocking pool is required")
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		pool:     pool,
	}, nil
}

// ValidateCredentials checks a username/password pair and returns the user ID
// on success. Unknown usernames still pay for a full verification against the
// fallback hash, so the two rejection causes are indistinguishable by timing
// as well as by error value: both surface ErrInvalidCredentials.
func (s *Service) ValidateCredentials(ctx context.Context, credentials Credentials) (UserID, error) {
	user, lookupErr := s.users.GetByUsername(ctx, credentials.Username)

	targetHash := fallbackPasswordHash
	userExists := false

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return UserID{}, oops.Code("AUTH_VALIDATE_FAILED").
				With("operation", "get user by username").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Verification is CPU-bound; run it on the pool reserved for blocking work.
	var valid bool
	var verifyErr error
	if poolErr := s.pool.Run(ctx, func() {
		valid, verifyErr = s.hasher.Verify(credentials.Password.Expose(), targetHash)
	}); poolErr != nil {
		return UserID{}, poolErr
	}

	if verifyErr != nil {
		if !userExists {
			return UserID{}, oops.Wrap(ErrInvalidCredentials)
		}
		return UserID{}, oops.Code("AUTH_VALIDATE_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	// Even if the fallback hash somehow matched, a non-existent user is never
	// authenticated.
	if !userExists || !valid {
		return UserID{}, oops.Wrap(ErrInvalidCredentials)
	}

	return user.ID, nil
}

// ChangePassword hashes the new password and overwrites the stored hash.
// It does not re-check the old password; the admin change-password handler
// enforces that one level up, and the reset-confirm flow has already proven
// possession of a valid token.
func (s *Service) ChangePassword(ctx context.Context, userID UserID, newPassword Password) error {
	var hash string
	var hashErr error
	if poolErr := s.pool.Run(ctx, func() {
		hash, hashErr = s.hasher.Hash(newPassword.Expose())
	}); poolErr != nil {
		return poolErr
	}
	if hashErr != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(hashErr)
	}

	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "update password hash").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// GetUser loads a user account by ID.
func (s *Service) GetUser(ctx context.Context, userID UserID) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code("AUTH_GET_USER_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return user, nil
}

// Login validates credentials and creates a session on success.
// Returns the session and the plaintext cookie token.
func (s *Service) Login(ctx context.Context, credentials Credentials, userAgent, ipAddress string) (*Session, string, error) {
	userID, err := s.ValidateCredentials(ctx, credentials)
	if err != nil {
		return nil, "", err
	}

	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(userID, tokenHash, userAgent, ipAddress, time.Now().Add(SessionTokenExpiry))
	if err != nil {
		return nil, "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	return session, token, nil
}

// Logout invalidates a session.
func (s *Service) Logout(ctx context.Context, sessionID ulid.ULID) error {
	err := s.sessions.Delete(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("SESSION_NOT_FOUND").
				With("session_id", sessionID.String()).
				Wrap(err)
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			With("session_id", sessionID.String()).
			Wrap(err)
	}
	return nil
}

// ValidateSession validates a session cookie token and returns the session if
// valid. Also refreshes the LastSeenAt timestamp. Missing, unknown, and
// expired tokens report ErrSessionInvalid; anything else is a storage failure.
func (s *Service) ValidateSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Wrapf(ErrSessionInvalid, "session token cannot be empty")
	}

	tokenHash := HashSessionToken(token)

	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("SESSION_INVALID").Wrapf(ErrSessionInvalid, "invalid session token")
		}
		return nil, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		return nil, oops.Code("SESSION_EXPIRED").Wrapf(ErrSessionInvalid, "session has expired")
	}

	// Update last seen timestamp (non-blocking, ignore errors)
	_ = s.sessions.UpdateLastSeen(ctx, session.ID, time.Now()) //nolint:errcheck // Best effort, validation succeeds regardless

	return session, nil
}
