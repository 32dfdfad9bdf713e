// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that start with a letter and contain only
// letters, numbers, and underscores.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// UserID identifies a user account. A distinct type keeps it from being
// confused with subscriber or session identifiers in request contexts.
type UserID ulid.ULID

// NewUserID generates a new user ID.
func NewUserID() UserID {
	return UserID(ulid.Make())
}

// String returns the canonical ULID encoding.
func (id UserID) String() string {
	return ulid.ULID(id).String()
}

// IsZero reports whether the ID is the zero value.
func (id UserID) IsZero() bool {
	return ulid.ULID(id).Compare(ulid.ULID{}) == 0
}

// ParseUserID parses the canonical ULID encoding.
func ParseUserID(s string) (UserID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return UserID{}, oops.Code("AUTH_INVALID_USER_ID").With("user_id", s).Wrap(err)
	}
	return UserID(id), nil
}

// User represents an editor account that can sign in and publish newsletters.
type User struct {
	ID           UserID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidateUsername checks username constraints.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// Credentials is a transient username/password pair. It is never persisted;
// the plaintext lives only for the duration of a single validation call.
type Credentials struct {
	Username string
	Password Password
}

// UserRepository manages user account persistence.
type UserRepository interface {
	// Create stores a new user account.
	Create(ctx context.Context, user *User) error

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByEmail retrieves a user by email address.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id UserID) (*User, error)

	// UpdatePasswordHash overwrites the stored password hash.
	UpdatePasswordHash(ctx context.Context, id UserID, passwordHash string) error
}
