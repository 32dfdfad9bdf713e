// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Reset token configuration. Tokens are fixed-length alphanumeric strings;
// a fixed length keeps the format check trivial and the URL short.
const (
	ResetTokenLength = 25
	ResetTokenExpiry = time.Hour
)

// resetTokenAlphabet is the character set raw reset tokens are drawn from.
const resetTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// PasswordReset represents a password reset request. Rows transition used_at
// exactly once and are never deleted, leaving an audit trail.
type PasswordReset struct {
	ID        ulid.ULID
	UserID    UserID
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the reset token has expired.
func (r *PasswordReset) IsExpired() bool {
	return time.Now().After(r.ExpiresAt)
}

// IsUsed returns true if the token has already been consumed.
func (r *PasswordReset) IsUsed() bool {
	return r.UsedAt != nil
}

// ResetToken is a format-validated raw reset token.
type ResetToken struct {
	value string
}

// ParseResetToken validates the shape of a raw token before any lookup:
// exactly ResetTokenLength chars, ASCII alphanumeric only. Failures return
// ErrMalformedToken, which maps to a client input error rather than the
// generic invalid-token outcome.
func ParseResetToken(s string) (ResetToken, error) {
	if strings.TrimSpace(s) == "" {
		return ResetToken{}, oops.Wrap(ErrMalformedToken)
	}
	if len(s) != ResetTokenLength {
		return ResetToken{}, oops.With("length", len(s)).Wrap(ErrMalformedToken)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return ResetToken{}, oops.Wrap(ErrMalformedToken)
		}
	}
	return ResetToken{value: s}, nil
}

// String returns the raw token value for embedding in the reset link.
func (t ResetToken) String() string {
	return t.value
}

// Hash returns the SHA256 hex digest stored in place of the raw token.
func (t ResetToken) Hash() string {
	return HashResetToken(t.value)
}

// GenerateResetToken creates a uniformly random alphanumeric token.
// The raw token is emailed to the user; only its hash is persisted, so a
// database read never yields a usable credential.
func GenerateResetToken() (ResetToken, error) {
	var b strings.Builder
	b.Grow(ResetTokenLength)
	alphabetLen := big.NewInt(int64(len(resetTokenAlphabet)))
	for i := 0; i < ResetTokenLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return ResetToken{}, oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
		}
		b.WriteByte(resetTokenAlphabet[n.Int64()])
	}
	return ResetToken{value: b.String()}, nil
}

// HashResetToken computes the SHA256 hex digest of a raw token.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	// Create stores a new password reset request.
	Create(ctx context.Context, reset *PasswordReset) error

	// GetValidByTokenHash retrieves a reset that is neither used nor expired.
	// Not-found covers all three failure causes indistinguishably.
	GetValidByTokenHash(ctx context.Context, tokenHash string) (*PasswordReset, error)

	// MarkUsed sets used_at, guarded so the transition happens exactly once.
	MarkUsed(ctx context.Context, tokenHash string, usedAt time.Time) error

	// DeleteExpired removes expired reset rows and returns the count.
	// Operator tooling only; the service itself never deletes rows.
	DeleteExpired(ctx context.Context) (int64, error)
}
