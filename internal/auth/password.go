// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package auth

import (
	"strings"

	"github.com/samber/oops"
)

// Password length policy, measured in bytes (ASCII only, so also runes).
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// Password is a validated plaintext password. It exists only in memory for
// the duration of a hashing or verification call and redacts itself when
// formatted.
type Password struct {
	value string
}

// ParsePassword validates a candidate password against the policy:
// ASCII only, 8 to 128 bytes, not blank or whitespace-only.
func ParsePassword(s string) (Password, error) {
	if strings.TrimSpace(s) == "" {
		return Password{}, oops.Code("AUTH_PASSWORD_INVALID").Errorf("password cannot be empty or only whitespace")
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return Password{}, oops.Code("AUTH_PASSWORD_INVALID").Errorf("password must contain ASCII characters only")
		}
	}
	if len(s) < MinPasswordLength {
		return Password{}, oops.Code("AUTH_PASSWORD_INVALID").Errorf("password must be %d characters or longer", MinPasswordLength)
	}
	if len(s) > MaxPasswordLength {
		return Password{}, oops.Code("AUTH_PASSWORD_INVALID").Errorf("password must be %d characters or shorter", MaxPasswordLength)
	}
	return Password{value: s}, nil
}

// Expose returns the plaintext. Callers hand it straight to the hasher and
// drop the Password value afterwards.
func (p Password) Expose() string {
	return p.value
}

// String implements fmt.Stringer and always redacts.
func (p Password) String() string {
	return "[REDACTED]"
}

// GoString redacts %#v formatting as well.
func (p Password) GoString() string {
	return "auth.Password{}"
}
