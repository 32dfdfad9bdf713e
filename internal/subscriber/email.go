// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

// Package subscriber holds the newsletter audience: validated email
// addresses, subscriber records, and their Postgres persistence.
package subscriber

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
)

// MaxEmailLength bounds stored addresses.
const MaxEmailLength = 256

var validate = validator.New(validator.WithRequiredStructEnabled())

// EmailAddress is a syntactically valid email address. The zero value is
// invalid; construct via ParseEmailAddress.
type EmailAddress struct {
	value string
}

// ParseEmailAddress validates a raw address.
func ParseEmailAddress(s string) (EmailAddress, error) {
	trimmed := strings.TrimSpace(s)
	errb := oops.Code("SUBSCRIBER_INVALID_EMAIL")
	if trimmed == "" {
		return EmailAddress{}, errb.Errorf("email address cannot be empty")
	}
	if len(trimmed) > MaxEmailLength {
		return EmailAddress{}, errb.With("length", len(trimmed)).
			Errorf("email address must be at most %d characters", MaxEmailLength)
	}
	if err := validate.Var(trimmed, "required,email"); err != nil {
		return EmailAddress{}, errb.Errorf("%q is not a valid email address", trimmed)
	}
	return EmailAddress{value: trimmed}, nil
}

// String returns the address.
func (e EmailAddress) String() string {
	return e.value
}

// IsZero reports whether the address is unset.
func (e EmailAddress) IsZero() bool {
	return e.value == ""
}
