// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
// Callers must present the exact same user-facing message for either cause.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrSessionInvalid covers missing, unknown, and expired session tokens.
// Storage failures during validation do not match this sentinel, so callers
// can tell "log in again" apart from "something is broken".
var ErrSessionInvalid = errors.New("invalid or expired session")

// ErrInvalidToken covers not-found, expired, and already-used reset tokens.
// The distinction is deliberately not surfaced (anti-enumeration).
var ErrInvalidToken = errors.New("invalid or expired password reset token")

// ErrMalformedToken is returned for tokens that fail format validation before
// any lookup happens. Distinct from ErrInvalidToken: this is a client input
// error, not a lifecycle outcome.
var ErrMalformedToken = errors.New("malformed password reset token")
