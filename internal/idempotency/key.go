// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

// Package idempotency deduplicates side-effecting POST requests. Each request
// carries a client-supplied key; the first request with a given (user, key)
// pair executes and its HTTP response is stored, and every identical retry
// replays the stored response instead of re-running the side effects.
package idempotency

import (
	"strings"

	"github.com/samber/oops"
)

// MaxKeyLength bounds client-supplied keys. Generous enough for a UUID or a
// hex digest, small enough to index comfortably.
const MaxKeyLength = 50

// Key is a validated client-supplied idempotency key. Keys are opaque:
// clients pick them, the server only requires them to be non-empty and
// reasonably short. Uniqueness is scoped per user, so two users sending the
// same key never collide.
type Key struct {
	value string
}

// ParseKey validates a raw idempotency key.
func ParseKey(s string) (Key, error) {
	if strings.TrimSpace(s) == "" {
		return Key{}, oops.Code("IDEMPOTENCY_KEY_INVALID").Errorf("the idempotency key cannot be empty")
	}
	if len(s) > MaxKeyLength {
		return Key{}, oops.Code("IDEMPOTENCY_KEY_INVALID").
			With("length", len(s)).
			Errorf("the idempotency key must be at most %d characters", MaxKeyLength)
	}
	return Key{value: s}, nil
}

// String returns the raw key value.
func (k Key) String() string {
	return k.value
}
