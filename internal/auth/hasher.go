// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

// Package auth provides authentication primitives for Inkletter: peppered
// argon2id password hashing, credential validation, web sessions, and the
// password reset token lifecycle.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"

	"github.com/inkletter/inkletter/internal/config"
)

// Argon2id parameters. These must stay in lockstep between Hash and Verify:
// a stored hash carrying different parameters is rejected, never reinterpreted.
const (
	argon2Memory  = 15000 // KiB
	argon2Time    = 2     // iterations
	argon2Threads = 1     // parallelism
	argon2SaltLen = 16    // salt length in bytes
	argon2KeyLen  = 32    // output length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a PHC-formatted argon2id hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, hash string) (bool, error)
}

// Argon2idHasher implements PasswordHasher using argon2id with a process-wide
// pepper appended to the password bytes before hashing. The pepper is distinct
// from the per-hash random salt and never appears in the PHC output.
type Argon2idHasher struct {
	pepper config.Secret
}

// NewArgon2idHasher creates an Argon2idHasher with the given pepper.
// The pepper is injected once at startup and immutable afterwards.
func NewArgon2idHasher(pepper config.Secret) *Argon2idHasher {
	return &Argon2idHasher{pepper: pepper}
}

// Hash produces a PHC-formatted argon2id hash of the peppered password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey(h.pepperedPassword(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// PHC string format: $argon2id$v=19$m=15000,t=2,p=1$<salt>$<hash>
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// Verify checks if the peppered password matches the PHC-encoded hash.
// Any deviation from the expected algorithm, version, or parameters fails
// closed with an error rather than being silently accepted.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if memory != argon2Memory || time != argon2Time || threads != argon2Threads {
		return false, oops.Code("AUTH_INVALID_HASH").
			With("memory", memory).
			With("time", time).
			With("threads", threads).
			Errorf("argon2 parameters do not match the configured policy")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	keyLen := len(expectedHash)
	if keyLen <= 0 || keyLen > 1<<30 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", keyLen)
	}

	computedHash := argon2.IDKey(h.pepperedPassword(password), salt, time, memory, uint8(threads), uint32(keyLen))

	if subtle.ConstantTimeCompare(computedHash, expectedHash) == 1 {
		return true, nil
	}

	return false, nil
}

// pepperedPassword returns password || pepper as raw bytes.
func (h *Argon2idHasher) pepperedPassword(password string) []byte {
	pepper := h.pepper.Expose()
	input := make([]byte, 0, len(password)+len(pepper))
	input = append(input, password...)
	input = append(input, pepper...)
	return input
}

// Compile-time interface check.
var _ PasswordHasher = (*Argon2idHasher)(nil)
