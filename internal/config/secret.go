// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package config

// Secret wraps a sensitive string so it cannot leak through logging or
// serialization by accident. The wrapped value is only reachable through
// an explicit Expose call.
type Secret struct {
	value string
}

// NewSecret wraps a sensitive value.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// Expose returns the wrapped value.
func (s Secret) Expose() string {
	return s.value
}

// String implements fmt.Stringer and always redacts.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString redacts %#v formatting as well.
func (s Secret) GoString() string {
	return "config.Secret{}"
}

// MarshalJSON redacts JSON serialization.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// MarshalText redacts text serialization (YAML, logfmt).
func (s Secret) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// UnmarshalText lets koanf and other decoders populate the secret.
func (s *Secret) UnmarshalText(text []byte) error {
	s.value = string(text)
	return nil
}
