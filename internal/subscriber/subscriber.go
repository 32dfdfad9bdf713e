// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package subscriber

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Subscription statuses.
const (
	StatusPending   = "pending_confirmation"
	StatusConfirmed = "confirmed"
)

// MaxNameLength bounds subscriber display names.
const MaxNameLength = 256

// ErrDuplicateEmail is returned when a subscription already exists for an
// email address.
var ErrDuplicateEmail = errors.New("a subscription already exists for this email address")

// Subscriber is one entry in the newsletter audience.
type Subscriber struct {
	ID           ulid.ULID
	Email        EmailAddress
	Name         string
	Status       string
	SubscribedAt time.Time
}

// NewSubscriber builds a pending subscriber from validated input.
func NewSubscriber(email EmailAddress, name string) (*Subscriber, error) {
	trimmed := strings.TrimSpace(name)
	errb := oops.Code("SUBSCRIBER_INVALID_NAME")
	if trimmed == "" {
		return nil, errb.Errorf("subscriber name cannot be empty")
	}
	if len(trimmed) > MaxNameLength {
		return nil, errb.With("length", len(trimmed)).
			Errorf("subscriber name must be at most %d characters", MaxNameLength)
	}
	if strings.ContainsAny(trimmed, `/()"<>\{}`) {
		return nil, errb.Errorf("subscriber name contains forbidden characters")
	}
	return &Subscriber{
		ID:           ulid.Make(),
		Email:        email,
		Name:         trimmed,
		Status:       StatusPending,
		SubscribedAt: time.Now().UTC(),
	}, nil
}

// Repository manages subscriber persistence.
type Repository interface {
	// Insert stores a new subscriber. Returns ErrDuplicateEmail when the
	// address is already subscribed.
	Insert(ctx context.Context, sub *Subscriber) error

	// ConfirmedEmails returns the addresses of all confirmed subscribers.
	// Stored addresses that no longer pass validation are skipped.
	ConfirmedEmails(ctx context.Context) ([]EmailAddress, error)
}
