// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package newsletter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkletter/inkletter/internal/email"
	"github.com/inkletter/inkletter/internal/subscriber"
)

type stubRepository struct {
	emails []subscriber.EmailAddress
	err    error
}

func (s *stubRepository) Insert(context.Context, *subscriber.Subscriber) error {
	return errors.New("not implemented")
}

func (s *stubRepository) ConfirmedEmails(context.Context) ([]subscriber.EmailAddress, error) {
	return s.emails, s.err
}

type recordingSender struct {
	sent   []email.Email
	failAt int
	err    error
}

func (r *recordingSender) Send(_ context.Context, msg email.Email) error {
	if r.err != nil && len(r.sent) == r.failAt {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func mustEmail(t *testing.T, raw string) subscriber.EmailAddress {
	t.Helper()
	addr, err := subscriber.ParseEmailAddress(raw)
	require.NoError(t, err)
	return addr
}

func TestNewIssue(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		html    string
		text    string
		wantErr bool
	}{
		{
			name:  "both bodies",
			title: "Issue 42",
			html:  "<p>hi</p>",
			text:  "hi",
		},
		{
			name:  "text only",
			title: "Issue 42",
			text:  "hi",
		},
		{
			name:    "empty title",
			title:   "  ",
			text:    "hi",
			wantErr: true,
		},
		{
			name:    "no content",
			title:   "Issue 42",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue, err := NewIssue(tt.title, tt.html, tt.text)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.title, issue.Title)
		})
	}
}

func TestPublisher_Publish(t *testing.T) {
	issue, err := NewIssue("Issue 42", "<p>hi</p>", "hi")
	require.NoError(t, err)

	t.Run("sends to every confirmed subscriber", func(t *testing.T) {
		repo := &stubRepository{emails: []subscriber.EmailAddress{
			mustEmail(t, "a@example.com"),
			mustEmail(t, "b@example.com"),
		}}
		sender := &recordingSender{}

		pub, err := NewPublisher(repo, sender, nil)
		require.NoError(t, err)

		require.NoError(t, pub.Publish(context.Background(), issue))
		require.Len(t, sender.sent, 2)
		assert.Equal(t, "a@example.com", sender.sent[0].To.String())
		assert.Equal(t, "Issue 42", sender.sent[0].Subject)
		assert.Equal(t, "<p>hi</p>", sender.sent[0].HTMLBody)
		assert.Equal(t, "hi", sender.sent[0].TextBody)
	})

	t.Run("no confirmed subscribers is a no-op", func(t *testing.T) {
		sender := &recordingSender{}
		pub, err := NewPublisher(&stubRepository{}, sender, nil)
		require.NoError(t, err)

		require.NoError(t, pub.Publish(context.Background(), issue))
		assert.Empty(t, sender.sent)
	})

	t.Run("delivery failure aborts the run", func(t *testing.T) {
		repo := &stubRepository{emails: []subscriber.EmailAddress{
			mustEmail(t, "a@example.com"),
			mustEmail(t, "b@example.com"),
			mustEmail(t, "c@example.com"),
		}}
		sender := &recordingSender{failAt: 1, err: errors.New("delivery API down")}

		pub, err := NewPublisher(repo, sender, nil)
		require.NoError(t, err)

		err = pub.Publish(context.Background(), issue)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "delivery API down")
		assert.Len(t, sender.sent, 1, "no sends after the failure")
	})

	t.Run("repository failure surfaces", func(t *testing.T) {
		repo := &stubRepository{err: errors.New("connection refused")}
		pub, err := NewPublisher(repo, &recordingSender{}, nil)
		require.NoError(t, err)

		err = pub.Publish(context.Background(), issue)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestNewPublisher_RequiresCollaborators(t *testing.T) {
	_, err := NewPublisher(nil, &recordingSender{}, nil)
	require.Error(t, err)

	_, err = NewPublisher(&stubRepository{}, nil, nil)
	require.Error(t, err)
}
