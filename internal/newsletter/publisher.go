// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

// Package newsletter turns an issue into one email per confirmed subscriber.
package newsletter

import (
	"context"
	"log/slog"
	"strings"

	"github.com/samber/oops"

	"github.com/inkletter/inkletter/internal/email"
	"github.com/inkletter/inkletter/internal/subscriber"
)

// Issue is one newsletter edition. The zero value is invalid; construct via
// NewIssue.
type Issue struct {
	Title       string
	HTMLContent string
	TextContent string
}

// NewIssue validates issue content.
func NewIssue(title, htmlContent, textContent string) (Issue, error) {
	errb := oops.Code("NEWSLETTER_INVALID_ISSUE")
	if strings.TrimSpace(title) == "" {
		return Issue{}, errb.Errorf("issue title cannot be empty")
	}
	if strings.TrimSpace(htmlContent) == "" && strings.TrimSpace(textContent) == "" {
		return Issue{}, errb.Errorf("issue needs HTML or text content")
	}
	return Issue{Title: title, HTMLContent: htmlContent, TextContent: textContent}, nil
}

// Publisher delivers issues to the confirmed audience.
type Publisher struct {
	subscribers subscriber.Repository
	sender      email.Sender
	logger      *slog.Logger
}

// NewPublisher builds a Publisher.
func NewPublisher(subscribers subscriber.Repository, sender email.Sender, logger *slog.Logger) (*Publisher, error) {
	if subscribers == nil {
		return nil, oops.Code("NEWSLETTER_INVALID_PUBLISHER").Errorf("subscriber repository is required")
	}
	if sender == nil {
		return nil, oops.Code("NEWSLETTER_INVALID_PUBLISHER").Errorf("email sender is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{subscribers: subscribers, sender: sender, logger: logger}, nil
}

// Publish sends the issue to every confirmed subscriber. The first delivery
// failure aborts the run with a wrapped error so the caller can roll back and
// a retry can re-run the whole publish.
func (p *Publisher) Publish(ctx context.Context, issue Issue) error {
	errb := oops.Code("NEWSLETTER_PUBLISH_FAILED").With("title", issue.Title)

	recipients, err := p.subscribers.ConfirmedEmails(ctx)
	if err != nil {
		return errb.Wrapf(err, "listing confirmed subscribers")
	}

	for _, to := range recipients {
		msg := email.Email{
			To:       to,
			Subject:  issue.Title,
			HTMLBody: issue.HTMLContent,
			TextBody: issue.TextContent,
		}
		if err := p.sender.Send(ctx, msg); err != nil {
			return errb.With("to", to.String()).Wrapf(err, "sending issue")
		}
	}

	p.logger.InfoContext(ctx, "newsletter issue published",
		slog.String("title", issue.Title),
		slog.Int("recipients", len(recipients)))
	return nil
}
