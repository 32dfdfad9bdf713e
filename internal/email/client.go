// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

// Package email delivers transactional mail through a Postmark-compatible
// HTTP API. Transient failures are retried with backoff; client errors from
// the API are treated as permanent.
package email

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/inkletter/inkletter/internal/config"
	"github.com/inkletter/inkletter/internal/subscriber"
)

// maxSendAttempts bounds delivery retries per message, initial attempt
// included.
const maxSendAttempts = 3

// retryBaseDelay seeds the fibonacci backoff between attempts.
const retryBaseDelay = 250 * time.Millisecond

// Email is one outbound message.
type Email struct {
	To       subscriber.EmailAddress
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender delivers email. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Email) error
}

// sendRequest mirrors the delivery API's JSON body.
type sendRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HTMLBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// Client sends email through the configured delivery API.
type Client struct {
	http   *resty.Client
	sender string
	token  config.Secret
}

// NewClient builds a Client from configuration. The configured timeout
// applies to every request.
func NewClient(cfg config.EmailConfig) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	return &Client{
		http:   httpClient,
		sender: cfg.Sender,
		token:  cfg.AuthToken,
	}
}

// Send delivers one message. Timeouts and 5xx responses are retried with
// fibonacci backoff up to maxSendAttempts; 4xx responses fail immediately.
func (c *Client) Send(ctx context.Context, msg Email) error {
	errb := oops.Code("EMAIL_SEND_FAILED").With("to", msg.To.String())

	body := sendRequest{
		From:     c.sender,
		To:       msg.To.String(),
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
		TextBody: msg.TextBody,
	}

	backoff := retry.WithMaxRetries(maxSendAttempts-1, retry.NewFibonacci(retryBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("X-Postmark-Server-Token", c.token.Expose()).
			SetBody(body).
			Post("/email")
		if err != nil {
			// Transport errors include timeouts; worth another attempt.
			return retry.RetryableError(err)
		}
		switch {
		case resp.StatusCode() < http.StatusMultipleChoices:
			return nil
		case resp.StatusCode() >= http.StatusInternalServerError:
			return retry.RetryableError(fmt.Errorf("delivery API returned %d", resp.StatusCode()))
		default:
			return fmt.Errorf("delivery API rejected message with %d", resp.StatusCode())
		}
	})
	if err != nil {
		return errb.Wrap(err)
	}
	return nil
}
