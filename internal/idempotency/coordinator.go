// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/inkletter/inkletter/internal/auth"
)

// ErrConcurrentRequest is returned when a request arrives while an earlier
// request with the same (user, key) pair is still executing and no response
// has been recorded yet.
var ErrConcurrentRequest = errors.New("a request with this idempotency key is already being processed")

// SavedResponse is a previously recorded HTTP response, replayed verbatim for
// retries of an already-completed request.
type SavedResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Transaction holds the open database transaction backing an in-flight
// idempotent operation. All side effects of the operation must run inside it
// so that they commit atomically with the recorded response.
type Transaction struct {
	tx pgx.Tx
}

// Tx exposes the underlying transaction for the caller's own writes.
func (t *Transaction) Tx() pgx.Tx {
	return t.tx
}

// DB is the subset of pgxpool.Pool the coordinator needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Coordinator implements exactly-once processing on top of a Postgres table
// with a (user_id, idempotency_key) unique constraint. The first request for
// a pair inserts a placeholder row inside a transaction held open while the
// operation runs; retries either replay the recorded response or, if the
// first attempt is still in flight, are rejected.
type Coordinator struct {
	db DB
}

// NewCoordinator builds a Coordinator backed by the given database handle.
func NewCoordinator(db DB) *Coordinator {
	return &Coordinator{db: db}
}

// TryProcessing claims the (user, key) pair. Exactly one of the two return
// values is non-nil on success:
//
//   - a *Transaction when this request is the first for the pair and should
//     execute the operation, then finish with SaveResponse;
//   - a *SavedResponse when an earlier request already completed and its
//     response should be replayed.
//
// A concurrent in-flight request for the same pair blocks on the unique
// index until the first attempt commits or rolls back. If an incomplete
// record is still visible afterwards, ErrConcurrentRequest is returned.
func (c *Coordinator) TryProcessing(ctx context.Context, userID auth.UserID, key Key) (*Transaction, *SavedResponse, error) {
	errb := oops.Code("IDEMPOTENCY_TRY_FAILED").
		With("user_id", userID.String()).
		With("idempotency_key", key.String())

	tx, err := c.db.Begin(ctx)
	if err != nil {
		return nil, nil, errb.Wrapf(err, "beginning transaction")
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO idempotency (user_id, idempotency_key, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, idempotency_key) DO NOTHING`,
		userID.String(), key.String(), time.Now().UTC(),
	)
	if err != nil {
		rollback(ctx, tx)
		return nil, nil, errb.Wrapf(err, "inserting placeholder record")
	}

	if tag.RowsAffected() > 0 {
		return &Transaction{tx: tx}, nil, nil
	}

	// Another request got here first. Its record is only visible once its
	// transaction committed, so a successful read here means it finished.
	saved, err := c.getSavedResponse(ctx, tx, userID, key)
	rollback(ctx, tx)
	if err != nil {
		return nil, nil, err
	}
	return nil, saved, nil
}

// SaveResponse records the HTTP response for the in-flight operation and
// commits the transaction, making both the operation's side effects and the
// replayable response visible atomically.
func (c *Coordinator) SaveResponse(ctx context.Context, txn *Transaction, userID auth.UserID, key Key, resp SavedResponse) error {
	errb := oops.Code("IDEMPOTENCY_SAVE_FAILED").
		With("user_id", userID.String()).
		With("idempotency_key", key.String())

	headers, err := json.Marshal(resp.Headers)
	if err != nil {
		rollback(ctx, txn.tx)
		return errb.Wrapf(err, "encoding response headers")
	}

	tag, err := txn.tx.Exec(ctx, `
		UPDATE idempotency
		SET response_status_code = $3,
		    response_headers = $4,
		    response_body = $5
		WHERE user_id = $1 AND idempotency_key = $2`,
		userID.String(), key.String(), resp.StatusCode, headers, resp.Body,
	)
	if err != nil {
		rollback(ctx, txn.tx)
		return errb.Wrapf(err, "updating record")
	}
	if tag.RowsAffected() == 0 {
		rollback(ctx, txn.tx)
		return errb.Errorf("placeholder record missing")
	}

	if err := txn.tx.Commit(ctx); err != nil {
		return errb.Wrapf(err, "committing transaction")
	}
	return nil
}

// Abort rolls back an in-flight operation, releasing the (user, key) pair so
// a later retry can run the operation again.
func (c *Coordinator) Abort(ctx context.Context, txn *Transaction) {
	rollback(ctx, txn.tx)
}

func (c *Coordinator) getSavedResponse(ctx context.Context, tx pgx.Tx, userID auth.UserID, key Key) (*SavedResponse, error) {
	errb := oops.Code("IDEMPOTENCY_READ_FAILED").
		With("user_id", userID.String()).
		With("idempotency_key", key.String())

	var (
		statusCode *int
		headers    []byte
		body       []byte
	)
	err := tx.QueryRow(ctx, `
		SELECT response_status_code, response_headers, response_body
		FROM idempotency
		WHERE user_id = $1 AND idempotency_key = $2
		FOR UPDATE`,
		userID.String(), key.String(),
	).Scan(&statusCode, &headers, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		// The earlier attempt rolled back between our insert and this read.
		return nil, ErrConcurrentRequest
	}
	if err != nil {
		return nil, errb.Wrapf(err, "reading saved response")
	}
	if statusCode == nil {
		return nil, ErrConcurrentRequest
	}

	saved := &SavedResponse{StatusCode: *statusCode, Body: body}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &saved.Headers); err != nil {
			return nil, errb.Wrapf(err, "decoding response headers")
		}
	}
	return saved, nil
}

func rollback(ctx context.Context, tx pgx.Tx) {
	// Rollback after Commit returns pgx.ErrTxClosed, which is fine here.
	_ = tx.Rollback(ctx)
}
