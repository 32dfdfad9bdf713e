// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

// Package store provides database connectivity and schema management.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// connectTimeout bounds the initial connectivity check.
const connectTimeout = 5 * time.Second

// Connect opens a pgx connection pool and verifies connectivity with a ping.
// The caller owns the pool and must Close it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").Wrapf(err, "creating connection pool")
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").Wrapf(err, "pinging database")
	}

	return pool, nil
}
