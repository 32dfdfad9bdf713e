// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package auth

import (
	"context"
	"runtime"

	"github.com/samber/oops"
)

// BlockingPool bounds the number of concurrent CPU-bound hashing operations.
// Argon2id at the configured parameters costs tens of milliseconds of pure
// CPU; running it inline on request goroutines would let a burst of login
// attempts starve every I/O-bound request sharing the scheduler. The pool is
// the offload boundary: request goroutines queue here instead.
type BlockingPool struct {
	slots chan struct{}
}

// NewBlockingPool creates a pool with the given concurrency bound.
// size <= 0 means GOMAXPROCS.
func NewBlockingPool(size int) *BlockingPool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &BlockingPool{slots: make(chan struct{}, size)}
}

// Run executes fn once a slot is available, or returns early when ctx is
// cancelled while still queued. fn itself is not cancellable; a cancelled
// request that already started hashing simply has its result discarded.
func (p *BlockingPool) Run(ctx context.Context, fn func()) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return oops.Code("AUTH_POOL_CANCELLED").Wrap(ctx.Err())
	}
	defer func() { <-p.slots }()

	fn()
	return nil
}
