// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mutation implements the branched-mutation concurrency protocol.
//
// Every write to the kernel runs as one branched mutation: fork an
// ephemeral branch from a base version, execute the caller's unit of work
// isolated on a dedicated session, commit on the branch, then converge
// onto the trunk under a store-wide advisory lock. The store's cell-level
// merge decides whether concurrent writes were disjoint (both land) or
// overlapping (the later merge conflicts and is aborted).
//
// Branch-local work is fully parallel across mutations; the only
// serialization point is the merge window, kept as small as possible:
// checkout trunk → merge → head read or abort → release lock.
//
// # Thread Safety
//
// Orchestrator, Lifecycle and Coordinator are safe for concurrent use.
// A Session is owned by exactly one invocation.
package mutation

import (
	"context"
	"database/sql"
	"time"

	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

// Session is the dedicated-session capability the protocol runs on. It is
// the slice of *store.Session the orchestrator, lifecycle manager, merge
// coordinator and sweeper need; tests substitute a fake.
type Session interface {
	// Plain SQL, for the caller's unit of work.
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, scan func(*sql.Row) error, query string, args ...any) error

	// Version-control surface.
	CreateBranch(ctx context.Context, name, base string) error
	Checkout(ctx context.Context, branch string) error
	CommitAll(ctx context.Context, message string) (string, error)
	Merge(ctx context.Context, branch string) (store.MergeResult, error)
	AbortMerge(ctx context.Context) error
	DeleteBranch(ctx context.Context, name string) error
	ListBranches(ctx context.Context, prefix string) ([]string, error)
	Head(ctx context.Context) (string, error)
	AcquireLock(ctx context.Context, name string, timeout time.Duration) error
	ReleaseLock(ctx context.Context, name string) error

	// Release returns the session to the pool. Must only be called after
	// branch teardown.
	Release()
}

// Pool hands out dedicated sessions.
type Pool interface {
	Acquire(ctx context.Context) (Session, error)
}

// storePool adapts *store.Store to the Pool interface.
type storePool struct {
	st *store.Store
}

func (p storePool) Acquire(ctx context.Context) (Session, error) {
	sess, err := p.st.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// PoolFromStore wraps a store client as a session Pool.
func PoolFromStore(st *store.Store) Pool {
	return storePool{st: st}
}
