// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultLockTimeout bounds the wait for the merge lock.
const DefaultLockTimeout = 10 * time.Second

// DefaultLockName is the store-wide advisory lock serializing merges.
const DefaultLockName = "kernel_merge_to_trunk"

// Outcome is the result of one merge-to-trunk attempt. Clean carries the
// new trunk head; conflicted carries nothing, since the caller refetches and
// retries the whole mutation.
type Outcome struct {
	Clean   bool
	NewHead string
}

// Coordinator serializes convergence of mutation branches onto the trunk.
//
// The advisory lock guards only the trunk-mutation window: merge attempt,
// head read or abort. It is never held during the caller's mutation logic,
// so contention is confined to the smallest possible critical section.
// Merge order is lock arrival order, not base-version order: two mutations
// with the same stale base merge in either order, and whichever merges
// second sees the first's changes already on trunk.
type Coordinator struct {
	lockName    string
	lockTimeout time.Duration
	logger      *slog.Logger
}

// NewCoordinator returns a merge coordinator. Zero values select
// DefaultLockName and DefaultLockTimeout.
func NewCoordinator(lockName string, lockTimeout time.Duration) *Coordinator {
	if lockName == "" {
		lockName = DefaultLockName
	}
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Coordinator{
		lockName:    lockName,
		lockTimeout: lockTimeout,
		logger:      slog.Default().With("component", "mutation.Coordinator"),
	}
}

// MergeToTrunk merges branch into the trunk checked out on sess.
//
// # Description
//
// Acquires the merge lock with a bounded wait, attempts the merge, and
// interprets the result: zero conflicts is a clean merge and yields the new
// trunk head; nonzero conflicts aborts the merge (a half-merged
// trunk is never left behind) and reports a conflicted outcome. The lock is
// released on every path once acquired, including when the merge call
// itself errors.
//
// # Inputs
//
//   - ctx: Bounds every statement in the merge window.
//   - sess: Dedicated session, already checked out on the trunk.
//   - branch: The committed mutation branch to fold in.
//
// # Outputs
//
//   - Outcome: Clean(newHead) or Conflicted.
//   - error: store.ErrLockTimeout if the lock wait expires (the branch
//     commit is durable; convergence simply did not happen this attempt),
//     or the failed merge/abort error.
func (c *Coordinator) MergeToTrunk(ctx context.Context, sess Session, branch string) (Outcome, error) {
	lockWait := time.Now()
	if err := sess.AcquireLock(ctx, c.lockName, c.lockTimeout); err != nil {
		observeLockWait(time.Since(lockWait), false)
		return Outcome{}, err
	}
	observeLockWait(time.Since(lockWait), true)

	// Unconditional release once acquired. RELEASE_LOCK uses a background
	// guard context so a canceled ctx cannot strand the lock until the
	// session closes.
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := sess.ReleaseLock(releaseCtx, c.lockName); err != nil {
			c.logger.Error("releasing merge lock", "error", err)
		}
	}()

	res, err := sess.Merge(ctx, branch)
	if err != nil {
		return Outcome{}, fmt.Errorf("merge of %s failed: %w", branch, err)
	}

	if res.Conflicts > 0 {
		c.logger.Info("merge conflicted, aborting",
			"branch", branch,
			"conflicts", res.Conflicts,
			"detail", res.Message)
		if err := sess.AbortMerge(ctx); err != nil {
			// Trunk may be mid-merge; surface loudly.
			return Outcome{}, fmt.Errorf("aborting conflicted merge of %s: %w", branch, err)
		}
		return Outcome{Clean: false}, nil
	}

	newHead, err := sess.Head(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("reading trunk head after merge: %w", err)
	}

	c.logger.Debug("merge clean",
		"branch", branch,
		"new_head", newHead,
		"fast_forward", res.FastForward)
	return Outcome{Clean: true, NewHead: newHead}, nil
}
