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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

// ErrConflict is returned when the merge step reports a nonzero conflict
// count. It carries no partial result: the caller must refetch trunk state
// and retry the whole mutation. Distinct from validation errors: it means
// "retry with fresh state", not "bad input".
var ErrConflict = errors.New("mutation conflicts with a concurrent write")

var mutationTracer = otel.Tracer("github.com/AleutianAI/AleutianKernel/services/kernel/mutation")

// UnitOfWork is the caller-supplied mutation body. It runs against the
// branch-isolated session and may perform arbitrary reads and writes; its
// return value is handed back unchanged on the clean path.
type UnitOfWork func(ctx context.Context, sess Session) (any, error)

// Result is the clean-path return of a branched mutation.
type Result struct {
	Value      any    // UnitOfWork's return value
	NewVersion string // Trunk head after the merge
}

// Orchestrator is the single public entry point for writes.
//
// One invocation walks: acquire dedicated session → resolve base version →
// fork branch and checkout → run unit of work → commit on branch → checkout
// trunk → serialized merge → cleanup. Cleanup (branch delete, then session
// release, in that order) runs on every path once the branch exists, via a
// deferred finalizer, never duplicated at early-return sites.
type Orchestrator struct {
	pool      Pool
	lifecycle *Lifecycle
	merger    *Coordinator
	logger    *slog.Logger
}

// NewOrchestrator wires the protocol components together.
func NewOrchestrator(pool Pool, lifecycle *Lifecycle, merger *Coordinator) *Orchestrator {
	return &Orchestrator{
		pool:      pool,
		lifecycle: lifecycle,
		merger:    merger,
		logger:    slog.Default().With("component", "mutation.Orchestrator"),
	}
}

// Run executes one branched mutation.
//
// # Description
//
// Runs fn isolated on an ephemeral branch forked from baseVersion (or the
// trunk head read at invocation time when baseVersion is empty), commits
// the branch with message, and converges onto the trunk under the merge
// lock.
//
// Errors from fn propagate unchanged. A not-found or validation failure is
// not a conflict, and the branch is still torn down. A unit of work that
// changes nothing short-circuits to a clean return of the current trunk
// head: there is nothing to merge.
//
// # Outputs
//
//   - *Result: fn's return value plus the new trunk version, on the clean path.
//   - error: ErrConflict on a true data conflict; store.ErrLockTimeout when
//     merge serialization timed out (retryable; the branch commit happened
//     but was discarded with the branch, so the caller must re-run);
//     store.ErrSessionUnavailable on pool exhaustion; otherwise whatever
//     fn or the store raised.
func (o *Orchestrator) Run(ctx context.Context, message, baseVersion string, fn UnitOfWork) (res *Result, err error) {
	start := time.Now()
	ctx, span := mutationTracer.Start(ctx, "mutation.run",
		trace.WithAttributes(
			attribute.String("mutation.message", message),
			attribute.String("mutation.base", baseVersion),
		))
	defer func() {
		recordMutation(outcomeLabel(err), time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	sess, err := o.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	base := baseVersion
	if base == "" {
		// A fresh pool connection sits on the database default branch,
		// which is not necessarily the configured trunk. Check out the
		// trunk before reading its head; captured before branching so the
		// fork point stays well-defined even if trunk advances while fn
		// runs.
		if err := o.lifecycle.CheckoutTrunk(ctx, sess); err != nil {
			sess.Release()
			return nil, err
		}
		base, err = sess.Head(ctx)
		if err != nil {
			sess.Release()
			return nil, fmt.Errorf("resolving base version: %w", err)
		}
	}

	branch, err := o.lifecycle.CreateAndCheckout(ctx, sess, base)
	if err != nil {
		sess.Release()
		return nil, err
	}

	// Finalization: from here the branch exists, so teardown must run on
	// every exit. Checkout trunk first (delete of the checked-out branch
	// fails), then delete, and only then release the session. Cleanup
	// failures are logged, never thrown over the original error.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if coErr := o.lifecycle.CheckoutTrunk(cleanupCtx, sess); coErr != nil {
			o.logger.Error("cleanup: checking out trunk",
				"branch", branch,
				"error", coErr)
		}
		if delErr := o.lifecycle.DeleteBranch(cleanupCtx, sess, branch); delErr != nil {
			o.logger.Error("cleanup: deleting mutation branch",
				"branch", branch,
				"error", delErr)
		}
		sess.Release()
	}()

	value, err := fn(ctx, sess)
	if err != nil {
		// Validation and infrastructure errors pass through untouched.
		return nil, err
	}

	_, err = sess.CommitAll(ctx, message)
	if errors.Is(err, store.ErrNothingToCommit) {
		// Nothing changed: no merge needed. Report the trunk head as the
		// version the caller observed.
		head, headErr := headOnTrunk(ctx, o.lifecycle, sess)
		if headErr != nil {
			return nil, headErr
		}
		return &Result{Value: value, NewVersion: head}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("committing mutation %q: %w", message, err)
	}

	if err := o.lifecycle.CheckoutTrunk(ctx, sess); err != nil {
		return nil, err
	}

	outcome, err := o.merger.MergeToTrunk(ctx, sess, branch)
	if err != nil {
		return nil, err
	}
	if !outcome.Clean {
		o.logger.Info("mutation conflicted",
			"message", message,
			"base", base,
			"branch", branch)
		return nil, fmt.Errorf("%w (base %s)", ErrConflict, base)
	}

	o.logger.Info("mutation merged",
		"message", message,
		"base", base,
		"new_version", outcome.NewHead,
		"duration", time.Since(start))
	return &Result{Value: value, NewVersion: outcome.NewHead}, nil
}

// headOnTrunk checks out the trunk and reads its head. Used by the
// nothing-to-commit short circuit, where the session still sits on the
// mutation branch.
func headOnTrunk(ctx context.Context, lc *Lifecycle, sess Session) (string, error) {
	if err := lc.CheckoutTrunk(ctx, sess); err != nil {
		return "", err
	}
	head, err := sess.Head(ctx)
	if err != nil {
		return "", fmt.Errorf("reading trunk head: %w", err)
	}
	return head, nil
}

// outcomeLabel maps an error to the metrics outcome label.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "clean"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, store.ErrLockTimeout):
		return "lock_timeout"
	default:
		return "error"
	}
}
