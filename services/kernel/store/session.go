// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// validBranchNameRe matches only safe branch name characters: alphanumeric,
// hyphen, underscore, dot, and forward slash. Branch names reach Dolt stored
// procedures as parameters, but the same names also appear in generated
// commit messages and logs; keep them boring.
var validBranchNameRe = regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`)

// ValidateBranchName returns an error if name contains characters outside
// the safe set, or is empty.
func ValidateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("branch name must not be empty")
	}
	if len(name) > 255 {
		return fmt.Errorf("branch name exceeds 255 characters")
	}
	if !validBranchNameRe.MatchString(name) {
		return fmt.Errorf("branch name %q contains invalid characters", name)
	}
	return nil
}

// MergeResult is the row DOLT_MERGE reports back.
type MergeResult struct {
	Hash        string // Merge commit hash ("" when conflicted)
	FastForward bool
	Conflicts   int
	Message     string // Server-side description, e.g. "merge successful"
}

// scanMergeRow reads the DOLT_MERGE result row. Dolt 1.x returns four
// columns: hash, fast_forward, conflicts, message.
func scanMergeRow(scan func(dest ...any) error) (MergeResult, error) {
	var res MergeResult
	var ff int
	if err := scan(&res.Hash, &ff, &res.Conflicts, &res.Message); err != nil {
		return MergeResult{}, err
	}
	res.FastForward = ff == 1
	return res, nil
}

// Session is a single dedicated connection to the versioned store,
// exclusively owned by one in-flight operation.
//
// Branch state (the active checkout) is connection-scoped in Dolt, so a
// Session must never be shared between concurrent operations, and must not
// be released back to the pool until its mutation branch has been fully
// torn down.
type Session struct {
	conn     *sql.Conn
	logger   *slog.Logger
	released atomic.Bool
}

// Release returns the underlying connection to the pool. Safe to call more
// than once; subsequent calls are no-ops.
func (ss *Session) Release() {
	if ss.released.Swap(true) {
		return
	}
	if err := ss.conn.Close(); err != nil {
		ss.logger.Warn("releasing session", "error", err)
	}
}

// span starts an OTel client span for one session statement.
func (ss *Session) span(ctx context.Context, op, statement string) (context.Context, trace.Span) {
	return kernelTracer.Start(ctx, "session."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "dolt"),
			attribute.String("db.statement", spanSQL(statement)),
		),
	)
}

// ExecContext runs a write statement on this session. No retry: replaying a
// statement on a fresh connection would silently drop the branch checkout.
func (ss *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := ss.span(ctx, "exec", query)
	result, err := ss.conn.ExecContext(ctx, query, args...)
	endSpan(span, err)
	return result, err
}

// QueryContext runs a query on this session.
func (ss *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span := ss.span(ctx, "query", query)
	rows, err := ss.conn.QueryContext(ctx, query, args...)
	endSpan(span, err)
	return rows, err
}

// QueryRowContext runs a single-row query on this session. The scan function
// receives the *sql.Row and should call .Scan on it.
func (ss *Session) QueryRowContext(ctx context.Context, scan func(*sql.Row) error, query string, args ...any) error {
	ctx, span := ss.span(ctx, "query_row", query)
	err := scan(ss.conn.QueryRowContext(ctx, query, args...))
	endSpan(span, err)
	return err
}

// =============================================================================
// Version-control operations
// =============================================================================

// CreateBranch creates a named branch forked from the given base commit.
func (ss *Session) CreateBranch(ctx context.Context, name, base string) error {
	if err := ValidateBranchName(name); err != nil {
		return fmt.Errorf("%w: %v", ErrBranchCreate, err)
	}
	if _, err := ss.ExecContext(ctx, "CALL DOLT_BRANCH(?, ?)", name, base); err != nil {
		return fmt.Errorf("%w: creating branch %s from %s: %v", ErrBranchCreate, name, base, err)
	}
	return nil
}

// Checkout switches this session onto the named branch.
func (ss *Session) Checkout(ctx context.Context, branch string) error {
	if _, err := ss.ExecContext(ctx, "CALL DOLT_CHECKOUT(?)", branch); err != nil {
		return fmt.Errorf("checking out %s: %w", branch, err)
	}
	return nil
}

// ActiveBranch returns the branch this session is currently checked out on.
func (ss *Session) ActiveBranch(ctx context.Context) (string, error) {
	var branch string
	err := ss.QueryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&branch)
	}, "SELECT active_branch()")
	if err != nil {
		return "", fmt.Errorf("reading active branch: %w", err)
	}
	return branch, nil
}

// CommitAll stages all pending changes on the checked-out branch and commits
// them with the given message, returning the new commit hash. A clean
// working set yields ErrNothingToCommit.
func (ss *Session) CommitAll(ctx context.Context, message string) (string, error) {
	var hash string
	err := ss.QueryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&hash)
	}, "CALL DOLT_COMMIT('-A', '-m', ?)", message)
	if err != nil {
		if isNothingToCommitError(err) {
			return "", ErrNothingToCommit
		}
		return "", fmt.Errorf("committing on branch: %w", err)
	}
	return hash, nil
}

// Merge attempts to merge the named branch into the branch currently checked
// out on this session, reporting the resulting hash and conflict count.
// A nonzero conflict count is not an error here; interpreting it is the
// merge coordinator's job.
func (ss *Session) Merge(ctx context.Context, branch string) (MergeResult, error) {
	var res MergeResult
	err := ss.QueryRowContext(ctx, func(row *sql.Row) error {
		var scanErr error
		res, scanErr = scanMergeRow(row.Scan)
		return scanErr
	}, "CALL DOLT_MERGE(?)", branch)
	if err != nil {
		return MergeResult{}, fmt.Errorf("merging %s: %w", branch, err)
	}
	return res, nil
}

// AbortMerge aborts an in-progress merge, restoring pre-merge state.
func (ss *Session) AbortMerge(ctx context.Context) error {
	if _, err := ss.ExecContext(ctx, "CALL DOLT_MERGE('--abort')"); err != nil {
		return fmt.Errorf("aborting merge: %w", err)
	}
	return nil
}

// DeleteBranch force-deletes the named branch. A branch that does not exist
// is a benign no-op: cleanup paths may run after a partial failure already
// removed it.
func (ss *Session) DeleteBranch(ctx context.Context, name string) error {
	if err := ValidateBranchName(name); err != nil {
		return err
	}
	if _, err := ss.ExecContext(ctx, "CALL DOLT_BRANCH('-D', ?)", name); err != nil {
		if isBranchNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("deleting branch %s: %w", name, err)
	}
	return nil
}

// ListBranches returns branch names starting with the given prefix.
func (ss *Session) ListBranches(ctx context.Context, prefix string) ([]string, error) {
	rows, err := ss.QueryContext(ctx,
		"SELECT name FROM dolt_branches WHERE name LIKE CONCAT(?, '%')", prefix)
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning branch name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Head returns the head commit of the branch checked out on this session.
func (ss *Session) Head(ctx context.Context) (string, error) {
	var head string
	err := ss.QueryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&head)
	}, "SELECT dolt_hashof('HEAD')")
	if err != nil {
		return "", fmt.Errorf("reading head: %w", err)
	}
	return head, nil
}

// lockWaitSeconds converts the lock timeout for GET_LOCK, which accepts
// fractional seconds. Non-positive waits collapse to an immediate attempt.
func lockWaitSeconds(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return d.Seconds()
}

// AcquireLock takes the named advisory lock, waiting up to timeout.
// GET_LOCK is session-scoped in MySQL/Dolt, so the lock is held by this
// Session's connection until released or the connection closes.
func (ss *Session) AcquireLock(ctx context.Context, name string, timeout time.Duration) error {
	var got sql.NullInt64
	err := ss.QueryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&got)
	}, "SELECT GET_LOCK(?, ?)", name, lockWaitSeconds(timeout))
	if err != nil {
		return fmt.Errorf("acquiring lock %s: %w", name, err)
	}
	if !got.Valid || got.Int64 != 1 {
		return fmt.Errorf("%w: %s after %s", ErrLockTimeout, name, timeout)
	}
	return nil
}

// ReleaseLock releases the named advisory lock.
func (ss *Session) ReleaseLock(ctx context.Context, name string) error {
	var released sql.NullInt64
	err := ss.QueryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&released)
	}, "SELECT RELEASE_LOCK(?)", name)
	if err != nil {
		return fmt.Errorf("releasing lock %s: %w", name, err)
	}
	return nil
}
