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
	"errors"
	"strings"

	mysql "github.com/go-sql-driver/mysql"
)

var (
	// ErrStoreClosed is returned when an operation is attempted on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrSessionUnavailable is returned when a dedicated session cannot be
	// acquired from the pool (exhaustion or acquisition timeout).
	ErrSessionUnavailable = errors.New("no dedicated session available")

	// ErrBranchCreate is returned when a branch cannot be created, either
	// because the base version does not exist or the name collides.
	ErrBranchCreate = errors.New("branch create failed")

	// ErrLockTimeout is returned when a named advisory lock cannot be
	// acquired within the configured wait.
	ErrLockTimeout = errors.New("advisory lock wait timed out")

	// ErrNothingToCommit is returned by CommitAll when the branch has no
	// staged or unstaged changes.
	ErrNothingToCommit = errors.New("nothing to commit")
)

// isRetryableError returns true if the error is a transient connection error
// that should be retried against the SQL server. Branch-scoped session work
// is never retried through this path: a dropped dedicated session loses its
// checkout and cannot be transparently replayed.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "driver: bad connection"),
		strings.Contains(errStr, "invalid connection"),
		strings.Contains(errStr, "broken pipe"),
		strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "lost connection"), // MySQL error 2013: mid-query disconnect
		strings.Contains(errStr, "gone away"),       // MySQL error 2006: idle connection timeout
		strings.Contains(errStr, "i/o timeout"):
		return true
	}
	return false
}

// isDuplicateKeyError reports MySQL error 1062 (duplicate entry).
func isDuplicateKeyError(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// IsDuplicateKey reports whether err is a uniqueness violation from the
// underlying store. Exposed for the CRUD layer's error mapping.
func IsDuplicateKey(err error) bool {
	return isDuplicateKeyError(err)
}

// isBranchNotFoundError matches the Dolt error for deleting or merging a
// branch that does not exist. Cleanup paths treat this as a benign no-op.
func isBranchNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "branch not found") ||
		strings.Contains(errStr, "could not find branch") ||
		strings.Contains(errStr, "does not exist")
}

// isNothingToCommitError matches Dolt's response to DOLT_COMMIT with a clean
// working set.
func isNothingToCommitError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "nothing to commit")
}
