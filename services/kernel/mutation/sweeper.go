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
)

// SweepOrphans deletes mutation branches left behind by a crashed process.
//
// Runs once at startup, before the listeners accept traffic, so it never
// races live mutations. No age filter is needed: no mutation has run yet,
// so every branch matching the naming convention is by definition orphaned.
// Best-effort per branch: one stubborn branch does not stop the sweep.
func SweepOrphans(ctx context.Context, sess Session) (int, error) {
	logger := slog.Default().With("component", "mutation.Sweeper")

	names, err := sess.ListBranches(ctx, BranchPrefix)
	if err != nil {
		return 0, fmt.Errorf("listing orphan branches: %w", err)
	}

	swept := 0
	for _, name := range names {
		if err := sess.DeleteBranch(ctx, name); err != nil {
			logger.Warn("failed to delete orphan branch",
				"branch", name,
				"error", err)
			continue
		}
		logger.Info("deleted orphan mutation branch", "branch", name)
		swept++
	}

	recordOrphansSwept(swept)
	return swept, nil
}
