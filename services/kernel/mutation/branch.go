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

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

// BranchPrefix is the naming convention for ephemeral mutation branches.
// The sweeper treats every branch with this prefix as protocol-owned.
const BranchPrefix = "mutation/"

// Lifecycle creates and removes ephemeral mutation branches on a session.
type Lifecycle struct {
	trunk  string
	logger *slog.Logger
}

// NewLifecycle returns a lifecycle manager bound to the given trunk branch.
func NewLifecycle(trunk string) *Lifecycle {
	return &Lifecycle{
		trunk:  trunk,
		logger: slog.Default().With("component", "mutation.Lifecycle"),
	}
}

// Trunk returns the trunk branch name this manager converges onto.
func (l *Lifecycle) Trunk() string {
	return l.trunk
}

// newBranchName generates a process-unique mutation branch name.
func newBranchName() string {
	return BranchPrefix + uuid.NewString()[:13]
}

// CreateAndCheckout forks a new mutation branch from base and switches the
// session onto it.
//
// Name uniqueness relies on the random suffix; a collision is exceptional,
// so the name is regenerated exactly once before the error is surfaced.
// A missing base version fails immediately; regeneration cannot fix that.
func (l *Lifecycle) CreateAndCheckout(ctx context.Context, sess Session, base string) (string, error) {
	name := newBranchName()
	err := sess.CreateBranch(ctx, name, base)
	if err != nil && errors.Is(err, store.ErrBranchCreate) {
		// One regeneration attempt for the (vanishingly unlikely) name
		// collision. If the base does not exist this fails the same way
		// and the error propagates.
		retry := newBranchName()
		l.logger.Warn("branch create failed, regenerating name once",
			"branch", name,
			"retry", retry,
			"error", err)
		name = retry
		err = sess.CreateBranch(ctx, name, base)
	}
	if err != nil {
		return "", err
	}

	if err := sess.Checkout(ctx, name); err != nil {
		// The branch exists but the session never got onto it; remove it
		// so nothing is left for the sweeper.
		if delErr := sess.DeleteBranch(ctx, name); delErr != nil {
			l.logger.Warn("deleting branch after failed checkout",
				"branch", name,
				"error", delErr)
		}
		return "", fmt.Errorf("checking out mutation branch: %w", err)
	}

	l.logger.Debug("mutation branch created",
		"branch", name,
		"base", base)
	return name, nil
}

// CheckoutTrunk switches the session back onto the trunk line. Merges apply
// into the currently checked-out branch, so this must run before any merge
// attempt. Merging from the mutation branch would invert the direction.
func (l *Lifecycle) CheckoutTrunk(ctx context.Context, sess Session) error {
	if err := sess.Checkout(ctx, l.trunk); err != nil {
		return fmt.Errorf("checking out trunk %s: %w", l.trunk, err)
	}
	return nil
}

// DeleteBranch removes the mutation branch. Idempotent: an already-absent
// branch is not an error.
func (l *Lifecycle) DeleteBranch(ctx context.Context, sess Session, name string) error {
	return sess.DeleteBranch(ctx, name)
}
