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
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

func TestNewBranchName(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		name := newBranchName()
		if !strings.HasPrefix(name, BranchPrefix) {
			t.Fatalf("branch name %q missing prefix %q", name, BranchPrefix)
		}
		if err := store.ValidateBranchName(name); err != nil {
			t.Fatalf("generated name %q fails validation: %v", name, err)
		}
		if seen[name] {
			t.Fatalf("duplicate branch name %q", name)
		}
		seen[name] = true
	}
}

func TestCreateAndCheckout(t *testing.T) {
	t.Run("creates and checks out a prefixed branch", func(t *testing.T) {
		fs := newFakeStore()
		sess := fs.session()
		lc := NewLifecycle(fs.trunk)

		name, err := lc.CreateAndCheckout(context.Background(), sess, fs.head)
		if err != nil {
			t.Fatalf("CreateAndCheckout: %v", err)
		}
		if !strings.HasPrefix(name, BranchPrefix) {
			t.Errorf("branch %q missing prefix", name)
		}
		if sess.checkout != name {
			t.Errorf("session on %q, want %q", sess.checkout, name)
		}
	})

	t.Run("regenerates the name once on create failure", func(t *testing.T) {
		fs := newFakeStore()
		fs.failCreateOnce = map[string]error{
			"*": fmt.Errorf("%w: injected collision", store.ErrBranchCreate),
		}
		sess := fs.session()
		lc := NewLifecycle(fs.trunk)

		name, err := lc.CreateAndCheckout(context.Background(), sess, fs.head)
		if err != nil {
			t.Fatalf("CreateAndCheckout after one collision: %v", err)
		}
		if got := fs.createAttempts.Load(); got != 2 {
			t.Errorf("create attempts = %d, want 2", got)
		}
		if sess.checkout != name {
			t.Errorf("session on %q, want %q", sess.checkout, name)
		}
	})

	t.Run("does not retry other create errors", func(t *testing.T) {
		fs := newFakeStore()
		injected := errors.New("server went away")
		fs.failCreateOnce = map[string]error{"*": injected}
		sess := fs.session()
		lc := NewLifecycle(fs.trunk)

		_, err := lc.CreateAndCheckout(context.Background(), sess, fs.head)
		if !errors.Is(err, injected) {
			t.Fatalf("error = %v, want the injected error", err)
		}
		if got := fs.createAttempts.Load(); got != 1 {
			t.Errorf("create attempts = %d, want 1 (no regeneration)", got)
		}
	})
}

func TestDeleteBranchIdempotent(t *testing.T) {
	fs := newFakeStore()
	sess := fs.session()
	lc := NewLifecycle(fs.trunk)

	if err := lc.DeleteBranch(context.Background(), sess, "mutation/never-created"); err != nil {
		t.Fatalf("deleting an absent branch: %v", err)
	}
}
