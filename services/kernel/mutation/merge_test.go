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
	"testing"
	"time"

	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

// commitBranchWrite forks a branch, writes one cell, and commits it, leaving
// the session back on trunk ready for a merge.
func commitBranchWrite(t *testing.T, fs *fakeVersionedStore, sess *fakeSession, key, value string) string {
	t.Helper()
	lc := NewLifecycle(fs.trunk)
	branch, err := lc.CreateAndCheckout(context.Background(), sess, fs.head)
	if err != nil {
		t.Fatalf("fork: %v", err)
	}
	if err := sess.Set(key, value); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := sess.CommitAll(context.Background(), "test write"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := lc.CheckoutTrunk(context.Background(), sess); err != nil {
		t.Fatalf("checkout trunk: %v", err)
	}
	return branch
}

func TestMergeToTrunkClean(t *testing.T) {
	fs := newFakeStore()
	sess := fs.session()
	branch := commitBranchWrite(t, fs, sess, "name", "aleutian")

	coord := NewCoordinator("", 0)
	outcome, err := coord.MergeToTrunk(context.Background(), sess, branch)
	if err != nil {
		t.Fatalf("MergeToTrunk: %v", err)
	}
	if !outcome.Clean {
		t.Fatal("outcome not clean for a non-overlapping merge")
	}
	if outcome.NewHead != fs.head {
		t.Errorf("NewHead = %q, want trunk head %q", outcome.NewHead, fs.head)
	}
	if fs.trunkValue("name") != "aleutian" {
		t.Errorf("trunk missing merged write")
	}
	if fs.lockHolders.Load() != 0 {
		t.Error("merge lock still held after clean merge")
	}
}

func TestMergeToTrunkConflictAborts(t *testing.T) {
	fs := newFakeStore()
	sess := fs.session()
	branch := commitBranchWrite(t, fs, sess, "name", "first")

	// Land a competing trunk change before the branch merges.
	other := fs.session()
	otherBranch := commitBranchWrite(t, fs, other, "name", "second")
	coord := NewCoordinator("", 0)
	if _, err := coord.MergeToTrunk(context.Background(), other, otherBranch); err != nil {
		t.Fatalf("competing merge: %v", err)
	}
	headBefore := fs.head

	outcome, err := coord.MergeToTrunk(context.Background(), sess, branch)
	if err != nil {
		t.Fatalf("MergeToTrunk: %v", err)
	}
	if outcome.Clean {
		t.Fatal("overlapping merge reported clean")
	}
	if fs.head != headBefore {
		t.Errorf("trunk head moved on a conflicted merge")
	}
	if fs.trunkValue("name") != "second" {
		t.Errorf("trunk value = %q, want the earlier winner", fs.trunkValue("name"))
	}
	if fs.lockHolders.Load() != 0 {
		t.Error("merge lock still held after conflicted merge")
	}
}

func TestMergeToTrunkLockTimeout(t *testing.T) {
	fs := newFakeStore()
	sess := fs.session()
	branch := commitBranchWrite(t, fs, sess, "k", "v")

	holder := fs.session()
	if err := holder.AcquireLock(context.Background(), DefaultLockName, time.Second); err != nil {
		t.Fatalf("seeding lock holder: %v", err)
	}
	defer holder.ReleaseLock(context.Background(), DefaultLockName)

	coord := NewCoordinator("", 25*time.Millisecond)
	_, err := coord.MergeToTrunk(context.Background(), sess, branch)
	if !errors.Is(err, store.ErrLockTimeout) {
		t.Fatalf("error = %v, want store.ErrLockTimeout", err)
	}
	if fs.trunkValue("k") != "" {
		t.Error("trunk mutated despite lock timeout")
	}
}
