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
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

// fakeVersionedStore emulates the external versioned store: named branches
// forked from commits, cell-level conflict detection at merge time, and
// session-scoped named advisory locks. Shared by all fake sessions so
// concurrency tests exercise real interleavings.
type fakeVersionedStore struct {
	mu        sync.Mutex
	trunk     string
	head      string
	data      map[string]string            // trunk table: key -> value
	history   map[string]map[string]string // commit hash -> trunk snapshot
	branches  map[string]*fakeBranch
	commitSeq int

	// newSessionCheckout is the branch fresh sessions start on. Real pool
	// connections sit on the database default branch, which is not
	// necessarily the configured trunk.
	newSessionCheckout string

	locks       map[string]chan struct{}
	lockHolders atomic.Int32
	maxHolders  atomic.Int32

	// Failure injection.
	failCreateOnce map[string]error // branch name pattern "*" or exact -> error for first create
	createAttempts atomic.Int32
}

type fakeBranch struct {
	base      string            // fork commit
	snapshot  map[string]string // data as of fork
	writes    map[string]string // uncommitted + committed branch writes
	committed bool
}

func newFakeStore() *fakeVersionedStore {
	fs := &fakeVersionedStore{
		trunk:    "main",
		data:     map[string]string{},
		history:  map[string]map[string]string{},
		branches: map[string]*fakeBranch{},
		locks:    map[string]chan struct{}{},
	}
	fs.newSessionCheckout = fs.trunk
	fs.head = fs.nextCommit()
	fs.history[fs.head] = map[string]string{}
	return fs
}

func (fs *fakeVersionedStore) nextCommit() string {
	fs.commitSeq++
	return fmt.Sprintf("commit-%04d", fs.commitSeq)
}

func snapshot(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (fs *fakeVersionedStore) lockChan(name string) chan struct{} {
	if ch, ok := fs.locks[name]; ok {
		return ch
	}
	ch := make(chan struct{}, 1)
	fs.locks[name] = ch
	return ch
}

// session returns a new dedicated fake session on the default checkout.
func (fs *fakeVersionedStore) session() *fakeSession {
	return &fakeSession{store: fs, checkout: fs.newSessionCheckout}
}

// branchCount returns the number of branches matching the prefix.
func (fs *fakeVersionedStore) branchCount(prefix string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n := 0
	for name := range fs.branches {
		if strings.HasPrefix(name, prefix) {
			n++
		}
	}
	return n
}

func (fs *fakeVersionedStore) trunkValue(key string) string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.data[key]
}

// fakeSession implements the Session interface over fakeVersionedStore.
type fakeSession struct {
	store     *fakeVersionedStore
	checkout  string
	releases  atomic.Int32
	heldLocks map[string]bool
}

var _ Session = (*fakeSession)(nil)

var errFakeSQL = errors.New("plain SQL not supported by fake session")

func (s *fakeSession) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, errFakeSQL
}

func (s *fakeSession) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, errFakeSQL
}

func (s *fakeSession) QueryRowContext(ctx context.Context, scan func(*sql.Row) error, query string, args ...any) error {
	return errFakeSQL
}

// Set writes a key on the branch checked out on this session. Units of work
// in tests use this instead of SQL.
func (s *fakeSession) Set(key, value string) error {
	fs := s.store
	fs.mu.Lock()
	defer fs.mu.Unlock()
	br, ok := fs.branches[s.checkout]
	if !ok {
		return fmt.Errorf("writes to %s not allowed in fake: check out a mutation branch", s.checkout)
	}
	br.writes[key] = value
	return nil
}

// Get reads a key as visible on the checked-out branch.
func (s *fakeSession) Get(key string) string {
	fs := s.store
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if br, ok := fs.branches[s.checkout]; ok {
		if v, ok := br.writes[key]; ok {
			return v
		}
		return br.snapshot[key]
	}
	return fs.data[key]
}

func (s *fakeSession) CreateBranch(ctx context.Context, name, base string) error {
	fs := s.store
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.createAttempts.Add(1)
	if err, ok := fs.failCreateOnce["*"]; ok {
		delete(fs.failCreateOnce, "*")
		return err
	}

	if _, exists := fs.branches[name]; exists {
		return fmt.Errorf("%w: branch %s already exists", store.ErrBranchCreate, name)
	}
	snap, ok := fs.history[base]
	if !ok {
		return fmt.Errorf("%w: base %s not found", store.ErrBranchCreate, base)
	}
	fs.branches[name] = &fakeBranch{
		base:     base,
		snapshot: snapshot(snap),
		writes:   map[string]string{},
	}
	return nil
}

func (s *fakeSession) Checkout(ctx context.Context, branch string) error {
	fs := s.store
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if branch != fs.trunk {
		if _, ok := fs.branches[branch]; !ok {
			return fmt.Errorf("checkout: branch %s not found", branch)
		}
	}
	s.checkout = branch
	return nil
}

func (s *fakeSession) CommitAll(ctx context.Context, message string) (string, error) {
	fs := s.store
	fs.mu.Lock()
	defer fs.mu.Unlock()
	br, ok := fs.branches[s.checkout]
	if !ok {
		return "", fmt.Errorf("commit on %s not supported in fake", s.checkout)
	}
	if len(br.writes) == 0 {
		return "", store.ErrNothingToCommit
	}
	br.committed = true
	return fs.nextCommit(), nil
}

func (s *fakeSession) Merge(ctx context.Context, branch string) (store.MergeResult, error) {
	fs := s.store
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if s.checkout != fs.trunk {
		return store.MergeResult{}, fmt.Errorf("merge applies into the checked-out branch; session is on %s", s.checkout)
	}
	br, ok := fs.branches[branch]
	if !ok {
		return store.MergeResult{}, fmt.Errorf("merge: branch %s not found", branch)
	}
	if !br.committed {
		return store.MergeResult{}, fmt.Errorf("merge: branch %s has no commits", branch)
	}

	// Cell-level conflict detection: a key written on the branch conflicts
	// when trunk changed the same key since the fork point to a different
	// value than the branch wrote.
	conflicts := 0
	for key, branchVal := range br.writes {
		trunkNow, trunkHas := fs.data[key]
		baseVal, baseHas := br.snapshot[key]
		trunkChanged := (trunkHas != baseHas) || (trunkHas && trunkNow != baseVal)
		if trunkChanged && (!trunkHas || trunkNow != branchVal) {
			conflicts++
		}
	}
	if conflicts > 0 {
		return store.MergeResult{Conflicts: conflicts, Message: "conflicts found"}, nil
	}

	for key, val := range br.writes {
		fs.data[key] = val
	}
	fs.head = fs.nextCommit()
	fs.history[fs.head] = snapshot(fs.data)
	return store.MergeResult{Hash: fs.head, Message: "merge successful"}, nil
}

func (s *fakeSession) AbortMerge(ctx context.Context) error {
	// The fake never leaves a half-applied merge; abort is a no-op.
	return nil
}

func (s *fakeSession) DeleteBranch(ctx context.Context, name string) error {
	fs := s.store
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.branches, name) // idempotent: absent is fine
	return nil
}

func (s *fakeSession) ListBranches(ctx context.Context, prefix string) ([]string, error) {
	fs := s.store
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var names []string
	for name := range fs.branches {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (s *fakeSession) Head(ctx context.Context) (string, error) {
	fs := s.store
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if s.checkout == fs.trunk {
		return fs.head, nil
	}
	br, ok := fs.branches[s.checkout]
	if !ok {
		return "", fmt.Errorf("head: branch %s not found", s.checkout)
	}
	return br.base, nil
}

func (s *fakeSession) AcquireLock(ctx context.Context, name string, timeout time.Duration) error {
	fs := s.store
	fs.mu.Lock()
	ch := fs.lockChan(name)
	fs.mu.Unlock()

	select {
	case ch <- struct{}{}:
		holders := fs.lockHolders.Add(1)
		for {
			seen := fs.maxHolders.Load()
			if holders <= seen || fs.maxHolders.CompareAndSwap(seen, holders) {
				break
			}
		}
		if s.heldLocks == nil {
			s.heldLocks = map[string]bool{}
		}
		s.heldLocks[name] = true
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w: %s", store.ErrLockTimeout, name)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *fakeSession) ReleaseLock(ctx context.Context, name string) error {
	if !s.heldLocks[name] {
		return nil
	}
	delete(s.heldLocks, name)
	fs := s.store
	fs.lockHolders.Add(-1)
	fs.mu.Lock()
	ch := fs.lockChan(name)
	fs.mu.Unlock()
	<-ch
	return nil
}

func (s *fakeSession) Release() {
	s.releases.Add(1)
}

// fakePool hands out sessions from the shared fake store and remembers them
// so tests can assert release counts.
type fakePool struct {
	store *fakeVersionedStore

	mu         sync.Mutex
	sessions   []*fakeSession
	acquireErr error
}

var _ Pool = (*fakePool)(nil)

func (p *fakePool) Acquire(ctx context.Context) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	sess := p.store.session()
	p.sessions = append(p.sessions, sess)
	return sess, nil
}
