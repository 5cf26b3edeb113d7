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
	"testing"
	"time"

	mysql "github.com/go-sql-driver/mysql"
)

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(Config{
		Host:     "dolt.internal",
		Port:     3307,
		User:     "kernel",
		Password: "secret",
		Database: "kerneldb",
	})

	for _, want := range []string{
		"kernel:secret@",
		"tcp(dolt.internal:3307)",
		"/kerneldb",
		"parseTime=true",
	} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q missing %q", dsn, want)
		}
	}
}

func TestApplyConfigDefaults(t *testing.T) {
	cfg := Config{Database: "kerneldb"}
	applyConfigDefaults(&cfg)

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Host = %q, want 127.0.0.1", cfg.Host)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.MaxSessions != DefaultMaxSessions {
		t.Errorf("MaxSessions = %d, want %d", cfg.MaxSessions, DefaultMaxSessions)
	}
	if cfg.AcquireWait != DefaultAcquireWait {
		t.Errorf("AcquireWait = %v, want %v", cfg.AcquireWait, DefaultAcquireWait)
	}
}

func TestValidateBranchName(t *testing.T) {
	valid := []string{
		"main",
		"mutation/550e8400-e456",
		"feature/sub.branch-2",
	}
	for _, name := range valid {
		if err := ValidateBranchName(name); err != nil {
			t.Errorf("ValidateBranchName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{
		"",
		"branch with spaces",
		"branch;drop",
		"branch'quote",
		strings.Repeat("x", 300),
	}
	for _, name := range invalid {
		if err := ValidateBranchName(name); err == nil {
			t.Errorf("ValidateBranchName(%q) accepted an invalid name", name)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	retryable := []error{
		errors.New("driver: bad connection"),
		errors.New("invalid connection"),
		errors.New("write tcp 1.2.3.4:3306: broken pipe"),
		errors.New("read: connection reset by peer"),
		errors.New("dial tcp: connection refused"),
		errors.New("Error 2013: Lost connection to MySQL server during query"),
		errors.New("Error 2006: MySQL server has gone away"),
		errors.New("read tcp: i/o timeout"),
	}
	for _, err := range retryable {
		if !isRetryableError(err) {
			t.Errorf("isRetryableError(%v) = false, want true", err)
		}
	}

	permanent := []error{
		nil,
		errors.New("Error 1062: Duplicate entry 'x' for key 'PRIMARY'"),
		errors.New("syntax error near SELECT"),
		ErrLockTimeout,
	}
	for _, err := range permanent {
		if isRetryableError(err) {
			t.Errorf("isRetryableError(%v) = true, want false", err)
		}
	}
}

func TestIsDuplicateKey(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	if !IsDuplicateKey(dup) {
		t.Error("mysql error 1062 not detected as duplicate")
	}

	other := &mysql.MySQLError{Number: 1054, Message: "Unknown column"}
	if IsDuplicateKey(other) {
		t.Error("mysql error 1054 misdetected as duplicate")
	}
	if IsDuplicateKey(errors.New("Duplicate entry")) {
		t.Error("plain error misdetected as duplicate")
	}
}

func TestLockWaitSeconds(t *testing.T) {
	cases := []struct {
		timeout time.Duration
		want    float64
	}{
		{100 * time.Millisecond, 0.1},
		{2500 * time.Millisecond, 2.5},
		{10 * time.Second, 10},
		{0, 0},
		{-time.Second, 0},
	}
	for _, tc := range cases {
		if got := lockWaitSeconds(tc.timeout); got != tc.want {
			t.Errorf("lockWaitSeconds(%v) = %v, want %v", tc.timeout, got, tc.want)
		}
	}
}

func TestScanMergeRow(t *testing.T) {
	t.Run("clean merge row", func(t *testing.T) {
		res, err := scanMergeRow(func(dest ...any) error {
			if len(dest) != 4 {
				t.Fatalf("scanned %d columns, DOLT_MERGE returns 4", len(dest))
			}
			*dest[0].(*string) = "abc123"
			*dest[1].(*int) = 1
			*dest[2].(*int) = 0
			*dest[3].(*string) = "merge successful"
			return nil
		})
		if err != nil {
			t.Fatalf("scanMergeRow: %v", err)
		}
		if res.Hash != "abc123" || !res.FastForward || res.Conflicts != 0 {
			t.Errorf("res = %+v, want clean fast-forward merge", res)
		}
		if res.Message != "merge successful" {
			t.Errorf("Message = %q, want the server message", res.Message)
		}
	})

	t.Run("conflicted merge row", func(t *testing.T) {
		res, err := scanMergeRow(func(dest ...any) error {
			*dest[0].(*string) = ""
			*dest[1].(*int) = 0
			*dest[2].(*int) = 3
			*dest[3].(*string) = "conflicts found"
			return nil
		})
		if err != nil {
			t.Fatalf("scanMergeRow: %v", err)
		}
		if res.Conflicts != 3 || res.FastForward {
			t.Errorf("res = %+v, want 3 conflicts and no fast-forward", res)
		}
	})

	t.Run("scan error propagates", func(t *testing.T) {
		scanErr := errors.New("expected 4 destination arguments in Scan")
		if _, err := scanMergeRow(func(dest ...any) error { return scanErr }); !errors.Is(err, scanErr) {
			t.Fatalf("error = %v, want the scan error", err)
		}
	})
}

func TestDoltErrorClassification(t *testing.T) {
	t.Run("branch not found", func(t *testing.T) {
		for _, msg := range []string{
			"branch not found: mutation/abc",
			"could not find branch mutation/abc",
			"branch 'mutation/abc' does not exist",
		} {
			if !isBranchNotFoundError(errors.New(msg)) {
				t.Errorf("%q not classified as branch-not-found", msg)
			}
		}
		if isBranchNotFoundError(errors.New("merge conflict")) {
			t.Error("merge conflict misclassified as branch-not-found")
		}
	})

	t.Run("nothing to commit", func(t *testing.T) {
		if !isNothingToCommitError(errors.New("nothing to commit")) {
			t.Error("clean working set not classified")
		}
		if isNothingToCommitError(errors.New("conflict during commit")) {
			t.Error("conflict misclassified as nothing-to-commit")
		}
	})
}
