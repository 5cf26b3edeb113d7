// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides the versioned store client for the data kernel.
//
// The backing database is Dolt: a version-controlled SQL database reached
// over the MySQL wire protocol. Version-control operations (branch,
// checkout, commit, merge, advisory locks) are issued as stored procedure
// calls and system functions on top of plain SQL.
//
// The package distinguishes two access shapes:
//
//   - Pool-level statements (Store.ExecContext / QueryContext): trunk reads
//     and schema work. Safe to retry on transient errors because they carry
//     no session state.
//   - Dedicated sessions (Store.Acquire → Session): a single pinned
//     connection that owns branch-scoped state. DOLT_CHECKOUT is
//     session-level, so everything a mutation does between branch creation
//     and teardown must stay on one Session.
//
// # Thread Safety
//
// Store is safe for concurrent use. A Session is owned by exactly one
// caller and must not be shared.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	mysql "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default connection settings.
const (
	DefaultPort           = 3306
	DefaultUser           = "root"
	DefaultMaxSessions    = 10
	DefaultAcquireWait    = 5 * time.Second
	serverRetryMaxElapsed = 15 * time.Second
)

// kernelTracer is the OTel tracer for SQL-level spans. It uses the global
// provider, which is a no-op until the tracer provider is installed at boot.
var kernelTracer = otel.Tracer("github.com/AleutianAI/AleutianKernel/services/kernel/store")

// Config holds connection settings for the Dolt SQL server.
type Config struct {
	Host     string // Server host (default: 127.0.0.1)
	Port     int    // Server port (default: 3306)
	User     string // MySQL user (default: root)
	Password string // MySQL password (default: empty)
	Database string // Database name (required)

	// MaxSessions bounds the connection pool. Every in-flight branched
	// mutation pins one connection, so this is also the mutation
	// concurrency limit.
	MaxSessions int

	// AcquireWait bounds how long Acquire blocks on an exhausted pool.
	AcquireWait time.Duration
}

// Store is a pooled client for the versioned SQL store.
type Store struct {
	db     *sql.DB
	cfg    Config
	closed atomic.Bool
	logger *slog.Logger
}

func applyConfigDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.User == "" {
		cfg.User = DefaultUser
	}
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.AcquireWait == 0 {
		cfg.AcquireWait = DefaultAcquireWait
	}
}

// BuildDSN builds the MySQL driver DSN for the given config.
func BuildDSN(cfg Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.InterpolateParams = false
	return mc.FormatDSN()
}

// Open connects to the Dolt SQL server and verifies reachability.
//
// # Inputs
//
//   - ctx: Bounds the initial connectivity probe.
//   - cfg: Connection settings. Database is required.
//
// # Outputs
//
//   - *Store: Ready-to-use pooled client.
//   - error: Non-nil if the server is unreachable within the retry window.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Database == "" {
		return nil, fmt.Errorf("database name is required")
	}
	applyConfigDefaults(&cfg)

	db, err := sql.Open("mysql", BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening store connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxSessions)
	db.SetMaxIdleConns(cfg.MaxSessions)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with retry: the server may still be coming up.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = serverRetryMaxElapsed
	if err := backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(bo, ctx)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store unreachable at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &Store{
		db:     db,
		cfg:    cfg,
		logger: slog.Default().With("component", "store"),
	}, nil
}

// Close closes the underlying pool. Safe to call more than once.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying pool for schema bootstrap. Use sparingly;
// prefer the typed methods for normal operations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// withRetry executes a pool-level operation with backoff retry of transient
// connection errors. Non-retryable errors stop immediately.
func (s *Store) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = serverRetryMaxElapsed
	return backoff.Retry(func() error {
		err := op()
		if err != nil && isRetryableError(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}

// spanSQL truncates a SQL string to keep spans readable.
func spanSQL(q string) string {
	if len(q) > 300 {
		return q[:300] + "…"
	}
	return q
}

// endSpan records an error (if any) and ends the span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ExecContext runs a pool-level write statement with retry and tracing.
// Trunk-scoped only: branch work must go through a Session.
func (s *Store) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	ctx, span := kernelTracer.Start(ctx, "store.exec",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "dolt"),
			attribute.String("db.statement", spanSQL(query)),
		),
	)
	var result sql.Result
	err := s.withRetry(ctx, func() error {
		var execErr error
		result, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	endSpan(span, err)
	return result, err
}

// QueryContext runs a pool-level query with retry and tracing.
func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	ctx, span := kernelTracer.Start(ctx, "store.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "dolt"),
			attribute.String("db.statement", spanSQL(query)),
		),
	)
	var rows *sql.Rows
	err := s.withRetry(ctx, func() error {
		if rows != nil {
			// Close Rows from a failed previous attempt to avoid leaking a conn.
			_ = rows.Close()
			rows = nil
		}
		var queryErr error
		rows, queryErr = s.db.QueryContext(ctx, query, args...)
		return queryErr
	})
	endSpan(span, err)
	return rows, err
}

// QueryRowContext runs a pool-level single-row query. The scan function
// receives the *sql.Row and should call .Scan on it.
func (s *Store) QueryRowContext(ctx context.Context, scan func(*sql.Row) error, query string, args ...any) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	ctx, span := kernelTracer.Start(ctx, "store.query_row",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "dolt"),
			attribute.String("db.statement", spanSQL(query)),
		),
	)
	err := s.withRetry(ctx, func() error {
		return scan(s.db.QueryRowContext(ctx, query, args...))
	})
	endSpan(span, err)
	return err
}

// Head returns the current head commit of the trunk as seen by the pool.
// Reads without locking: a stale head before forking is expected and handled
// by merge-time conflict detection, not prevented.
func (s *Store) Head(ctx context.Context) (string, error) {
	var head string
	err := s.QueryRowContext(ctx, func(row *sql.Row) error {
		return row.Scan(&head)
	}, "SELECT dolt_hashof('HEAD')")
	if err != nil {
		return "", fmt.Errorf("reading trunk head: %w", err)
	}
	return head, nil
}

// Acquire pins a dedicated connection and returns it as a Session.
//
// The Session owns all branch-scoped state for one logical operation. It
// must be released with Session.Release, and only after any mutation branch
// checked out on it has been torn down. Returning a connection to the pool
// while it is parked on a soon-to-vanish branch would leak branch state into
// an unrelated caller.
func (s *Store) Acquire(ctx context.Context) (*Session, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	acquireCtx, cancel := context.WithTimeout(ctx, s.cfg.AcquireWait)
	defer cancel()

	conn, err := s.db.Conn(acquireCtx)
	if err != nil {
		s.logger.Warn("session acquisition failed",
			"error", err,
			"max_sessions", s.cfg.MaxSessions)
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	return &Session{conn: conn, logger: s.logger}, nil
}
