// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/AleutianAI/AleutianKernel/pkg/logging"
	"github.com/AleutianAI/AleutianKernel/services/kernel/config"
	"github.com/AleutianAI/AleutianKernel/services/kernel/items"
	"github.com/AleutianAI/AleutianKernel/services/kernel/mcptools"
	"github.com/AleutianAI/AleutianKernel/services/kernel/mutation"
	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

// bootstrapStore mirrors cmd/kernel: schema as a trunk commit, then a sweep
// of leftover mutation branches.
func bootstrapStore(ctx context.Context, st *store.Store) error {
	sess, err := st.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring bootstrap session: %w", err)
	}
	defer sess.Release()

	if err := items.EnsureSchema(ctx, sess); err != nil {
		return err
	}
	if _, err := sess.CommitAll(ctx, "initialize kernel schema"); err != nil &&
		!errors.Is(err, store.ErrNothingToCommit) {
		return fmt.Errorf("committing kernel schema: %w", err)
	}

	swept, err := mutation.SweepOrphans(ctx, sess)
	if err != nil {
		return err
	}
	if swept > 0 {
		slog.Info("swept orphaned mutation branches", "count", swept)
	}
	return nil
}

func main() {
	// Stdout carries the MCP protocol; logs go to stderr.
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(os.Getenv("KERNEL_LOG_LEVEL")),
		Service: "kernel-mcp",
		JSON:    true,
		LogDir:  os.Getenv("KERNEL_LOG_DIR"),
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg, err := config.Load(os.Getenv("KERNEL_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load the kernel config: %v", err)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, store.Config{
		Host:        cfg.DB.Host,
		Port:        cfg.DB.Port,
		User:        cfg.DB.User,
		Password:    cfg.DB.Password,
		Database:    cfg.DB.Name,
		MaxSessions: cfg.DB.MaxSessions,
	})
	if err != nil {
		log.Fatalf("failed to connect to the versioned store: %v", err)
	}
	defer st.Close()

	if err := bootstrapStore(ctx, st); err != nil {
		log.Fatalf("failed to bootstrap the store: %v", err)
	}

	repo := items.NewRepo()
	orch := mutation.NewOrchestrator(
		mutation.PoolFromStore(st),
		mutation.NewLifecycle(cfg.Merge.TrunkBranch),
		mutation.NewCoordinator(mutation.DefaultLockName, cfg.Merge.LockTimeout()))

	s := mcptools.NewServer(orch, repo, st)

	slog.Info("starting the kernel MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("kernel MCP server failed: %v", err)
	}
}
