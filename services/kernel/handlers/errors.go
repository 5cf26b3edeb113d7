// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the kernel's REST endpoints. Every handler is
// a constructor returning a gin.HandlerFunc; writes run through the
// mutation orchestrator, reads hit the trunk directly.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianKernel/services/kernel/items"
	"github.com/AleutianAI/AleutianKernel/services/kernel/mutation"
	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

// Mutator is the write path. Satisfied by *mutation.Orchestrator; tests
// substitute a fake.
type Mutator interface {
	Run(ctx context.Context, message, baseVersion string, fn mutation.UnitOfWork) (*mutation.Result, error)
}

// respondError maps kernel errors onto HTTP statuses.
//
// Conflicts and duplicates are 409 with distinct bodies: a conflict means
// "refetch and retry", a duplicate means "it already exists". Lock timeouts
// are 503 with Retry-After since the mutation is safe to re-run. Validation
// failures are 400 and infrastructure failures 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, mutation.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":  "mutation conflicts with a concurrent write",
			"retry":  true,
			"detail": err.Error(),
		})
	case errors.Is(err, store.ErrLockTimeout):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "merge serialization timed out, retry the request",
			"retry": true,
		})
	case errors.Is(err, store.ErrSessionUnavailable):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "no mutation session available, retry the request",
			"retry": true,
		})
	case errors.Is(err, items.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, items.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retry": false})
	case errors.Is(err, items.ErrUnknownType),
		errors.Is(err, items.ErrBadVersion),
		errors.Is(err, items.ErrInUse):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		slog.Error("request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
