// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianKernel/services/kernel/datatypes"
	"github.com/AleutianAI/AleutianKernel/services/kernel/items"
	"github.com/AleutianAI/AleutianKernel/services/kernel/mutation"
)

func LinkItems(mut Mutator, repo *items.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.LinkageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := mut.Run(c.Request.Context(),
			fmt.Sprintf("link %s -[%s]-> %s", req.FromID, req.Type, req.ToID), req.BaseVersion,
			func(ctx context.Context, sess mutation.Session) (any, error) {
				return nil, repo.Link(ctx, sess, req.FromID, req.ToID, req.Type)
			})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, datatypes.MutationResponse{
			Status:     "linked",
			NewVersion: res.NewVersion,
		})
	}
}

func UnlinkItems(mut Mutator, repo *items.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.LinkageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := mut.Run(c.Request.Context(),
			fmt.Sprintf("unlink %s -[%s]-> %s", req.FromID, req.Type, req.ToID), req.BaseVersion,
			func(ctx context.Context, sess mutation.Session) (any, error) {
				return nil, repo.Unlink(ctx, sess, req.FromID, req.ToID, req.Type)
			})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, datatypes.MutationResponse{
			Status:     "unlinked",
			NewVersion: res.NewVersion,
		})
	}
}
