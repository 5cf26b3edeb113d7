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

func SetAttribute(mut Mutator, repo *items.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		attrType := c.Param("type")
		var req datatypes.SetAttributeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := mut.Run(c.Request.Context(),
			fmt.Sprintf("set attribute %s on %s", attrType, id), req.BaseVersion,
			func(ctx context.Context, sess mutation.Session) (any, error) {
				return nil, repo.SetAttribute(ctx, sess, id, attrType, req.Value)
			})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, datatypes.MutationResponse{
			Status:     "set",
			NewVersion: res.NewVersion,
		})
	}
}

func UnsetAttribute(mut Mutator, repo *items.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		attrType := c.Param("type")

		res, err := mut.Run(c.Request.Context(),
			fmt.Sprintf("unset attribute %s on %s", attrType, id), c.Query("base_version"),
			func(ctx context.Context, sess mutation.Session) (any, error) {
				return nil, repo.UnsetAttribute(ctx, sess, id, attrType)
			})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, datatypes.MutationResponse{
			Status:     "unset",
			NewVersion: res.NewVersion,
		})
	}
}
