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
	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

func RegisterAttributeType(mut Mutator, repo *items.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RegisterAttributeTypeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := mut.Run(c.Request.Context(),
			fmt.Sprintf("register attribute type %s", req.Name), req.BaseVersion,
			func(ctx context.Context, sess mutation.Session) (any, error) {
				return nil, repo.RegisterAttributeType(ctx, sess, req.Name, req.ValueKind)
			})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, datatypes.MutationResponse{
			Status:     "registered",
			NewVersion: res.NewVersion,
		})
	}
}

func RegisterLinkageType(mut Mutator, repo *items.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RegisterLinkageTypeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := mut.Run(c.Request.Context(),
			fmt.Sprintf("register linkage type %s", req.Name), req.BaseVersion,
			func(ctx context.Context, sess mutation.Session) (any, error) {
				return nil, repo.RegisterLinkageType(ctx, sess, req.Name)
			})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, datatypes.MutationResponse{
			Status:     "registered",
			NewVersion: res.NewVersion,
		})
	}
}

// DeleteAttributeType removes an attribute type from the registry. Types
// still referenced by stored attributes are refused.
func DeleteAttributeType(mut Mutator, repo *items.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		var req datatypes.DeleteTypeQuery
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := mut.Run(c.Request.Context(),
			fmt.Sprintf("delete attribute type %s", name), req.BaseVersion,
			func(ctx context.Context, sess mutation.Session) (any, error) {
				return nil, repo.DeleteAttributeType(ctx, sess, name)
			})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, datatypes.MutationResponse{
			Status:     "deleted",
			NewVersion: res.NewVersion,
		})
	}
}

func ListTypes(repo *items.Repo, q store.Querier) gin.HandlerFunc {
	return func(c *gin.Context) {
		attrTypes, err := repo.ListAttributeTypes(c.Request.Context(), q)
		if err != nil {
			respondError(c, err)
			return
		}
		linkTypes, err := repo.ListLinkageTypes(c.Request.Context(), q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.TypesResponse{
			AttributeTypes: attrTypes,
			LinkageTypes:   linkTypes,
		})
	}
}
