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
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianKernel/services/kernel/datatypes"
	"github.com/AleutianAI/AleutianKernel/services/kernel/items"
	"github.com/AleutianAI/AleutianKernel/services/kernel/mutation"
	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

func CreateItem(mut Mutator, repo *items.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := mut.Run(c.Request.Context(),
			fmt.Sprintf("create item kind=%s", req.Kind), req.BaseVersion,
			func(ctx context.Context, sess mutation.Session) (any, error) {
				return repo.CreateItem(ctx, sess, req.Kind, req.Body, req.ID)
			})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, datatypes.ItemResponse{
			Item:       res.Value.(*items.Item),
			NewVersion: res.NewVersion,
		})
	}
}

func GetItem(repo *items.Repo, q store.Querier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		// ?as_of=<version> reads the item at a past commit or branch ref.
		if asOf := c.Query("as_of"); asOf != "" {
			it, err := repo.GetItemAsOf(c.Request.Context(), q, id, asOf)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, datatypes.ItemDetail{Item: it})
			return
		}

		it, err := repo.GetItem(c.Request.Context(), q, id)
		if err != nil {
			respondError(c, err)
			return
		}
		attrs, err := repo.ListAttributes(c.Request.Context(), q, id)
		if err != nil {
			respondError(c, err)
			return
		}
		links, err := repo.Neighbors(c.Request.Context(), q, id, "")
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.ItemDetail{Item: it, Attributes: attrs, Linkages: links})
	}
}

func UpdateItem(mut Mutator, repo *items.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		var req datatypes.UpdateItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := mut.Run(c.Request.Context(),
			fmt.Sprintf("update item %s", id), req.BaseVersion,
			func(ctx context.Context, sess mutation.Session) (any, error) {
				return repo.UpdateItem(ctx, sess, id, req.Kind, req.Body)
			})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, datatypes.ItemResponse{
			Item:       res.Value.(*items.Item),
			NewVersion: res.NewVersion,
		})
	}
}

func DeleteItem(mut Mutator, repo *items.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		res, err := mut.Run(c.Request.Context(),
			fmt.Sprintf("delete item %s", id), c.Query("base_version"),
			func(ctx context.Context, sess mutation.Session) (any, error) {
				return nil, repo.DeleteItem(ctx, sess, id)
			})
		if err != nil {
			respondError(c, err)
			return
		}

		slog.Info("item deleted", "id", id, "new_version", res.NewVersion)
		c.JSON(http.StatusOK, datatypes.MutationResponse{
			Status:     "deleted",
			NewVersion: res.NewVersion,
		})
	}
}

func ListItems(repo *items.Repo, q store.Querier) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		list, err := repo.ListItems(c.Request.Context(), q, c.Query("kind"), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": list, "count": len(list)})
	}
}
