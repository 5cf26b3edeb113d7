// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianKernel/services/kernel/handlers"
	"github.com/AleutianAI/AleutianKernel/services/kernel/items"
	"github.com/AleutianAI/AleutianKernel/services/kernel/store"
)

func SetupRoutes(router *gin.Engine, mut handlers.Mutator, repo *items.Repo, st *store.Store) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		itemRoutes := v1.Group("/items")
		{
			itemRoutes.POST("", handlers.CreateItem(mut, repo))
			itemRoutes.GET("", handlers.ListItems(repo, st))
			itemRoutes.GET("/:id", handlers.GetItem(repo, st))
			itemRoutes.PUT("/:id", handlers.UpdateItem(mut, repo))
			itemRoutes.DELETE("/:id", handlers.DeleteItem(mut, repo))
			itemRoutes.GET("/:id/history", handlers.ItemHistory(repo, st))
			itemRoutes.PUT("/:id/attributes/:type", handlers.SetAttribute(mut, repo))
			itemRoutes.DELETE("/:id/attributes/:type", handlers.UnsetAttribute(mut, repo))
		}

		v1.POST("/linkages", handlers.LinkItems(mut, repo))
		v1.DELETE("/linkages", handlers.UnlinkItems(mut, repo))

		typeRoutes := v1.Group("/types")
		{
			typeRoutes.GET("", handlers.ListTypes(repo, st))
			typeRoutes.POST("/attributes", handlers.RegisterAttributeType(mut, repo))
			typeRoutes.DELETE("/attributes/:name", handlers.DeleteAttributeType(mut, repo))
			typeRoutes.POST("/linkages", handlers.RegisterLinkageType(mut, repo))
		}

		versionRoutes := v1.Group("/versions")
		{
			versionRoutes.GET("", handlers.VersionLog(repo, st))
			versionRoutes.GET("/head", handlers.HeadVersion(st))
		}
	}
}
