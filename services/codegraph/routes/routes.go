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

	"github.com/AleutianAI/codegraph/services/codegraph/handlers"
	"github.com/AleutianAI/codegraph/services/codegraph/telemetry"
)

// SetupRoutes registers every HTTP route of the codegraph service.
//
// The /metrics endpoint is registered only when the Prometheus exporter is
// active (telemetry.MetricsHandler returns nil otherwise).
func SetupRoutes(router *gin.Engine, store handlers.RepositoryStore, engine handlers.Retriever,
	cache handlers.QueryCache, pipeline *handlers.Pipeline, hub *handlers.StatusHub,
	metrics *telemetry.Metrics) {

	router.GET("/health", handlers.HealthCheck)

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/query", handlers.HandleQuery(engine, cache, metrics))

		repositories := v1.Group("/repositories")
		{
			repositories.POST("", handlers.AddRepository(pipeline))
			repositories.GET("", handlers.ListRepositories(store))
			repositories.GET("/ws", handlers.HandleStatusWebSocket(hub))
			repositories.GET("/:name/status", handlers.GetRepositoryStatus(hub, store))
			repositories.GET("/:name/stats", handlers.GetRepositoryStats(store))
			repositories.DELETE("/:name", handlers.DeleteRepository(store, cache, hub))
		}
	}
}
