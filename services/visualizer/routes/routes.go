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
	"github.com/AleutianAI/RoomStudio/services/visualizer/engine"
	"github.com/AleutianAI/RoomStudio/services/visualizer/handlers"
	"github.com/AleutianAI/RoomStudio/services/visualizer/store"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes wires every visualizer endpoint onto the router.
func SetupRoutes(router *gin.Engine, eng *engine.Engine, projects *store.ProjectStore) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/visualize", handlers.HandleVisualize(eng))
		v1.POST("/visualize/quality", handlers.HandleQuality(eng))
		v1.POST("/undo", handlers.HandleUndo(eng))
		v1.POST("/redo", handlers.HandleRedo(eng))
		v1.GET("/state", handlers.HandleState(eng))
		v1.GET("/angles/:angle", handlers.HandleAngleView(eng))

		projectsGroup := v1.Group("/projects")
		{
			projectsGroup.GET("", handlers.HandleProjectList(projects))
			projectsGroup.POST("/:name/save", handlers.HandleProjectSave(eng, projects))
			projectsGroup.POST("/:name/load", handlers.HandleProjectLoad(eng, projects))
		}
	}
}
