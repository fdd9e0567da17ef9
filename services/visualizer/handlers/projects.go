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
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/RoomStudio/services/visualizer/engine"
	"github.com/AleutianAI/RoomStudio/services/visualizer/store"
	"github.com/gin-gonic/gin"
)

// HandleProjectSave persists the current history stack under a name.
func HandleProjectSave(eng *engine.Engine, projects *store.ProjectStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		entries := eng.History().Snapshot()
		if err := projects.Save(c.Request.Context(), name, entries); err != nil {
			slog.Error("Failed to save project", "name", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save project"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "name": name, "entries": len(entries)})
	}
}

// HandleProjectLoad restores a saved project: the history stack is
// replaced and the model is re-seeded from the newest entry (or cleared
// for an empty project).
func HandleProjectLoad(eng *engine.Engine, projects *store.ProjectStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		entries, err := projects.Load(c.Request.Context(), name)
		if err != nil {
			if errors.Is(err, store.ErrProjectNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			slog.Error("Failed to load project", "name", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load project"})
			return
		}

		if err := eng.RestoreProject(entries); err != nil {
			slog.Error("Rejected project restore", "name", name, "error", err)
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		slog.Info("Loaded project", "name", name, "entries", len(entries))
		c.JSON(http.StatusOK, gin.H{"status": "success", "name": name, "entries": len(entries)})
	}
}

// HandleProjectList summarizes all saved projects.
func HandleProjectList(projects *store.ProjectStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		infos, err := projects.List(c.Request.Context())
		if err != nil {
			slog.Error("Failed to list projects", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list projects"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"projects": infos})
	}
}
