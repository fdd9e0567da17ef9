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
	"log/slog"
	"net/http"

	"github.com/AleutianAI/RoomStudio/services/visualizer/angles"
	"github.com/AleutianAI/RoomStudio/services/visualizer/datatypes"
	"github.com/AleutianAI/RoomStudio/services/visualizer/engine"
	"github.com/gin-gonic/gin"
)

// HandleUndo steps the history back one entry.
func HandleUndo(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		outcome, err := eng.Undo(c.Request.Context())
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, historyStepResponse(outcome))
	}
}

// HandleRedo re-applies the most recently undone entry.
func HandleRedo(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		outcome, err := eng.Redo(c.Request.Context())
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, historyStepResponse(outcome))
	}
}

func historyStepResponse(outcome engine.HistoryOutcome) datatypes.HistoryStepResponse {
	if outcome.Cleared {
		return datatypes.HistoryStepResponse{Cleared: true}
	}
	return datatypes.HistoryStepResponse{
		RenderedImage: outcome.Entry.RenderedImage,
		ProductIDs:    outcome.Entry.ProductIDs,
		Quantities:    outcome.Entry.Quantities,
	}
}

// HandleAngleView serves (and lazily generates) alternate viewing angles.
func HandleAngleView(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		angle, err := angles.Parse(c.Param("angle"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		image, cached, err := eng.AngleView(c.Request.Context(), angle)
		if err != nil {
			slog.Error("Angle view failed", "angle", angle, "error", err)
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, datatypes.AngleResponse{
			Angle:  string(angle),
			Image:  image,
			Cached: cached,
		})
	}
}
