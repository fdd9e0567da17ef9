// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin handlers for the visualizer endpoints.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/RoomStudio/services/visualizer/datatypes"
	"github.com/AleutianAI/RoomStudio/services/visualizer/engine"
	"github.com/AleutianAI/RoomStudio/services/visualizer/render"
	"github.com/gin-gonic/gin"
)

// statusFor maps engine and renderer errors onto HTTP statuses. Failures
// leave server state untouched, so every error is safe to retry by
// re-triggering the same action.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrRenderInFlight):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNothingToVisualize),
		errors.Is(err, engine.ErrNotConfirmed),
		errors.Is(err, engine.ErrNothingToUndo),
		errors.Is(err, engine.ErrNothingToRedo),
		errors.Is(err, engine.ErrNoRenderedImage),
		errors.Is(err, engine.ErrNoRoomImage):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNoChangesProduced):
		return http.StatusUnprocessableEntity
	case errors.Is(err, render.ErrServiceFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleVisualize runs one visualize trigger for the submitted
// composition.
func HandleVisualize(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.VisualizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		outcome, err := eng.Visualize(c.Request.Context(), req.Composition, req.ForceReset)
		if err != nil {
			slog.Error("Visualization failed", "error", err)
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		resp := datatypes.VisualizeResponse{
			RenderedImage: outcome.RenderedImage,
			Change:        string(outcome.Change),
		}
		if sessionID, err := eng.Session(c.Request.Context()); err == nil {
			resp.SessionID = sessionID
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HandleQuality runs the destructive full-quality re-render. The request
// must carry confirmed=true; the undo/redo history is wiped on success.
func HandleQuality(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.QualityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		outcome, err := eng.ImproveQuality(c.Request.Context(), req.Confirmed)
		if err != nil {
			slog.Error("Quality re-render failed", "error", err)
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, datatypes.VisualizeResponse{
			RenderedImage: outcome.RenderedImage,
			Change:        string(outcome.Change),
		})
	}
}

// HandleState reports the model's observable state.
func HandleState(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		model := eng.Model()
		resp := datatypes.StateResponse{
			Current:              model.Current(),
			RenderedImage:        model.RenderedImage(),
			NeedsRevisualization: model.NeedsRevisualization(),
			HistoryDepth:         eng.History().Depth(),
			RedoDepth:            eng.History().RedoDepth(),
		}
		if last, ok := model.LastRendered(); ok {
			resp.LastRendered = &last
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
