// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Request and response types for the visualizer HTTP endpoints.
package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxPlacementsPerRequest bounds the composition size accepted over
	// HTTP. Larger payloads are rejected before any network call.
	MaxPlacementsPerRequest = 200

	// MaxImageRefBytes bounds a single image reference string.
	MaxImageRefBytes = 16 * 1024
)

// vizValidate is the validator instance for visualizer datatypes.
// Initialized in init() with custom validators.
var vizValidate *validator.Validate

func init() {
	vizValidate = validator.New()
	_ = vizValidate.RegisterValidation("imageref", validateImageRef)
}

// validateImageRef rejects image reference strings above MaxImageRefBytes.
// Byte length, not rune count: the references are opaque tokens and the
// bound exists to stop memory exhaustion, not to count characters.
func validateImageRef(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxImageRefBytes
}

// VisualizeRequest carries the UI's current composition to the visualize
// trigger. ForceReset requests a full re-render from the clean room image
// regardless of what the change detector would classify.
type VisualizeRequest struct {
	Composition Composition `json:"composition" binding:"required"`
	ForceReset  bool        `json:"force_reset"`
}

// Validate checks structural limits before the engine touches the request.
func (r VisualizeRequest) Validate() error {
	if len(r.Composition.Placements) > MaxPlacementsPerRequest {
		return fmt.Errorf("too many placements: %d (max %d)",
			len(r.Composition.Placements), MaxPlacementsPerRequest)
	}
	if err := vizValidate.Var(r.Composition.RoomImage, "imageref"); err != nil {
		return fmt.Errorf("room image reference too large")
	}
	for i, p := range r.Composition.Placements {
		if p.Key() == "" {
			return fmt.Errorf("placement %d has an empty stable_id", i)
		}
		for _, img := range p.Images {
			if err := vizValidate.Var(img, "imageref"); err != nil {
				return fmt.Errorf("placement %q image reference too large", p.StableID)
			}
		}
	}
	return nil
}

// QualityRequest triggers the destructive quality re-render. The caller
// must set Confirmed; the engine refuses otherwise because the operation
// wipes the entire undo/redo history.
type QualityRequest struct {
	Confirmed bool `json:"confirmed"`
}

// VisualizeResponse reports a successful render.
type VisualizeResponse struct {
	RenderedImage string `json:"rendered_image"`
	Change        string `json:"change"`
	SessionID     string `json:"session_id,omitempty"`
}

// HistoryStepResponse reports the outcome of an undo or redo.
type HistoryStepResponse struct {
	// Cleared is true when an undo emptied the stack and all visualization
	// state was cleared rather than restored.
	Cleared       bool           `json:"cleared"`
	RenderedImage string         `json:"rendered_image,omitempty"`
	ProductIDs    []string       `json:"product_ids,omitempty"`
	Quantities    map[string]int `json:"quantities,omitempty"`
}

// StateResponse reports the model's observable state.
type StateResponse struct {
	Current              Composition  `json:"current"`
	LastRendered         *Composition `json:"last_rendered,omitempty"`
	RenderedImage        string       `json:"rendered_image,omitempty"`
	NeedsRevisualization bool         `json:"needs_revisualization"`
	HistoryDepth         int          `json:"history_depth"`
	RedoDepth            int          `json:"redo_depth"`
}

// AngleResponse reports an angle view image.
type AngleResponse struct {
	Angle  string `json:"angle"`
	Image  string `json:"image"`
	Cached bool   `json:"cached"`
}

// ProjectInfo summarizes a saved project.
type ProjectInfo struct {
	Name       string `json:"name"`
	EntryCount int    `json:"entry_count"`
	SavedAt    int64  `json:"saved_at"`
}
