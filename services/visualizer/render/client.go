// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package render is the client for the external rendering collaborator:
// the black-box image-generation service that composits products onto room
// images, repaints surfaces, and produces alternate viewing angles.
package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/RoomStudio/services/visualizer/datatypes"
)

var (
	// ErrServiceFailure wraps a well-formed failure reported by the
	// rendering service. Never retried automatically.
	ErrServiceFailure = errors.New("rendering service reported a failure")

	// ErrNoSession indicates a call was attempted before a session could
	// be established.
	ErrNoSession = errors.New("no rendering session available")
)

// ModeFlags signal to the renderer how to interpret the product payload.
type ModeFlags struct {
	// Additive composits ProductDeltas onto BaseImage without touching
	// already-placed items.
	Additive bool `json:"additive"`

	// Reset renders AllProducts from a clean room image.
	Reset bool `json:"reset"`

	// Removal removes ProductDeltas (with per-placement delta quantities)
	// from BaseImage.
	Removal bool `json:"removal"`
}

// SurfaceFields carries only the surface axes that actually changed. On
// incremental calls an unchanged axis must be absent: it is already baked
// into the base image being composited onto.
type SurfaceFields struct {
	WallColor   *datatypes.WallColor   `json:"wall_color,omitempty"`
	WallTexture *datatypes.WallTexture `json:"wall_texture,omitempty"`
	FloorTile   *datatypes.FloorTile   `json:"floor_tile,omitempty"`
}

// Empty reports whether no surface axis is carried.
func (s SurfaceFields) Empty() bool {
	return s.WallColor == nil && s.WallTexture == nil && s.FloorTile == nil
}

// RenderRequest is one product-composition render call.
type RenderRequest struct {
	// BaseImage is the image to build on: the last rendered image for
	// incremental calls, the clean room image for initial/reset calls.
	BaseImage string `json:"base_image"`

	// ProductDeltas is the additive delta payload selected by the
	// classification: new placements (or the full list on initial/reset).
	ProductDeltas []datatypes.Placement `json:"product_deltas"`

	// RemovedProducts carries removals, with each placement's Quantity set
	// to the number of copies to remove.
	RemovedProducts []datatypes.Placement `json:"removed_products,omitempty"`

	// AllProducts is the full current product list, sent for context.
	AllProducts []datatypes.Placement `json:"all_products"`

	// PreviouslyRendered is the product list already baked into BaseImage,
	// sent on additive calls so the renderer does not duplicate items.
	PreviouslyRendered []datatypes.Placement `json:"previously_rendered,omitempty"`

	Flags    ModeFlags     `json:"flags"`
	Surfaces SurfaceFields `json:"surfaces,omitempty"`
}

// RenderResult is a successful render.
type RenderResult struct {
	RenderedImage string `json:"rendered_image"`
}

// SurfacesResult is a successful combined surface application.
type SurfacesResult struct {
	RenderedImage   string   `json:"rendered_image"`
	SurfacesApplied []string `json:"surfaces_applied"`
}

// Client is the boundary to the rendering collaborator. Exact transport is
// an implementation detail; HTTPClient is the production implementation
// and tests substitute fakes.
type Client interface {
	// EnsureSession lazily creates the rendering session once per client
	// lifetime and returns the memoized opaque identifier on every
	// subsequent call.
	EnsureSession(ctx context.Context) (string, error)

	// Render executes one product-composition render.
	Render(ctx context.Context, req RenderRequest) (RenderResult, error)

	// ApplySurfaces applies all carried surface axes in one combined call.
	ApplySurfaces(ctx context.Context, baseImage string, surfaces SurfaceFields) (SurfacesResult, error)

	// Per-surface single-axis calls, used as the sequential fallback when
	// the combined call fails.
	ApplyWallColor(ctx context.Context, baseImage string, color datatypes.WallColor) (RenderResult, error)
	ApplyWallTexture(ctx context.Context, baseImage string, texture datatypes.WallTexture) (RenderResult, error)
	ApplyFloorTile(ctx context.Context, baseImage string, tile datatypes.FloorTile) (RenderResult, error)

	// GenerateAngleView produces an alternate-viewpoint render of an
	// already-rendered scene.
	GenerateAngleView(ctx context.Context, baseImage, targetAngle, productsDescription string) (RenderResult, error)
}

// ServiceFailure builds the non-retryable error for a failure message the
// service reported in a well-formed response.
func ServiceFailure(message string) error {
	return fmt.Errorf("%w: %s", ErrServiceFailure, message)
}
