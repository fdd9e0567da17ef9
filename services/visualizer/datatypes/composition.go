// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the visualizer service.
//
// This file contains the composition model: placed products, surface
// selections, and the room composition snapshot that the change detector
// and history manager operate on. Request/response types for the HTTP
// endpoints live in requests.go, history records in history.go.
package datatypes

import (
	"strings"
)

// NormalizeID canonicalizes a product stable id for comparison.
//
// All identity comparisons in the visualizer go through this function so
// that "  Sofa-01 " and "sofa-01" refer to the same product. Display
// fields are never normalized.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Placement is one product placed in the room composition.
//
// Products are compared by normalized StableID only. Category and Name are
// display metadata and must not participate in identity or equality checks.
type Placement struct {
	// StableID is the stable product identity, normalized via NormalizeID
	// for every comparison.
	StableID string `json:"stable_id" binding:"required"`

	// Name is the display name shown in labels.
	Name string `json:"name"`

	// Quantity is the number of copies placed. Zero or negative is treated
	// as 1 (the default for a freshly placed product).
	Quantity int `json:"quantity"`

	// Images are the rendering payload references for this product.
	Images []string `json:"images,omitempty"`

	// Category tags the product type for labeling. Display-only.
	Category string `json:"category,omitempty"`
}

// Key returns the normalized identity of the placement.
func (p Placement) Key() string {
	return NormalizeID(p.StableID)
}

// EffectiveQuantity returns the placement quantity, defaulting to 1.
func (p Placement) EffectiveQuantity() int {
	if p.Quantity < 1 {
		return 1
	}
	return p.Quantity
}

// WallColor is a wall color surface selection.
type WallColor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
	Hex  string `json:"hex"`
}

// WallTexture is a wall texture surface selection.
type WallTexture struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FloorTile is a floor tile surface selection.
type FloorTile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Composition is the full scene at a point in time: the base room image,
// every placed product, and the three independently nullable surface
// selections. "No selection" (nil) and "a different selection" are distinct
// states; a change from color A to color B re-renders even though both are
// non-nil.
type Composition struct {
	RoomImage   string       `json:"room_image"`
	Placements  []Placement  `json:"placements"`
	WallColor   *WallColor   `json:"wall_color,omitempty"`
	WallTexture *WallTexture `json:"wall_texture,omitempty"`
	FloorTile   *FloorTile   `json:"floor_tile,omitempty"`
}

// Clone returns a deep copy of the composition. History entries and the
// last-rendered snapshot must never alias the live composition's slices.
func (c Composition) Clone() Composition {
	out := c
	if c.Placements != nil {
		out.Placements = make([]Placement, len(c.Placements))
		copy(out.Placements, c.Placements)
		for i := range out.Placements {
			if imgs := out.Placements[i].Images; imgs != nil {
				cp := make([]string, len(imgs))
				copy(cp, imgs)
				out.Placements[i].Images = cp
			}
		}
	}
	if c.WallColor != nil {
		wc := *c.WallColor
		out.WallColor = &wc
	}
	if c.WallTexture != nil {
		wt := *c.WallTexture
		out.WallTexture = &wt
	}
	if c.FloorTile != nil {
		ft := *c.FloorTile
		out.FloorTile = &ft
	}
	return out
}

// ProductIDs returns the normalized id of every placement, in placement
// order, without duplicates.
func (c Composition) ProductIDs() []string {
	ids := make([]string, 0, len(c.Placements))
	seen := make(map[string]bool, len(c.Placements))
	for _, p := range c.Placements {
		key := p.Key()
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		ids = append(ids, key)
	}
	return ids
}

// QuantityMap returns normalized id -> total quantity. Duplicate placements
// of the same id accumulate.
func (c Composition) QuantityMap() map[string]int {
	m := make(map[string]int, len(c.Placements))
	for _, p := range c.Placements {
		key := p.Key()
		if key == "" {
			continue
		}
		m[key] += p.EffectiveQuantity()
	}
	return m
}

// WallColorID returns the selected wall color id, or "" when unset.
func (c Composition) WallColorID() string {
	if c.WallColor == nil {
		return ""
	}
	return c.WallColor.ID
}

// WallTextureID returns the selected wall texture id, or "" when unset.
func (c Composition) WallTextureID() string {
	if c.WallTexture == nil {
		return ""
	}
	return c.WallTexture.ID
}

// FloorTileID returns the selected floor tile id, or "" when unset.
func (c Composition) FloorTileID() string {
	if c.FloorTile == nil {
		return ""
	}
	return c.FloorTile.ID
}

// HasProducts reports whether at least one placement with a usable id exists.
func (c Composition) HasProducts() bool {
	for _, p := range c.Placements {
		if p.Key() != "" {
			return true
		}
	}
	return false
}

// HasSurfaces reports whether any surface axis is selected.
func (c Composition) HasSurfaces() bool {
	return c.WallColor != nil || c.WallTexture != nil || c.FloorTile != nil
}
