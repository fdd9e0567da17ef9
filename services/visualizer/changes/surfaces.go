// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package changes

import (
	"github.com/AleutianAI/RoomStudio/services/visualizer/datatypes"
)

// SurfaceChanges reports, per axis, whether the surface selection differs
// between the current and last-rendered compositions, and the new value
// when it does. A cleared selection (non-nil -> nil) counts as changed with
// a nil new value.
//
// Surface diffing is independent of the product classification: a
// no_change product result combined with a changed axis still requires a
// render.
type SurfaceChanges struct {
	WallColorChanged   bool
	WallTextureChanged bool
	FloorTileChanged   bool

	WallColor   *datatypes.WallColor
	WallTexture *datatypes.WallTexture
	FloorTile   *datatypes.FloorTile
}

// Any reports whether at least one axis changed.
func (s SurfaceChanges) Any() bool {
	return s.WallColorChanged || s.WallTextureChanged || s.FloorTileChanged
}

// Count returns how many axes changed.
func (s SurfaceChanges) Count() int {
	n := 0
	if s.WallColorChanged {
		n++
	}
	if s.WallTextureChanged {
		n++
	}
	if s.FloorTileChanged {
		n++
	}
	return n
}

// Cleared reports whether any changed axis changed to "no selection".
// Un-painting cannot be composited onto the existing image, so the engine
// escalates cleared axes to a full reset render.
func (s SurfaceChanges) Cleared() bool {
	return (s.WallColorChanged && s.WallColor == nil) ||
		(s.WallTextureChanged && s.WallTexture == nil) ||
		(s.FloorTileChanged && s.FloorTile == nil)
}

// DetectSurfaces compares each surface axis by id. Identity matters, not
// presence: A -> B is a change even though both are non-nil.
func DetectSurfaces(current, last datatypes.Composition) SurfaceChanges {
	var s SurfaceChanges
	if current.WallColorID() != last.WallColorID() {
		s.WallColorChanged = true
		s.WallColor = current.WallColor
	}
	if current.WallTextureID() != last.WallTextureID() {
		s.WallTextureChanged = true
		s.WallTexture = current.WallTexture
	}
	if current.FloorTileID() != last.FloorTileID() {
		s.FloorTileChanged = true
		s.FloorTile = current.FloorTile
	}
	return s
}
