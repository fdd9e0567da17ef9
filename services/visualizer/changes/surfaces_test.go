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
	"testing"

	"github.com/AleutianAI/RoomStudio/services/visualizer/datatypes"
)

func wallColor(id string) *datatypes.WallColor {
	return &datatypes.WallColor{ID: id, Name: id}
}

func TestDetectSurfaces_NoChange(t *testing.T) {
	comp := datatypes.Composition{WallColor: wallColor("c1")}
	s := DetectSurfaces(comp, comp)
	if s.Any() {
		t.Errorf("Any() = true for identical compositions: %+v", s)
	}
}

func TestDetectSurfaces_ColorSwap(t *testing.T) {
	last := datatypes.Composition{WallColor: wallColor("c1")}
	current := datatypes.Composition{WallColor: wallColor("c2")}

	s := DetectSurfaces(current, last)
	if !s.WallColorChanged {
		t.Fatal("WallColorChanged = false for c1 -> c2")
	}
	if s.WallColor == nil || s.WallColor.ID != "c2" {
		t.Errorf("WallColor = %v, want the new selection", s.WallColor)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
	if s.Cleared() {
		t.Error("Cleared() = true for a swap to a non-nil selection")
	}
}

func TestDetectSurfaces_ClearedAxis(t *testing.T) {
	last := datatypes.Composition{
		WallColor: wallColor("c1"),
		FloorTile: &datatypes.FloorTile{ID: "t1"},
	}
	current := datatypes.Composition{FloorTile: &datatypes.FloorTile{ID: "t1"}}

	s := DetectSurfaces(current, last)
	if !s.WallColorChanged || s.WallColor != nil {
		t.Fatalf("expected a cleared wall color axis, got %+v", s)
	}
	if !s.Cleared() {
		t.Error("Cleared() = false when an axis changed to nil")
	}
	if s.FloorTileChanged {
		t.Error("unchanged floor tile reported as changed")
	}
}

func TestDetectSurfaces_MultipleAxes(t *testing.T) {
	last := datatypes.Composition{}
	current := datatypes.Composition{
		WallColor:   wallColor("c1"),
		WallTexture: &datatypes.WallTexture{ID: "x1"},
		FloorTile:   &datatypes.FloorTile{ID: "t1"},
	}

	s := DetectSurfaces(current, last)
	if s.Count() != 3 {
		t.Errorf("Count() = %d, want 3", s.Count())
	}
}

func TestDetectSurfaces_IndependentOfProducts(t *testing.T) {
	// Products are identical; only the surface differs. The product
	// classifier must still report no_change while the surface diff
	// reports the swap.
	placements := []datatypes.Placement{placement("sofa-1", 1)}
	last := datatypes.Composition{Placements: placements, WallColor: wallColor("c1")}
	current := datatypes.Composition{Placements: placements, WallColor: wallColor("c2")}

	if ch := Detect(current.Placements, RenderedFrom(last, true)); ch.Kind != KindNoChange {
		t.Errorf("product Kind = %s, want %s", ch.Kind, KindNoChange)
	}
	if s := DetectSurfaces(current, last); !s.WallColorChanged {
		t.Error("surface diff missed the color swap")
	}
}
