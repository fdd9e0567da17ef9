// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"testing"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sofa-01", "sofa-01"},
		{"  sofa-01 ", "sofa-01"},
		{"SOFA-01", "sofa-01"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeID(tt.in); got != tt.want {
				t.Errorf("NormalizeID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPlacement_EffectiveQuantity(t *testing.T) {
	tests := []struct {
		name string
		qty  int
		want int
	}{
		{"zero defaults to one", 0, 1},
		{"negative defaults to one", -3, 1},
		{"positive passes through", 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Placement{StableID: "x", Quantity: tt.qty}
			if got := p.EffectiveQuantity(); got != tt.want {
				t.Errorf("EffectiveQuantity() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestComposition_QuantityMapAccumulates(t *testing.T) {
	comp := Composition{Placements: []Placement{
		{StableID: "chair-3", Quantity: 2},
		{StableID: "Chair-3", Quantity: 1},
		{StableID: "lamp-2"},
	}}

	m := comp.QuantityMap()
	if m["chair-3"] != 3 {
		t.Errorf("chair-3 quantity = %d, want 3 (duplicates accumulate)", m["chair-3"])
	}
	if m["lamp-2"] != 1 {
		t.Errorf("lamp-2 quantity = %d, want 1 (default quantity)", m["lamp-2"])
	}
}

func TestComposition_ProductIDsDeduplicated(t *testing.T) {
	comp := Composition{Placements: []Placement{
		{StableID: "sofa-1"},
		{StableID: "SOFA-1"},
		{StableID: "lamp-2"},
		{StableID: "   "},
	}}

	ids := comp.ProductIDs()
	if len(ids) != 2 {
		t.Fatalf("ProductIDs() = %v, want 2 unique ids", ids)
	}
	if ids[0] != "sofa-1" || ids[1] != "lamp-2" {
		t.Errorf("ProductIDs() = %v, want placement order preserved", ids)
	}
}

func TestComposition_CloneIsDeep(t *testing.T) {
	orig := Composition{
		RoomImage: "room.png",
		Placements: []Placement{
			{StableID: "sofa-1", Images: []string{"a.png"}},
		},
		WallColor: &WallColor{ID: "c1", Hex: "#fff"},
		FloorTile: &FloorTile{ID: "t1"},
	}

	clone := orig.Clone()
	clone.Placements[0].StableID = "mutated"
	clone.Placements[0].Images[0] = "mutated.png"
	clone.WallColor.ID = "mutated"
	clone.FloorTile.ID = "mutated"

	if orig.Placements[0].StableID != "sofa-1" {
		t.Error("Clone() aliased the placements slice")
	}
	if orig.Placements[0].Images[0] != "a.png" {
		t.Error("Clone() aliased a placement's images")
	}
	if orig.WallColor.ID != "c1" {
		t.Error("Clone() aliased the wall color")
	}
	if orig.FloorTile.ID != "t1" {
		t.Error("Clone() aliased the floor tile")
	}
}

func TestComposition_SurfaceIDs(t *testing.T) {
	var empty Composition
	if empty.WallColorID() != "" || empty.WallTextureID() != "" || empty.FloorTileID() != "" {
		t.Error("nil surface selections must report empty ids")
	}

	comp := Composition{
		WallColor:   &WallColor{ID: "c1"},
		WallTexture: &WallTexture{ID: "x1"},
		FloorTile:   &FloorTile{ID: "t1"},
	}
	if comp.WallColorID() != "c1" || comp.WallTextureID() != "x1" || comp.FloorTileID() != "t1" {
		t.Error("surface id accessors returned wrong values")
	}
	if !comp.HasSurfaces() {
		t.Error("HasSurfaces() = false with all three axes set")
	}
}

func TestComposition_HasProducts(t *testing.T) {
	empty := Composition{Placements: []Placement{{StableID: "  "}}}
	if empty.HasProducts() {
		t.Error("HasProducts() = true with only blank ids")
	}
	comp := Composition{Placements: []Placement{{StableID: "sofa-1"}}}
	if !comp.HasProducts() {
		t.Error("HasProducts() = false with a usable placement")
	}
}
