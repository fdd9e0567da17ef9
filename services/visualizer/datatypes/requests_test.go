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
	"strings"
	"testing"
)

func TestVisualizeRequest_Validate(t *testing.T) {
	valid := VisualizeRequest{Composition: Composition{
		RoomImage:  "room.png",
		Placements: []Placement{{StableID: "sofa-1"}},
	}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() on a valid request failed: %v", err)
	}

	t.Run("too many placements", func(t *testing.T) {
		req := VisualizeRequest{}
		req.Composition.Placements = make([]Placement, MaxPlacementsPerRequest+1)
		for i := range req.Composition.Placements {
			req.Composition.Placements[i].StableID = "p"
		}
		if err := req.Validate(); err == nil {
			t.Error("Validate() accepted an oversized placement list")
		}
	})

	t.Run("empty stable id", func(t *testing.T) {
		req := VisualizeRequest{Composition: Composition{
			Placements: []Placement{{StableID: "   "}},
		}}
		if err := req.Validate(); err == nil {
			t.Error("Validate() accepted a blank stable_id")
		}
	})

	t.Run("oversized room image reference", func(t *testing.T) {
		req := VisualizeRequest{Composition: Composition{
			RoomImage: strings.Repeat("x", MaxImageRefBytes+1),
		}}
		if err := req.Validate(); err == nil {
			t.Error("Validate() accepted an oversized room image reference")
		}
	})

	t.Run("oversized placement image reference", func(t *testing.T) {
		req := VisualizeRequest{Composition: Composition{
			Placements: []Placement{{
				StableID: "sofa-1",
				Images:   []string{strings.Repeat("x", MaxImageRefBytes+1)},
			}},
		}}
		if err := req.Validate(); err == nil {
			t.Error("Validate() accepted an oversized placement image reference")
		}
	})

	t.Run("image reference at the limit", func(t *testing.T) {
		req := VisualizeRequest{Composition: Composition{
			RoomImage: strings.Repeat("x", MaxImageRefBytes),
		}}
		if err := req.Validate(); err != nil {
			t.Errorf("Validate() rejected a reference at the limit: %v", err)
		}
	})
}
