// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/RoomStudio/services/visualizer/datatypes"
)

func openTestStore(t *testing.T) *ProjectStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "projects.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(image string, ids ...string) datatypes.HistoryEntry {
	placements := make([]datatypes.Placement, len(ids))
	for i, id := range ids {
		placements[i] = datatypes.Placement{StableID: id, Name: id, Quantity: 1}
	}
	return datatypes.NewHistoryEntry(datatypes.Composition{
		RoomImage:  "room.png",
		Placements: placements,
		WallColor:  &datatypes.WallColor{ID: "c1", Hex: "#abc"},
	}, image)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	saved := []datatypes.HistoryEntry{
		entry("render-1.png", "sofa-1"),
		entry("render-2.png", "sofa-1", "lamp-2"),
	}
	if err := s.Save(ctx, "living-room", saved); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := s.Load(ctx, "living-room")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d entries, want 2", len(loaded))
	}
	for i := range loaded {
		if loaded[i].EntryID != saved[i].EntryID {
			t.Errorf("entry %d id = %q, want %q", i, loaded[i].EntryID, saved[i].EntryID)
		}
		if loaded[i].RenderedImage != saved[i].RenderedImage {
			t.Errorf("entry %d image = %q", i, loaded[i].RenderedImage)
		}
		if !loaded[i].DerivedAgree() {
			t.Errorf("entry %d derived caches disagree after the round trip", i)
		}
	}
	if loaded[1].Quantities["lamp-2"] != 1 {
		t.Errorf("entry 1 quantities = %v", loaded[1].Quantities)
	}
	if loaded[0].WallColor == nil || loaded[0].WallColor.Hex != "#abc" {
		t.Errorf("entry 0 wall color = %v", loaded[0].WallColor)
	}
	if loaded[0].Composition == nil || loaded[0].Composition.RoomImage != "room.png" {
		t.Errorf("entry 0 composition = %v", loaded[0].Composition)
	}
}

func TestStore_SaveReplacesPrevious(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Save(ctx, "proj", []datatypes.HistoryEntry{
		entry("a.png", "p1"), entry("b.png", "p1", "p2"), entry("c.png", "p1", "p2", "p3"),
	})
	if err := s.Save(ctx, "proj", []datatypes.HistoryEntry{entry("d.png", "p9")}); err != nil {
		t.Fatalf("second Save() failed: %v", err)
	}

	loaded, err := s.Load(ctx, "proj")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 || loaded[0].RenderedImage != "d.png" {
		t.Errorf("loaded = %v, want only the replacement", loaded)
	}
}

func TestStore_LoadUnknownProject(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Load(context.Background(), "nope"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Load() = %v, want ErrProjectNotFound", err)
	}
}

func TestStore_SaveEmptyName(t *testing.T) {
	s := openTestStore(t)
	if err := s.Save(context.Background(), "", nil); err == nil {
		t.Error("Save() accepted an empty name")
	}
}

func TestStore_LoadRejectsDriftedCaches(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	bad := entry("render-1.png", "sofa-1")
	bad.Quantities = map[string]int{"sofa-1": 42}
	if err := s.Save(ctx, "drifted", []datatypes.HistoryEntry{bad}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := s.Load(ctx, "drifted"); err == nil {
		t.Error("Load() accepted an entry whose caches disagree with its placements")
	}
}

func TestStore_LoadRebuildsMissingCaches(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stripped := entry("render-1.png", "sofa-1")
	stripped.ProductIDs = nil
	stripped.Quantities = nil
	if err := s.Save(ctx, "stripped", []datatypes.HistoryEntry{stripped}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := s.Load(ctx, "stripped")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded[0].Quantities["sofa-1"] != 1 {
		t.Errorf("caches not rebuilt on load: %v", loaded[0].Quantities)
	}
}

func TestStore_List(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if infos, err := s.List(ctx); err != nil || len(infos) != 0 {
		t.Fatalf("List() on an empty store = %v, %v", infos, err)
	}

	s.Save(ctx, "one", []datatypes.HistoryEntry{entry("a.png", "p1")})
	s.Save(ctx, "two", []datatypes.HistoryEntry{entry("b.png", "p1"), entry("c.png", "p2")})

	infos, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("List() returned %d projects, want 2", len(infos))
	}
	counts := map[string]int{}
	for _, info := range infos {
		counts[info.Name] = info.EntryCount
		if info.SavedAt == 0 {
			t.Errorf("project %q has no saved_at", info.Name)
		}
	}
	if counts["one"] != 1 || counts["two"] != 2 {
		t.Errorf("entry counts = %v", counts)
	}
}
