// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"fmt"
	"testing"

	"github.com/AleutianAI/RoomStudio/services/visualizer/datatypes"
)

func comp(ids ...string) datatypes.Composition {
	placements := make([]datatypes.Placement, len(ids))
	for i, id := range ids {
		placements[i] = datatypes.Placement{StableID: id, Name: id, Quantity: 1}
	}
	return datatypes.Composition{RoomImage: "room.png", Placements: placements}
}

func TestManager_PushUndoRedo(t *testing.T) {
	m := NewManager(DefaultMaxDepth)

	first := m.Push(comp("p1"), "render-1")
	second := m.Push(comp("p1", "p2"), "render-2")

	if m.Depth() != 2 {
		t.Fatalf("Depth() = %d, want 2", m.Depth())
	}

	entry, ok := m.Undo()
	if !ok {
		t.Fatal("Undo() reported an empty stack with one entry remaining")
	}
	if entry.EntryID != first.EntryID {
		t.Errorf("Undo() restored %s, want the first entry", entry.EntryID)
	}
	if !m.CanRedo() {
		t.Fatal("CanRedo() = false after an undo")
	}

	redone, ok := m.Redo()
	if !ok {
		t.Fatal("Redo() reported an empty redo stack")
	}
	if redone.EntryID != second.EntryID {
		t.Errorf("Redo() restored %s, want the second entry", redone.EntryID)
	}
	if redone.RenderedImage != "render-2" {
		t.Errorf("Redo() image = %q, want the exact stored image", redone.RenderedImage)
	}
}

func TestManager_UndoToEmptyIsSentinel(t *testing.T) {
	m := NewManager(DefaultMaxDepth)
	m.Push(comp("p1"), "render-1")

	if _, ok := m.Undo(); ok {
		t.Error("Undo() of the sole entry must report ok=false (clear all state)")
	}
	if m.Depth() != 0 {
		t.Errorf("Depth() = %d after undoing everything", m.Depth())
	}
	// The popped entry is still redoable.
	if _, ok := m.Redo(); !ok {
		t.Error("Redo() after undo-to-empty must restore the popped entry")
	}
}

func TestManager_UndoOnEmptyStack(t *testing.T) {
	m := NewManager(DefaultMaxDepth)
	if m.CanUndo() {
		t.Error("CanUndo() = true on a fresh manager")
	}
	if _, ok := m.Undo(); ok {
		t.Error("Undo() on an empty stack returned ok=true")
	}
	if _, ok := m.Redo(); ok {
		t.Error("Redo() with no undone entries returned ok=true")
	}
}

func TestManager_PushClearsRedo(t *testing.T) {
	m := NewManager(DefaultMaxDepth)
	m.Push(comp("p1"), "render-1")
	m.Push(comp("p1", "p2"), "render-2")
	m.Undo()

	if !m.CanRedo() {
		t.Fatal("CanRedo() = false after an undo")
	}
	m.Push(comp("p1", "p3"), "render-3")
	if m.CanRedo() {
		t.Error("redo stack survived a new push; history must stay linear")
	}
}

func TestManager_DepthBoundEvictsOldest(t *testing.T) {
	m := NewManager(3)
	for i := 0; i < 5; i++ {
		m.Push(comp(fmt.Sprintf("p%d", i)), fmt.Sprintf("render-%d", i))
	}

	if m.Depth() != 3 {
		t.Fatalf("Depth() = %d, want 3", m.Depth())
	}
	snapshot := m.Snapshot()
	if snapshot[0].RenderedImage != "render-2" {
		t.Errorf("oldest surviving entry = %q, want render-2 (FIFO eviction)",
			snapshot[0].RenderedImage)
	}
	if snapshot[2].RenderedImage != "render-4" {
		t.Errorf("newest entry = %q, want render-4", snapshot[2].RenderedImage)
	}
}

func TestManager_NWalkBackToEmpty(t *testing.T) {
	const n = 7
	m := NewManager(DefaultMaxDepth)
	for i := 0; i < n; i++ {
		m.Push(comp(fmt.Sprintf("p%d", i)), fmt.Sprintf("render-%d", i))
	}

	// n-1 undos land on older entries; the n-th empties the stack.
	for i := 0; i < n-1; i++ {
		entry, ok := m.Undo()
		if !ok {
			t.Fatalf("undo %d: unexpected empty-stack sentinel", i+1)
		}
		if !entry.DerivedAgree() {
			t.Fatalf("undo %d: restored entry has drifted caches", i+1)
		}
	}
	if _, ok := m.Undo(); ok {
		t.Fatal("final undo must report the empty-stack sentinel")
	}

	// Every entry redoes back in order.
	for i := 0; i < n; i++ {
		entry, ok := m.Redo()
		if !ok {
			t.Fatalf("redo %d: redo stack exhausted early", i+1)
		}
		want := fmt.Sprintf("render-%d", i)
		if entry.RenderedImage != want {
			t.Fatalf("redo %d restored %q, want %q", i+1, entry.RenderedImage, want)
		}
	}
	if m.Depth() != n {
		t.Errorf("Depth() = %d after full redo, want %d", m.Depth(), n)
	}
}

func TestManager_Reset(t *testing.T) {
	m := NewManager(DefaultMaxDepth)
	m.Push(comp("p1"), "render-1")
	m.Push(comp("p2"), "render-2")
	m.Undo()

	m.Reset()
	if m.Depth() != 0 || m.RedoDepth() != 0 {
		t.Errorf("Reset() left depth=%d redo=%d", m.Depth(), m.RedoDepth())
	}
}

func TestManager_Restore(t *testing.T) {
	m := NewManager(DefaultMaxDepth)
	m.Push(comp("p1"), "render-1")
	m.Push(comp("p1", "p2"), "render-2")
	saved := m.Snapshot()

	t.Run("round trip", func(t *testing.T) {
		fresh := NewManager(DefaultMaxDepth)
		if err := fresh.Restore(saved); err != nil {
			t.Fatalf("Restore() failed: %v", err)
		}
		if fresh.Depth() != 2 {
			t.Fatalf("Depth() = %d after restore", fresh.Depth())
		}
		top, _ := fresh.Peek()
		if top.RenderedImage != "render-2" {
			t.Errorf("top entry = %q, want render-2", top.RenderedImage)
		}
	})

	t.Run("rebuilds missing caches", func(t *testing.T) {
		stripped := make([]datatypes.HistoryEntry, len(saved))
		copy(stripped, saved)
		stripped[0].ProductIDs = nil
		stripped[0].Quantities = nil

		fresh := NewManager(DefaultMaxDepth)
		if err := fresh.Restore(stripped); err != nil {
			t.Fatalf("Restore() failed: %v", err)
		}
		snap := fresh.Snapshot()
		if snap[0].Quantities["p1"] != 1 {
			t.Errorf("caches not rebuilt: %v", snap[0].Quantities)
		}
	})

	t.Run("rejects drifted caches", func(t *testing.T) {
		bad := make([]datatypes.HistoryEntry, len(saved))
		copy(bad, saved)
		bad[1].Quantities = map[string]int{"p1": 42, "p2": 1}

		fresh := NewManager(DefaultMaxDepth)
		if err := fresh.Restore(bad); err == nil {
			t.Error("Restore() accepted an entry with drifted caches")
		}
	})

	t.Run("trims to depth bound", func(t *testing.T) {
		long := make([]datatypes.HistoryEntry, 0, 5)
		for i := 0; i < 5; i++ {
			long = append(long, datatypes.NewHistoryEntry(
				comp(fmt.Sprintf("p%d", i)), fmt.Sprintf("render-%d", i)))
		}
		small := NewManager(2)
		if err := small.Restore(long); err != nil {
			t.Fatalf("Restore() failed: %v", err)
		}
		if small.Depth() != 2 {
			t.Fatalf("Depth() = %d, want 2", small.Depth())
		}
		top, _ := small.Peek()
		if top.RenderedImage != "render-4" {
			t.Errorf("top entry = %q, want the newest entries kept", top.RenderedImage)
		}
	})
}
