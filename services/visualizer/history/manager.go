// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history maintains the undo/redo stacks of rendered composition
// snapshots.
//
// The manager owns its stacks and is only ever told to push or pop; it
// never reads the live composition model. That separation is what keeps
// undo/redo exact even when the live model has drifted since the last
// render. Entries returned by Undo/Redo carry the cached product-id set
// and quantity map that the caller must use verbatim to re-seed the change
// detector's last-rendered reference.
package history

import (
	"fmt"
	"sync"

	"github.com/AleutianAI/RoomStudio/services/visualizer/datatypes"
)

// DefaultMaxDepth bounds the undo stack. Pushing beyond it evicts the
// oldest entry (FIFO) so history never grows unbounded.
const DefaultMaxDepth = 20

// Manager is a single linear undo stack with a separate redo stack.
// Pushing a new entry always clears the redo stack; there is no branching.
//
// All operations are synchronous and in-memory. The mutex only guards
// against handler-level concurrent reads; the engine is the single writer.
type Manager struct {
	mu       sync.Mutex
	maxDepth int
	stack    []datatypes.HistoryEntry
	redo     []datatypes.HistoryEntry
}

// NewManager creates a manager with the given depth bound.
// Non-positive depths fall back to DefaultMaxDepth.
func NewManager(maxDepth int) *Manager {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}
	return &Manager{maxDepth: maxDepth}
}

// Push appends a new entry built from the given composition and rendered
// image, clears the redo stack, and evicts the oldest entry when the depth
// bound is exceeded. Returns the pushed entry.
func (m *Manager) Push(comp datatypes.Composition, renderedImage string) datatypes.HistoryEntry {
	entry := datatypes.NewHistoryEntry(comp, renderedImage)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stack = append(m.stack, entry)
	if len(m.stack) > m.maxDepth {
		m.stack = m.stack[1:]
	}
	m.redo = nil
	return entry
}

// Undo pops the newest entry onto the redo stack and returns the entry now
// on top of the remaining stack. ok is false when nothing remains to
// restore, the sentinel telling the caller to clear all visualization
// state instead. Callers that need to distinguish "stack emptied" from
// "nothing to undo at all" check CanUndo first.
func (m *Manager) Undo() (datatypes.HistoryEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.stack) == 0 {
		return datatypes.HistoryEntry{}, false
	}
	top := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	m.redo = append(m.redo, top)

	if len(m.stack) == 0 {
		return datatypes.HistoryEntry{}, false
	}
	return m.stack[len(m.stack)-1], true
}

// Redo pops the newest redo entry, pushes it back onto the main stack, and
// returns it. ok is false when the redo stack is empty.
func (m *Manager) Redo() (datatypes.HistoryEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.redo) == 0 {
		return datatypes.HistoryEntry{}, false
	}
	top := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.stack = append(m.stack, top)
	return top, true
}

// Reset clears both stacks.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stack = nil
	m.redo = nil
}

// CanUndo reports whether at least one entry can be popped.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack) > 0
}

// CanRedo reports whether a redo entry is available.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// Depth returns the undo stack depth.
func (m *Manager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack)
}

// RedoDepth returns the redo stack depth.
func (m *Manager) RedoDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo)
}

// Peek returns the newest undo entry without mutating the stacks.
func (m *Manager) Peek() (datatypes.HistoryEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.stack) == 0 {
		return datatypes.HistoryEntry{}, false
	}
	return m.stack[len(m.stack)-1], true
}

// Snapshot returns a copy of the undo stack, oldest first, in the plain
// serializable entry form the project store persists.
func (m *Manager) Snapshot() []datatypes.HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]datatypes.HistoryEntry, len(m.stack))
	copy(out, m.stack)
	return out
}

// Restore replaces both stacks with the given entries (oldest first),
// rebuilding each entry's cached id set and quantity map and rejecting any
// entry whose persisted caches disagree with its placements.
func (m *Manager) Restore(entries []datatypes.HistoryEntry) error {
	restored := make([]datatypes.HistoryEntry, 0, len(entries))
	for i, entry := range entries {
		if len(entry.ProductIDs) == 0 && len(entry.Quantities) == 0 {
			entry.Rebuild()
		} else if !entry.DerivedAgree() {
			return fmt.Errorf("history entry %d: cached id set/quantity map disagree with placements", i)
		}
		restored = append(restored, entry)
	}
	if len(restored) > m.maxDepth {
		restored = restored[len(restored)-m.maxDepth:]
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stack = restored
	m.redo = nil
	return nil
}
