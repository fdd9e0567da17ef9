// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package composition holds the two scene snapshots the engine works from:
// the current composition (what the user has configured) and the
// last-rendered composition (what the external renderer actually produced
// an image for). The rendered image on screen always corresponds to
// last-rendered; a successful render promotes current to last-rendered.
package composition

import (
	"sync"

	"github.com/AleutianAI/RoomStudio/services/visualizer/datatypes"
)

// Model owns the current and last-rendered compositions.
//
// NeedsRevisualization is an explicit recompute method, not ambient
// reactive state: callers invoke it after mutations rather than observing
// a subscription.
type Model struct {
	mu sync.RWMutex

	current      datatypes.Composition
	lastRendered datatypes.Composition

	// renderedImage is the image the renderer last produced, "" if none.
	renderedImage string

	// renderedBase is the base image that render was built on (the prior
	// rendered image for incremental calls, the clean room image for
	// initial/reset calls).
	renderedBase string

	hasRendered bool
}

// NewModel returns an empty model for the given room image.
func NewModel(roomImage string) *Model {
	return &Model{current: datatypes.Composition{RoomImage: roomImage}}
}

// SetCurrent replaces the entire current composition. Used when the UI
// submits its composition with a visualize trigger.
func (m *Model) SetCurrent(comp datatypes.Composition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = comp.Clone()
}

// Current returns a copy of the current composition.
func (m *Model) Current() datatypes.Composition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// LastRendered returns a copy of the last-rendered composition and whether
// any successful render has occurred.
func (m *Model) LastRendered() (datatypes.Composition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRendered.Clone(), m.hasRendered
}

// RenderedImage returns the image reference of the last successful render,
// or "" when none exists.
func (m *Model) RenderedImage() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.renderedImage
}

// RenderedBase returns the base image the last render was built on.
func (m *Model) RenderedBase() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.renderedBase
}

// RoomImage returns the current (clean) room image reference.
func (m *Model) RoomImage() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.RoomImage
}

// UpsertPlacement adds the placement or, when the id already exists,
// replaces its display fields and quantity.
func (m *Model) UpsertPlacement(p datatypes.Placement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := p.Key()
	for i := range m.current.Placements {
		if m.current.Placements[i].Key() == key {
			m.current.Placements[i] = p
			return
		}
	}
	m.current.Placements = append(m.current.Placements, p)
}

// RemovePlacement deletes every placement with the given id. Returns
// whether anything was removed.
func (m *Model) RemovePlacement(stableID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := datatypes.NormalizeID(stableID)
	kept := m.current.Placements[:0]
	removed := false
	for _, p := range m.current.Placements {
		if p.Key() == key {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	m.current.Placements = kept
	return removed
}

// SetQuantity updates the quantity of an existing placement. Returns false
// when the id is not placed.
func (m *Model) SetQuantity(stableID string, quantity int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := datatypes.NormalizeID(stableID)
	for i := range m.current.Placements {
		if m.current.Placements[i].Key() == key {
			m.current.Placements[i].Quantity = quantity
			return true
		}
	}
	return false
}

// SetWallColor updates the wall color selection (nil clears it).
func (m *Model) SetWallColor(c *datatypes.WallColor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.WallColor = c
}

// SetWallTexture updates the wall texture selection (nil clears it).
func (m *Model) SetWallTexture(t *datatypes.WallTexture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.WallTexture = t
}

// SetFloorTile updates the floor tile selection (nil clears it).
func (m *Model) SetFloorTile(t *datatypes.FloorTile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.FloorTile = t
}

// SetRoomImage replaces the base room image of the current composition.
// A differing base image forces the next render to be a reset.
func (m *Model) SetRoomImage(roomImage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.RoomImage = roomImage
}

// NeedsRevisualization recomputes whether the current composition diverges
// from the last-rendered composition along any axis: product-id set, any
// individual quantity, wall color id, texture id, floor tile id, or base
// room image identity. Always false before the first successful render.
func (m *Model) NeedsRevisualization() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.hasRendered {
		return false
	}
	if m.current.RoomImage != m.lastRendered.RoomImage {
		return true
	}
	if m.current.WallColorID() != m.lastRendered.WallColorID() ||
		m.current.WallTextureID() != m.lastRendered.WallTextureID() ||
		m.current.FloorTileID() != m.lastRendered.FloorTileID() {
		return true
	}
	curQty := m.current.QuantityMap()
	lastQty := m.lastRendered.QuantityMap()
	if len(curQty) != len(lastQty) {
		return true
	}
	for id, qty := range curQty {
		if lastQty[id] != qty {
			return true
		}
	}
	return false
}

// CommitRender atomically promotes the current composition to
// last-rendered with the image the renderer produced and the base image it
// was built on. Called only on a fully successful orchestration.
func (m *Model) CommitRender(renderedImage, usedBase string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRendered = m.current.Clone()
	m.renderedImage = renderedImage
	m.renderedBase = usedBase
	m.hasRendered = true
}

// RestoreRendered re-seeds both compositions from a history entry. Undo
// and redo bypass the change detector and call this directly; the entry's
// snapshot is authoritative.
func (m *Model) RestoreRendered(entry datatypes.HistoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var comp datatypes.Composition
	if entry.Composition != nil {
		comp = entry.Composition.Clone()
	} else {
		comp = datatypes.Composition{
			RoomImage:  m.current.RoomImage,
			Placements: entry.Placements,
			WallColor:  entry.WallColor,
		}
		comp = comp.Clone()
	}
	m.current = comp
	m.lastRendered = comp.Clone()
	m.renderedImage = entry.RenderedImage
	m.renderedBase = comp.RoomImage
	m.hasRendered = entry.RenderedImage != ""
}

// ClearRendered drops all visualization state, keeping only the room
// image. Used when an undo empties the history stack.
func (m *Model) ClearRendered() {
	m.mu.Lock()
	defer m.mu.Unlock()
	room := m.current.RoomImage
	m.current = datatypes.Composition{RoomImage: room}
	m.lastRendered = datatypes.Composition{}
	m.renderedImage = ""
	m.renderedBase = ""
	m.hasRendered = false
}
