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
	"sort"

	"github.com/google/uuid"
)

// HistoryEntry is one undo/redo snapshot: the rendered image plus enough
// denormalized bookkeeping (product-id set, quantity map) to re-seed the
// change detector's last-rendered reference without recomputation.
//
// Invariant: ProductIDs and Quantities are always derivable from Placements.
// They are stored redundantly so that restoring an entry never has to trust
// a recomputation against possibly stale data; DerivedAgree verifies the
// redundancy and Rebuild re-establishes it after deserialization.
type HistoryEntry struct {
	// EntryID identifies the snapshot across save/reload.
	EntryID string `json:"entry_id"`

	// RenderedImage is the image reference the renderer produced for this
	// exact composition.
	RenderedImage string `json:"rendered_image"`

	// Placements is the full product snapshot at render time.
	Placements []Placement `json:"placements"`

	// ProductIDs is the cached normalized id set, sorted.
	ProductIDs []string `json:"product_ids"`

	// Quantities is the cached id -> quantity map.
	Quantities map[string]int `json:"quantities"`

	// WallColor is the wall color at render time, if any.
	WallColor *WallColor `json:"wall_color,omitempty"`

	// Composition is the full composition snapshot for richer undo.
	Composition *Composition `json:"composition,omitempty"`
}

// NewHistoryEntry builds a snapshot from a composition and the image the
// renderer produced for it. The composition is deep-copied; the entry never
// aliases live state.
func NewHistoryEntry(comp Composition, renderedImage string) HistoryEntry {
	snap := comp.Clone()
	e := HistoryEntry{
		EntryID:       uuid.NewString(),
		RenderedImage: renderedImage,
		Placements:    snap.Placements,
		WallColor:     snap.WallColor,
		Composition:   &snap,
	}
	e.Rebuild()
	return e
}

// Rebuild recomputes ProductIDs and Quantities from Placements. Call after
// deserializing an entry whose cached fields may be missing or stale.
func (e *HistoryEntry) Rebuild() {
	ids := make([]string, 0, len(e.Placements))
	quantities := make(map[string]int, len(e.Placements))
	for _, p := range e.Placements {
		key := p.Key()
		if key == "" {
			continue
		}
		if _, ok := quantities[key]; !ok {
			ids = append(ids, key)
		}
		quantities[key] += p.EffectiveQuantity()
	}
	sort.Strings(ids)
	e.ProductIDs = ids
	e.Quantities = quantities
}

// DerivedAgree reports whether the cached ProductIDs and Quantities match
// what Rebuild would derive from Placements.
func (e HistoryEntry) DerivedAgree() bool {
	check := HistoryEntry{Placements: e.Placements}
	check.Rebuild()
	if len(check.ProductIDs) != len(e.ProductIDs) {
		return false
	}
	sorted := make([]string, len(e.ProductIDs))
	copy(sorted, e.ProductIDs)
	sort.Strings(sorted)
	for i, id := range check.ProductIDs {
		if sorted[i] != id {
			return false
		}
	}
	if len(check.Quantities) != len(e.Quantities) {
		return false
	}
	for id, qty := range check.Quantities {
		if e.Quantities[id] != qty {
			return false
		}
	}
	return true
}

// IDSet returns the cached product ids as a set.
func (e HistoryEntry) IDSet() map[string]bool {
	set := make(map[string]bool, len(e.ProductIDs))
	for _, id := range e.ProductIDs {
		set[id] = true
	}
	return set
}
