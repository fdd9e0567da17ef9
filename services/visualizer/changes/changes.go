// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package changes classifies the transition between the last-rendered
// composition and the current composition into a closed set of operation
// kinds the engine can exhaustively switch on.
//
// Detect is pure: it never errors and never mutates its inputs. "No change"
// is a normal classification, not a failure. Surface selections (wall
// color, texture, floor tile) are diffed separately by DetectSurfaces and
// never influence the product classification.
package changes

import (
	"github.com/AleutianAI/RoomStudio/services/visualizer/datatypes"
)

// Kind is the closed set of product-transition classifications.
type Kind string

const (
	// KindInitial: no rendered image exists yet. Payload: Full.
	KindInitial Kind = "initial"

	// KindAdditive: every previously-rendered id is still present with at
	// least its old quantity, and at least one new id or quantity increase
	// exists. Payload: Added (delta only), composited onto the existing
	// rendered image.
	KindAdditive Kind = "additive"

	// KindRemoval: at least one previously-rendered id is gone and no new
	// ids were added. Payload: Removed.
	KindRemoval Kind = "removal"

	// KindRemoveAndAdd: at least one removal and at least one addition in
	// the same transition. Always wins over reporting additive and removal
	// independently; the detector never infers an order between the two.
	// Payload: Added and Removed.
	KindRemoveAndAdd Kind = "remove_and_add"

	// KindQuantityDecrease: same id set, at least one quantity strictly
	// decreased, none increased. Payload: QuantityDeltas (copies to remove
	// per id).
	KindQuantityDecrease Kind = "quantity_decrease"

	// KindReset: full re-render of the current placements from the clean
	// room image. Produced only by DetectForced (base image change or an
	// explicit caller request); Detect itself never emits it. Payload: Full.
	KindReset Kind = "reset"

	// KindNoChange: current matches last-rendered on every product axis.
	KindNoChange Kind = "no_change"
)

// Rendered is the last-rendered reference the detector compares against.
// The id set and quantity map come verbatim from the composition model or
// a restored history entry; the detector never recomputes them from stale
// placements.
type Rendered struct {
	// HasImage is whether a rendered image currently exists.
	HasImage bool

	// Placements is the product snapshot the renderer last produced.
	Placements []datatypes.Placement

	// IDSet is the normalized product-id set of Placements.
	IDSet map[string]bool

	// Quantities is normalized id -> rendered quantity.
	Quantities map[string]int
}

// RenderedFrom builds a Rendered reference from a composition snapshot.
func RenderedFrom(comp datatypes.Composition, hasImage bool) Rendered {
	r := Rendered{
		HasImage:   hasImage,
		Placements: comp.Placements,
		Quantities: comp.QuantityMap(),
	}
	r.IDSet = make(map[string]bool, len(r.Quantities))
	for id := range r.Quantities {
		r.IDSet[id] = true
	}
	return r
}

// RenderedFromEntry builds a Rendered reference from a history entry,
// using the entry's cached id set and quantity map verbatim.
func RenderedFromEntry(entry datatypes.HistoryEntry) Rendered {
	return Rendered{
		HasImage:   entry.RenderedImage != "",
		Placements: entry.Placements,
		IDSet:      entry.IDSet(),
		Quantities: entry.Quantities,
	}
}

// Change is the tagged classification result. Kind selects which payload
// fields are meaningful; the others are left zero.
type Change struct {
	Kind Kind

	// Full is the complete current placement list (initial, reset).
	Full []datatypes.Placement

	// Added holds new placements and quantity increases as delta
	// placements (additive, remove_and_add). A quantity increase appears
	// as the product's placement with Quantity set to the increase only.
	Added []datatypes.Placement

	// Removed holds removed placements and quantity decreases as delta
	// placements (removal, remove_and_add).
	Removed []datatypes.Placement

	// QuantityDeltas is normalized id -> number of copies to remove
	// (quantity_decrease).
	QuantityDeltas map[string]int
}

// Detect classifies the transition from last to current.
//
// Additions are new ids or quantity increases; removals are missing ids or
// quantity decreases. When both directions are present the result is
// remove_and_add per the tie-break rule. A transition with no product
// difference is no_change regardless of surface state.
func Detect(current []datatypes.Placement, last Rendered) Change {
	if !last.HasImage {
		return Change{Kind: KindInitial, Full: clonePlacements(current)}
	}

	curQty := quantityMap(current)
	curRep := representatives(current)

	var added []datatypes.Placement
	var removed []datatypes.Placement
	decreases := make(map[string]int)
	newIDs := 0
	removedIDs := 0

	for id, qty := range curQty {
		lastQty, existed := last.Quantities[id]
		switch {
		case !existed:
			newIDs++
			added = append(added, placementWithQuantity(curRep[id], qty))
		case qty > lastQty:
			added = append(added, placementWithQuantity(curRep[id], qty-lastQty))
		case qty < lastQty:
			removed = append(removed, lastPlacementWithQuantity(last, id, lastQty-qty))
			decreases[id] = lastQty - qty
		}
	}
	for id, lastQty := range last.Quantities {
		if _, stillHere := curQty[id]; !stillHere {
			removedIDs++
			removed = append(removed, lastPlacementWithQuantity(last, id, lastQty))
		}
	}

	switch {
	case len(added) == 0 && len(removed) == 0:
		return Change{Kind: KindNoChange}
	case len(added) > 0 && len(removed) > 0:
		return Change{Kind: KindRemoveAndAdd, Added: added, Removed: removed}
	case len(added) > 0:
		return Change{Kind: KindAdditive, Added: added}
	case removedIDs > 0:
		return Change{Kind: KindRemoval, Removed: removed}
	default:
		// Same id set, only strict decreases.
		return Change{Kind: KindQuantityDecrease, Removed: removed, QuantityDeltas: decreases}
	}
}

// DetectForced returns a reset classification carrying the full current
// placement list. Used when the base room image changed or the caller
// explicitly forces a clean re-render.
func DetectForced(current []datatypes.Placement) Change {
	return Change{Kind: KindReset, Full: clonePlacements(current)}
}

func quantityMap(placements []datatypes.Placement) map[string]int {
	m := make(map[string]int, len(placements))
	for _, p := range placements {
		if key := p.Key(); key != "" {
			m[key] += p.EffectiveQuantity()
		}
	}
	return m
}

// representatives maps each id to its first placement, which carries the
// display name, images, and category used in delta payloads.
func representatives(placements []datatypes.Placement) map[string]datatypes.Placement {
	m := make(map[string]datatypes.Placement, len(placements))
	for _, p := range placements {
		key := p.Key()
		if key == "" {
			continue
		}
		if _, ok := m[key]; !ok {
			m[key] = p
		}
	}
	return m
}

func placementWithQuantity(p datatypes.Placement, qty int) datatypes.Placement {
	out := p
	out.Quantity = qty
	return out
}

// lastPlacementWithQuantity finds id in the last-rendered placements and
// returns it with the given quantity. Falls back to a bare placement when
// the snapshot lacks the id (possible after loading a trimmed project).
func lastPlacementWithQuantity(last Rendered, id string, qty int) datatypes.Placement {
	for _, p := range last.Placements {
		if p.Key() == id {
			return placementWithQuantity(p, qty)
		}
	}
	return datatypes.Placement{StableID: id, Quantity: qty}
}

func clonePlacements(placements []datatypes.Placement) []datatypes.Placement {
	if placements == nil {
		return nil
	}
	out := make([]datatypes.Placement, len(placements))
	copy(out, placements)
	return out
}
