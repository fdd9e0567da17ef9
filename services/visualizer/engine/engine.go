// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine orchestrates visualization: it consumes a change
// classification, decides which renderer calls to make, and commits
// composition and history state atomically on success.
//
// Failure leaves every piece of state exactly as it was before the
// attempt. There are no partial commits and no partial history entries;
// the only fallback once a classification is chosen is the documented
// combined-to-sequential surface call fallback.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/RoomStudio/services/visualizer/angles"
	"github.com/AleutianAI/RoomStudio/services/visualizer/changes"
	"github.com/AleutianAI/RoomStudio/services/visualizer/composition"
	"github.com/AleutianAI/RoomStudio/services/visualizer/datatypes"
	"github.com/AleutianAI/RoomStudio/services/visualizer/history"
	"github.com/AleutianAI/RoomStudio/services/visualizer/observability"
	"github.com/AleutianAI/RoomStudio/services/visualizer/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("roomstudio.visualizer.engine")

var (
	// ErrRenderInFlight rejects a trigger while another render is running.
	ErrRenderInFlight = errors.New("a render is already in progress")

	// ErrNothingToVisualize rejects a trigger with no products placed and
	// no surface changes to apply.
	ErrNothingToVisualize = errors.New("nothing to visualize")

	// ErrNoChangesProduced means a surface call returned an image
	// identical to its input. The requested change had no effect, which is
	// an error even though the call itself succeeded.
	ErrNoChangesProduced = errors.New("renderer produced no changes")

	// ErrNotConfirmed rejects the destructive quality re-render without
	// explicit caller confirmation.
	ErrNotConfirmed = errors.New("quality re-render requires confirmation")

	// ErrNoRenderedImage rejects operations that need an existing render.
	ErrNoRenderedImage = errors.New("no rendered image exists yet")

	// ErrNoRoomImage rejects initial and reset renders when the
	// composition carries no room image to render from.
	ErrNoRoomImage = errors.New("no room image set")

	// ErrNothingToUndo and ErrNothingToRedo reject empty history steps.
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Engine drives the visualization state machine.
type Engine struct {
	client  render.Client
	model   *composition.Model
	history *history.Manager
	cache   *angles.Cache
	metrics *observability.VisualizerMetrics

	// inFlight enforces at most one render orchestration at a time.
	inFlight atomic.Bool
}

// New wires an engine. metrics may be nil (tests).
func New(client render.Client, model *composition.Model, hist *history.Manager,
	cache *angles.Cache, metrics *observability.VisualizerMetrics) *Engine {

	return &Engine{
		client:  client,
		model:   model,
		history: hist,
		cache:   cache,
		metrics: metrics,
	}
}

// Outcome reports a successful visualization.
type Outcome struct {
	RenderedImage string
	Change        changes.Kind
}

// HistoryOutcome reports a successful undo/redo application.
type HistoryOutcome struct {
	// Cleared is true when an undo emptied the stack and the engine
	// cleared all visualization state instead of restoring an entry.
	Cleared bool
	Entry   datatypes.HistoryEntry
}

// Model exposes the composition model for read-only state queries.
func (e *Engine) Model() *composition.Model { return e.model }

// History exposes the history manager for state queries and project
// save/load.
func (e *Engine) History() *history.Manager { return e.history }

// Session returns the renderer session id, creating it lazily.
func (e *Engine) Session(ctx context.Context) (string, error) {
	return e.client.EnsureSession(ctx)
}

// Visualize classifies the transition from last-rendered to comp and runs
// the matching renderer calls. On success the model's last-rendered
// snapshot is replaced, a history entry is pushed from the current
// composition, and the angle cache is invalidated. A failure anywhere
// leaves all three untouched.
func (e *Engine) Visualize(ctx context.Context, comp datatypes.Composition, forceReset bool) (Outcome, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return Outcome{}, ErrRenderInFlight
	}
	defer e.inFlight.Store(false)
	e.setInFlightGauge(1)
	defer e.setInFlightGauge(0)

	ctx, span := tracer.Start(ctx, "Engine.Visualize")
	defer span.End()

	start := time.Now()
	outcome, err := e.visualize(ctx, comp, forceReset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.countRender(string(outcome.Change), "error")
		return Outcome{}, err
	}
	span.SetAttributes(attribute.String("visualizer.change", string(outcome.Change)))
	e.countRender(string(outcome.Change), "success")
	e.observeRender(string(outcome.Change), time.Since(start))
	return outcome, nil
}

func (e *Engine) visualize(ctx context.Context, comp datatypes.Composition, forceReset bool) (Outcome, error) {
	lastComp, hasRendered := e.model.LastRendered()
	lastImage := e.model.RenderedImage()

	surfaces := changes.DetectSurfaces(comp, lastComp)
	baseChanged := hasRendered && comp.RoomImage != lastComp.RoomImage

	var ch changes.Change
	switch {
	case forceReset || baseChanged:
		ch = changes.DetectForced(comp.Placements)
	default:
		ch = changes.Detect(comp.Placements, changes.RenderedFrom(lastComp, hasRendered && lastImage != ""))
	}

	// A cleared surface cannot be composited away; it forces a clean
	// re-render when products are involved.
	if surfaces.Cleared() && comp.HasProducts() && ch.Kind != changes.KindInitial {
		ch = changes.DetectForced(comp.Placements)
	}

	slog.Info("Classified visualization request",
		"change", ch.Kind,
		"surface_axes_changed", surfaces.Count(),
		"force_reset", forceReset,
		"base_changed", baseChanged)

	switch {
	case !comp.HasProducts() && (ch.Kind == changes.KindInitial || ch.Kind == changes.KindNoChange):
		// Surface-only composition (possibly before any product render).
		if !surfaces.Any() {
			if ch.Kind == changes.KindNoChange && lastImage != "" {
				return Outcome{RenderedImage: lastImage, Change: changes.KindNoChange}, nil
			}
			return Outcome{}, ErrNothingToVisualize
		}
		return e.visualizeSurfacesOnly(ctx, comp, surfaces, lastImage)

	case ch.Kind == changes.KindNoChange:
		if !surfaces.Any() {
			// Identical along every axis: the existing image still holds.
			return Outcome{RenderedImage: lastImage, Change: changes.KindNoChange}, nil
		}
		if lastImage == "" {
			return Outcome{}, ErrNoRenderedImage
		}
		return e.visualizeSurfaceDelta(ctx, comp, surfaces, lastImage)

	default:
		return e.visualizeProducts(ctx, comp, ch, surfaces, lastComp, lastImage)
	}
}

// visualizeSurfacesOnly handles branch 1: no products placed, surfaces
// selected. One combined call against the most recent rendered image (or
// the clean room image), with a sequential per-surface fallback.
func (e *Engine) visualizeSurfacesOnly(ctx context.Context, comp datatypes.Composition,
	surfaces changes.SurfaceChanges, lastImage string) (Outcome, error) {

	base := lastImage
	fields := render.SurfaceFields{
		WallColor:   surfaces.WallColor,
		WallTexture: surfaces.WallTexture,
		FloorTile:   surfaces.FloorTile,
	}
	if base == "" || surfaces.Cleared() {
		// Building from the clean image: every current selection must be
		// applied, not just the changed axes.
		base = comp.RoomImage
		fields = render.SurfaceFields{
			WallColor:   comp.WallColor,
			WallTexture: comp.WallTexture,
			FloorTile:   comp.FloorTile,
		}
	}
	if fields.Empty() {
		return Outcome{}, ErrNothingToVisualize
	}

	image, err := e.applySurfacesWithFallback(ctx, base, fields)
	if err != nil {
		return Outcome{Change: changes.KindNoChange}, err
	}
	if image == base {
		return Outcome{Change: changes.KindNoChange}, ErrNoChangesProduced
	}

	e.commit(comp, image, base)
	return Outcome{RenderedImage: image, Change: changes.KindNoChange}, nil
}

// visualizeSurfaceDelta handles branch 2: products unchanged, surface
// axes changed, image exists. Product composition stays out of the
// request entirely. A single changed axis uses the single-axis call; more
// than one uses the combined call.
func (e *Engine) visualizeSurfaceDelta(ctx context.Context, comp datatypes.Composition,
	surfaces changes.SurfaceChanges, lastImage string) (Outcome, error) {

	var image string
	var err error
	if surfaces.Count() == 1 {
		image, err = e.applySingleSurface(ctx, lastImage, surfaces)
	} else {
		fields := render.SurfaceFields{
			WallColor:   surfaces.WallColor,
			WallTexture: surfaces.WallTexture,
			FloorTile:   surfaces.FloorTile,
		}
		image, err = e.applySurfacesWithFallback(ctx, lastImage, fields)
	}
	if err != nil {
		return Outcome{Change: changes.KindNoChange}, err
	}
	if image == lastImage {
		return Outcome{Change: changes.KindNoChange}, ErrNoChangesProduced
	}

	e.commit(comp, image, lastImage)
	return Outcome{RenderedImage: image, Change: changes.KindNoChange}, nil
}

// visualizeProducts handles branch 3: a real product transition (or a
// forced/base-image reset). One render request carries the classification
// payload plus only the surface axes that changed.
func (e *Engine) visualizeProducts(ctx context.Context, comp datatypes.Composition,
	ch changes.Change, surfaces changes.SurfaceChanges,
	lastComp datatypes.Composition, lastImage string) (Outcome, error) {

	req := render.RenderRequest{
		AllProducts: comp.Placements,
		Surfaces: render.SurfaceFields{
			WallColor:   surfaces.WallColor,
			WallTexture: surfaces.WallTexture,
			FloorTile:   surfaces.FloorTile,
		},
	}

	switch ch.Kind {
	case changes.KindInitial, changes.KindReset:
		req.BaseImage = comp.RoomImage
		req.ProductDeltas = ch.Full
		req.Flags.Reset = true
		// From the clean image every current selection applies.
		req.Surfaces = render.SurfaceFields{
			WallColor:   comp.WallColor,
			WallTexture: comp.WallTexture,
			FloorTile:   comp.FloorTile,
		}
	case changes.KindAdditive:
		req.BaseImage = lastImage
		req.ProductDeltas = ch.Added
		req.PreviouslyRendered = lastComp.Placements
		req.Flags.Additive = true
	case changes.KindRemoval:
		req.BaseImage = lastImage
		req.RemovedProducts = ch.Removed
		req.Flags.Removal = true
	case changes.KindQuantityDecrease:
		req.BaseImage = lastImage
		req.RemovedProducts = ch.Removed
		req.Flags.Removal = true
	case changes.KindRemoveAndAdd:
		req.BaseImage = lastImage
		req.ProductDeltas = ch.Added
		req.RemovedProducts = ch.Removed
		req.PreviouslyRendered = lastComp.Placements
		req.Flags.Additive = true
		req.Flags.Removal = true
	default:
		return Outcome{}, fmt.Errorf("unhandled change classification %q", ch.Kind)
	}

	if req.BaseImage == "" {
		if req.Flags.Reset {
			return Outcome{Change: ch.Kind}, ErrNoRoomImage
		}
		return Outcome{Change: ch.Kind}, ErrNoRenderedImage
	}

	result, err := e.client.Render(ctx, req)
	if err != nil {
		return Outcome{Change: ch.Kind}, fmt.Errorf("render failed: %w", err)
	}

	e.commit(comp, result.RenderedImage, req.BaseImage)
	return Outcome{RenderedImage: result.RenderedImage, Change: ch.Kind}, nil
}

// ImproveQuality re-renders the complete current composition from the
// original unmodified room image. Destructive: on success the entire
// undo/redo history is replaced by a fresh one-entry stack, so the caller
// must confirm first.
func (e *Engine) ImproveQuality(ctx context.Context, confirmed bool) (Outcome, error) {
	if !confirmed {
		return Outcome{}, ErrNotConfirmed
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		return Outcome{}, ErrRenderInFlight
	}
	defer e.inFlight.Store(false)
	e.setInFlightGauge(1)
	defer e.setInFlightGauge(0)

	ctx, span := tracer.Start(ctx, "Engine.ImproveQuality")
	defer span.End()

	comp := e.model.Current()
	if !comp.HasProducts() && !comp.HasSurfaces() {
		return Outcome{}, ErrNothingToVisualize
	}

	if comp.RoomImage == "" {
		return Outcome{}, ErrNoRoomImage
	}

	ch := changes.DetectForced(comp.Placements)
	req := render.RenderRequest{
		BaseImage:     comp.RoomImage,
		ProductDeltas: ch.Full,
		AllProducts:   comp.Placements,
		Flags:         render.ModeFlags{Reset: true},
		Surfaces: render.SurfaceFields{
			WallColor:   comp.WallColor,
			WallTexture: comp.WallTexture,
			FloorTile:   comp.FloorTile,
		},
	}

	result, err := e.client.Render(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.countRender(string(changes.KindReset), "error")
		return Outcome{}, fmt.Errorf("quality re-render failed: %w", err)
	}

	e.model.SetCurrent(comp)
	e.model.CommitRender(result.RenderedImage, comp.RoomImage)
	e.history.Reset()
	e.history.Push(comp, result.RenderedImage)
	e.cache.Invalidate()
	e.countRender(string(changes.KindReset), "success")

	slog.Info("Quality re-render complete, history restarted",
		"rendered_image_set", result.RenderedImage != "")
	return Outcome{RenderedImage: result.RenderedImage, Change: changes.KindReset}, nil
}

// Undo restores the previous history entry, bypassing the change detector
// entirely. When the stack empties, all visualization state is cleared.
func (e *Engine) Undo(ctx context.Context) (HistoryOutcome, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return HistoryOutcome{}, ErrRenderInFlight
	}
	defer e.inFlight.Store(false)

	_, span := tracer.Start(ctx, "Engine.Undo")
	defer span.End()

	if !e.history.CanUndo() {
		e.countHistoryStep("undo", "empty")
		return HistoryOutcome{}, ErrNothingToUndo
	}

	entry, ok := e.history.Undo()
	if !ok {
		e.model.ClearRendered()
		e.cache.Invalidate()
		e.countHistoryStep("undo", "cleared")
		return HistoryOutcome{Cleared: true}, nil
	}

	e.model.RestoreRendered(entry)
	e.cache.Invalidate()
	e.countHistoryStep("undo", "restored")
	return HistoryOutcome{Entry: entry}, nil
}

// Redo re-applies the most recently undone entry.
func (e *Engine) Redo(ctx context.Context) (HistoryOutcome, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return HistoryOutcome{}, ErrRenderInFlight
	}
	defer e.inFlight.Store(false)

	_, span := tracer.Start(ctx, "Engine.Redo")
	defer span.End()

	entry, ok := e.history.Redo()
	if !ok {
		e.countHistoryStep("redo", "empty")
		return HistoryOutcome{}, ErrNothingToRedo
	}

	e.model.RestoreRendered(entry)
	e.cache.Invalidate()
	e.countHistoryStep("redo", "restored")
	return HistoryOutcome{Entry: entry}, nil
}

// RestoreProject replaces the history stack with a loaded project and
// re-seeds the model from its newest entry (clearing everything for an
// empty project). The angle cache is invalidated because the primary
// image changed.
func (e *Engine) RestoreProject(entries []datatypes.HistoryEntry) error {
	if !e.inFlight.CompareAndSwap(false, true) {
		return ErrRenderInFlight
	}
	defer e.inFlight.Store(false)

	if err := e.history.Restore(entries); err != nil {
		return err
	}
	if len(entries) > 0 {
		e.model.RestoreRendered(entries[len(entries)-1])
	} else {
		e.model.ClearRendered()
	}
	e.cache.Invalidate()
	return nil
}

// AngleView returns an alternate-viewpoint image of the current scene,
// generating and caching it on first request.
func (e *Engine) AngleView(ctx context.Context, angle angles.Angle) (image string, cached bool, err error) {
	primary := e.model.RenderedImage()
	if primary == "" {
		e.countAngleView(string(angle), "error")
		return "", false, ErrNoRenderedImage
	}

	lastComp, _ := e.model.LastRendered()
	image, cached, err = e.cache.View(ctx, angle, primary, describeProducts(lastComp.Placements))
	switch {
	case err != nil:
		e.countAngleView(string(angle), "error")
	case cached:
		e.countAngleView(string(angle), "cache")
	default:
		e.countAngleView(string(angle), "generated")
	}
	return image, cached, err
}

// applySurfacesWithFallback makes the combined surface call and, when it
// fails, falls back to sequential per-surface calls, each building on the
// previous call's output.
func (e *Engine) applySurfacesWithFallback(ctx context.Context, base string, fields render.SurfaceFields) (string, error) {
	combined, err := e.client.ApplySurfaces(ctx, base, fields)
	if err == nil {
		return combined.RenderedImage, nil
	}

	slog.Warn("Combined surface call failed, falling back to sequential calls", "error", err)
	e.countSurfaceFallback()

	image := base
	if fields.WallColor != nil {
		result, err := e.client.ApplyWallColor(ctx, image, *fields.WallColor)
		if err != nil {
			return "", fmt.Errorf("wall color fallback failed: %w", err)
		}
		image = result.RenderedImage
	}
	if fields.WallTexture != nil {
		result, err := e.client.ApplyWallTexture(ctx, image, *fields.WallTexture)
		if err != nil {
			return "", fmt.Errorf("wall texture fallback failed: %w", err)
		}
		image = result.RenderedImage
	}
	if fields.FloorTile != nil {
		result, err := e.client.ApplyFloorTile(ctx, image, *fields.FloorTile)
		if err != nil {
			return "", fmt.Errorf("floor tile fallback failed: %w", err)
		}
		image = result.RenderedImage
	}
	return image, nil
}

// applySingleSurface routes the one changed axis to its single-axis call.
func (e *Engine) applySingleSurface(ctx context.Context, base string, surfaces changes.SurfaceChanges) (string, error) {
	switch {
	case surfaces.WallColorChanged:
		result, err := e.client.ApplyWallColor(ctx, base, *surfaces.WallColor)
		if err != nil {
			return "", fmt.Errorf("wall color apply failed: %w", err)
		}
		return result.RenderedImage, nil
	case surfaces.WallTextureChanged:
		result, err := e.client.ApplyWallTexture(ctx, base, *surfaces.WallTexture)
		if err != nil {
			return "", fmt.Errorf("wall texture apply failed: %w", err)
		}
		return result.RenderedImage, nil
	default:
		result, err := e.client.ApplyFloorTile(ctx, base, *surfaces.FloorTile)
		if err != nil {
			return "", fmt.Errorf("floor tile apply failed: %w", err)
		}
		return result.RenderedImage, nil
	}
}

// commit applies the success path atomically: promote current to
// last-rendered, push history from the current composition (never the
// delta), and invalidate the angle cache.
func (e *Engine) commit(comp datatypes.Composition, renderedImage, usedBase string) {
	e.model.SetCurrent(comp)
	e.model.CommitRender(renderedImage, usedBase)
	e.history.Push(comp, renderedImage)
	e.cache.Invalidate()
}

// describeProducts builds the human-readable scene description the angle
// endpoint expects, e.g. "2x Lounge Sofa, 1x Arc Lamp".
func describeProducts(placements []datatypes.Placement) string {
	if len(placements) == 0 {
		return "an empty room"
	}
	parts := make([]string, 0, len(placements))
	for _, p := range placements {
		name := p.Name
		if name == "" {
			name = p.StableID
		}
		parts = append(parts, fmt.Sprintf("%dx %s", p.EffectiveQuantity(), name))
	}
	return strings.Join(parts, ", ")
}

func (e *Engine) setInFlightGauge(v float64) {
	if e.metrics != nil {
		e.metrics.RendersInFlight.Set(v)
	}
}

func (e *Engine) countRender(change, status string) {
	if e.metrics != nil {
		e.metrics.RendersTotal.WithLabelValues(change, status).Inc()
	}
}

func (e *Engine) observeRender(change string, d time.Duration) {
	if e.metrics != nil {
		e.metrics.RenderDurationSeconds.WithLabelValues(change).Observe(d.Seconds())
	}
}

func (e *Engine) countHistoryStep(direction, outcome string) {
	if e.metrics != nil {
		e.metrics.HistoryStepsTotal.WithLabelValues(direction, outcome).Inc()
	}
}

func (e *Engine) countAngleView(angle, source string) {
	if e.metrics != nil {
		e.metrics.AngleViewsTotal.WithLabelValues(angle, source).Inc()
	}
}

func (e *Engine) countSurfaceFallback() {
	if e.metrics != nil {
		e.metrics.SurfaceFallbacksTotal.Inc()
	}
}
