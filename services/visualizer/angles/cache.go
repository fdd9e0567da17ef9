// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package angles caches alternate-viewpoint renders of the current scene.
//
// The front angle is the primary rendered image itself and is never
// regenerated. Non-front angles are generated lazily on first request,
// cached for the lifetime of the current primary image, and all dropped
// whenever the primary image changes for any reason (new render, undo,
// redo, reset).
package angles

import (
	"context"
	"fmt"
	"sync"

	"github.com/AleutianAI/RoomStudio/services/visualizer/render"
)

// Angle is the closed set of viewing angles.
type Angle string

const (
	AngleFront Angle = "front"
	AngleLeft  Angle = "left"
	AngleRight Angle = "right"
	AngleTop   Angle = "top"
)

// All lists every supported angle.
func All() []Angle {
	return []Angle{AngleFront, AngleLeft, AngleRight, AngleTop}
}

// Parse validates an angle name.
func Parse(s string) (Angle, error) {
	switch Angle(s) {
	case AngleFront, AngleLeft, AngleRight, AngleTop:
		return Angle(s), nil
	}
	return "", fmt.Errorf("unknown viewing angle %q", s)
}

// inflight tracks one angle generation in progress so duplicate concurrent
// requests for the same angle coalesce onto a single renderer call.
// primary records which base image the generation was started from; only
// callers asking about that same image may join it.
type inflight struct {
	done    chan struct{}
	primary string
	image   string
	err     error
}

// Cache is the per-session angle-view cache.
type Cache struct {
	client render.Client

	mu       sync.Mutex
	epoch    uint64
	views    map[Angle]string
	requests map[Angle]*inflight
}

// NewCache creates an empty cache backed by the given renderer client.
func NewCache(client render.Client) *Cache {
	return &Cache{
		client:   client,
		views:    make(map[Angle]string),
		requests: make(map[Angle]*inflight),
	}
}

// View returns the image for the requested angle. The front angle is the
// primary image itself. Other angles are served from cache when present;
// otherwise one generation call runs per angle and concurrent callers wait
// for it. cached reports whether the result came from the cache.
func (c *Cache) View(ctx context.Context, angle Angle, primaryImage, productsDescription string) (image string, cached bool, err error) {
	if angle == AngleFront {
		return primaryImage, true, nil
	}
	if primaryImage == "" {
		return "", false, fmt.Errorf("no rendered image to generate an angle view from")
	}

	for {
		c.mu.Lock()
		if img, ok := c.views[angle]; ok {
			c.mu.Unlock()
			return img, true, nil
		}
		if call, ok := c.requests[angle]; ok {
			c.mu.Unlock()
			select {
			case <-call.done:
			case <-ctx.Done():
				return "", false, ctx.Err()
			}
			if call.primary == primaryImage {
				return call.image, false, call.err
			}
			// The finished generation was for a different primary
			// image. Start over; the cache it may have populated
			// belongs to that image's epoch, not ours.
			continue
		}
		call := &inflight{done: make(chan struct{}), primary: primaryImage}
		epoch := c.epoch
		c.requests[angle] = call
		c.mu.Unlock()

		result, genErr := c.client.GenerateAngleView(ctx, primaryImage, string(angle), productsDescription)

		c.mu.Lock()
		if c.requests[angle] == call {
			delete(c.requests, angle)
		}
		// An Invalidate while the call was in flight means the primary
		// image has moved on; the result answers this caller's request
		// but must not be cached for the next one.
		if genErr == nil && epoch == c.epoch {
			c.views[angle] = result.RenderedImage
		}
		c.mu.Unlock()

		call.image = result.RenderedImage
		call.err = genErr
		close(call.done)

		if genErr != nil {
			return "", false, fmt.Errorf("failed to generate %s angle view: %w", angle, genErr)
		}
		return result.RenderedImage, false, nil
	}
}

// Invalidate drops every cached non-front view and marks any in-flight
// generation as belonging to the previous primary image. Called whenever
// the primary rendered image changes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.views = make(map[Angle]string)
}

// Len returns the number of cached views.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.views)
}
