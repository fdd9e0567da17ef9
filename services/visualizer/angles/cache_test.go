// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package angles

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/AleutianAI/RoomStudio/services/visualizer/datatypes"
	"github.com/AleutianAI/RoomStudio/services/visualizer/render"
)

// fakeClient implements render.Client; only GenerateAngleView matters here.
type fakeClient struct {
	generateCalls int32
	generateErr   error
	block         chan struct{} // when set, GenerateAngleView waits on it
}

func (f *fakeClient) EnsureSession(ctx context.Context) (string, error) { return "sess", nil }

func (f *fakeClient) Render(ctx context.Context, req render.RenderRequest) (render.RenderResult, error) {
	return render.RenderResult{}, errors.New("not used")
}

func (f *fakeClient) ApplySurfaces(ctx context.Context, baseImage string, surfaces render.SurfaceFields) (render.SurfacesResult, error) {
	return render.SurfacesResult{}, errors.New("not used")
}

func (f *fakeClient) ApplyWallColor(ctx context.Context, baseImage string, color datatypes.WallColor) (render.RenderResult, error) {
	return render.RenderResult{}, errors.New("not used")
}

func (f *fakeClient) ApplyWallTexture(ctx context.Context, baseImage string, texture datatypes.WallTexture) (render.RenderResult, error) {
	return render.RenderResult{}, errors.New("not used")
}

func (f *fakeClient) ApplyFloorTile(ctx context.Context, baseImage string, tile datatypes.FloorTile) (render.RenderResult, error) {
	return render.RenderResult{}, errors.New("not used")
}

func (f *fakeClient) GenerateAngleView(ctx context.Context, baseImage, targetAngle, productsDescription string) (render.RenderResult, error) {
	atomic.AddInt32(&f.generateCalls, 1)
	if f.block != nil {
		<-f.block
	}
	if f.generateErr != nil {
		return render.RenderResult{}, f.generateErr
	}
	return render.RenderResult{RenderedImage: targetAngle + "-of-" + baseImage}, nil
}

func TestParse(t *testing.T) {
	for _, a := range All() {
		if got, err := Parse(string(a)); err != nil || got != a {
			t.Errorf("Parse(%q) = %q, %v", a, got, err)
		}
	}
	if _, err := Parse("sideways"); err == nil {
		t.Error("Parse() accepted an unknown angle")
	}
}

func TestView_FrontIsPrimaryImage(t *testing.T) {
	client := &fakeClient{}
	c := NewCache(client)

	img, cached, err := c.View(context.Background(), AngleFront, "primary.png", "desc")
	if err != nil {
		t.Fatalf("View(front) failed: %v", err)
	}
	if img != "primary.png" || !cached {
		t.Errorf("View(front) = %q, cached=%t; want the primary image, cached", img, cached)
	}
	if client.generateCalls != 0 {
		t.Error("front view triggered a generation call")
	}
}

func TestView_LazyGenerationAndCaching(t *testing.T) {
	client := &fakeClient{}
	c := NewCache(client)
	ctx := context.Background()

	img, cached, err := c.View(ctx, AngleLeft, "primary.png", "desc")
	if err != nil {
		t.Fatalf("View(left) failed: %v", err)
	}
	if cached {
		t.Error("first request reported cached")
	}
	if img != "left-of-primary.png" {
		t.Errorf("View(left) = %q", img)
	}

	img2, cached2, err := c.View(ctx, AngleLeft, "primary.png", "desc")
	if err != nil {
		t.Fatalf("second View(left) failed: %v", err)
	}
	if !cached2 || img2 != img {
		t.Errorf("second request = %q cached=%t, want the cached image", img2, cached2)
	}
	if client.generateCalls != 1 {
		t.Errorf("generation calls = %d, want 1", client.generateCalls)
	}
}

func TestView_NoPrimaryImage(t *testing.T) {
	c := NewCache(&fakeClient{})
	if _, _, err := c.View(context.Background(), AngleLeft, "", "desc"); err == nil {
		t.Error("View() with no primary image succeeded")
	}
}

func TestView_GenerationFailureNotCached(t *testing.T) {
	client := &fakeClient{generateErr: errors.New("renderer down")}
	c := NewCache(client)
	ctx := context.Background()

	if _, _, err := c.View(ctx, AngleTop, "primary.png", "desc"); err == nil {
		t.Fatal("View() swallowed the generation error")
	}
	if c.Len() != 0 {
		t.Error("failed generation left a cache entry")
	}

	// A later request tries again.
	client.generateErr = nil
	if _, _, err := c.View(ctx, AngleTop, "primary.png", "desc"); err != nil {
		t.Fatalf("retry after failure failed: %v", err)
	}
	if client.generateCalls != 2 {
		t.Errorf("generation calls = %d, want 2", client.generateCalls)
	}
}

func TestView_ConcurrentRequestsCoalesce(t *testing.T) {
	client := &fakeClient{block: make(chan struct{})}
	c := NewCache(client)
	ctx := context.Background()

	const waiters = 8
	var wg sync.WaitGroup
	results := make([]string, waiters)
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = c.View(ctx, AngleRight, "primary.png", "desc")
		}(i)
	}

	// Let every goroutine reach the cache, then release the single call.
	close(client.block)
	wg.Wait()

	for i := 0; i < waiters; i++ {
		if errs[i] != nil {
			t.Fatalf("waiter %d failed: %v", i, errs[i])
		}
		if results[i] != "right-of-primary.png" {
			t.Errorf("waiter %d got %q", i, results[i])
		}
	}
	if got := atomic.LoadInt32(&client.generateCalls); got != 1 {
		t.Errorf("generation calls = %d, want 1 (coalesced)", got)
	}
}

func TestView_InvalidateDuringGenerationDropsResult(t *testing.T) {
	client := &fakeClient{block: make(chan struct{})}
	c := NewCache(client)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		img, cached, err := c.View(ctx, AngleLeft, "primary-1.png", "desc")
		if err != nil {
			t.Errorf("blocked View() failed: %v", err)
		}
		// The caller asked about primary-1 and gets its answer.
		if cached || img != "left-of-primary-1.png" {
			t.Errorf("blocked View() = %q cached=%t", img, cached)
		}
	}()

	// Wait for the generation call to start, then invalidate mid-flight
	// as a successful re-render would.
	for atomic.LoadInt32(&client.generateCalls) == 0 {
		runtime.Gosched()
	}
	c.Invalidate()
	close(client.block)
	<-done

	if c.Len() != 0 {
		t.Fatalf("Len() = %d, stale generation was cached", c.Len())
	}

	// The same angle against the new primary must regenerate, not serve
	// the view rendered from the old image.
	img, cached, err := c.View(ctx, AngleLeft, "primary-2.png", "desc")
	if err != nil {
		t.Fatalf("View() after invalidation failed: %v", err)
	}
	if cached || img != "left-of-primary-2.png" {
		t.Errorf("View() = %q cached=%t, want a fresh generation", img, cached)
	}
	if got := atomic.LoadInt32(&client.generateCalls); got != 2 {
		t.Errorf("generation calls = %d, want 2", got)
	}
}

func TestView_WaiterWithNewPrimaryRestartsGeneration(t *testing.T) {
	client := &fakeClient{block: make(chan struct{})}
	c := NewCache(client)
	ctx := context.Background()

	stale := make(chan struct{})
	go func() {
		defer close(stale)
		c.View(ctx, AngleTop, "primary-1.png", "desc")
	}()
	for atomic.LoadInt32(&client.generateCalls) == 0 {
		runtime.Gosched()
	}
	c.Invalidate()

	// This caller arrives while the old generation is still in flight. It
	// must not adopt that result.
	fresh := make(chan struct{})
	var img string
	var cached bool
	var err error
	go func() {
		defer close(fresh)
		img, cached, err = c.View(ctx, AngleTop, "primary-2.png", "desc")
	}()

	close(client.block)
	<-stale
	<-fresh

	if err != nil {
		t.Fatalf("View() with new primary failed: %v", err)
	}
	if cached || img != "top-of-primary-2.png" {
		t.Errorf("View() = %q cached=%t, want a generation from primary-2", img, cached)
	}
	if got := atomic.LoadInt32(&client.generateCalls); got != 2 {
		t.Errorf("generation calls = %d, want 2", got)
	}
}

func TestInvalidate(t *testing.T) {
	client := &fakeClient{}
	c := NewCache(client)
	ctx := context.Background()

	c.View(ctx, AngleLeft, "primary.png", "desc")
	c.View(ctx, AngleTop, "primary.png", "desc")
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}

	c.Invalidate()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Invalidate()", c.Len())
	}

	// Next request regenerates against the new primary.
	img, cached, err := c.View(ctx, AngleLeft, "primary-2.png", "desc")
	if err != nil {
		t.Fatalf("View() after invalidation failed: %v", err)
	}
	if cached || img != "left-of-primary-2.png" {
		t.Errorf("View() = %q cached=%t, want a fresh generation", img, cached)
	}
}
