// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/RoomStudio/services/visualizer/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("roomstudio.visualizer.render")

// DefaultCallTimeout bounds one renderer call end to end, retries
// included. A timeout is a failure, never "still running".
const DefaultCallTimeout = 3 * time.Minute

// HTTPClient talks JSON over HTTP to the rendering collaborator.
//
// The session identifier is created lazily once per client lifetime and
// reused for every subsequent call; there is no ambient storage, the
// handle lives in the client and is passed to the engine's constructor.
type HTTPClient struct {
	httpClient  *http.Client
	baseURL     string
	retryConfig RetryConfig

	sessionMu sync.Mutex
	sessionID string
}

// NewHTTPClient creates a client for the renderer at baseURL.
func NewHTTPClient(baseURL string, retryConfig RetryConfig) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("renderer base URL not set")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing renderer client", "base_url", baseURL,
		"max_attempts", retryConfig.MaxAttempts)
	return &HTTPClient{
		httpClient:  &http.Client{Timeout: DefaultCallTimeout},
		baseURL:     baseURL,
		retryConfig: retryConfig,
	}, nil
}

// Renderer wire envelope. Every endpoint responds with the produced image
// plus an optional service-reported error message.
type renderEnvelope struct {
	RenderedImage   string   `json:"rendered_image"`
	SurfacesApplied []string `json:"surfaces_applied,omitempty"`
	Error           string   `json:"error,omitempty"`
}

type sessionRequest struct {
	ClientName string `json:"client_name"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Error     string `json:"error,omitempty"`
}

type applySurfacesRequest struct {
	SessionID string        `json:"session_id"`
	BaseImage string        `json:"base_image"`
	Surfaces  SurfaceFields `json:"surfaces"`
}

type applySurfaceRequest struct {
	SessionID string `json:"session_id"`
	BaseImage string `json:"base_image"`
	SurfaceID string `json:"surface_id"`
	Name      string `json:"name,omitempty"`
	Code      string `json:"code,omitempty"`
	Hex       string `json:"hex,omitempty"`
}

type angleViewRequest struct {
	SessionID           string `json:"session_id"`
	BaseImage           string `json:"base_image"`
	TargetAngle         string `json:"target_angle"`
	ProductsDescription string `json:"products_description"`
}

type renderWireRequest struct {
	SessionID string `json:"session_id"`
	RenderRequest
}

// EnsureSession returns the memoized session id, creating it on first use.
func (c *HTTPClient) EnsureSession(ctx context.Context) (string, error) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	if c.sessionID != "" {
		return c.sessionID, nil
	}

	ctx, span := tracer.Start(ctx, "HTTPClient.EnsureSession")
	defer span.End()

	var resp sessionResponse
	err := retry(ctx, c.retryConfig, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			slog.Warn("Retrying renderer session create", "attempt", attempt)
		}
		return c.post(ctx, "/v1/sessions", sessionRequest{ClientName: "roomstudio-visualizer"}, &resp)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to create rendering session: %w", err)
	}
	if resp.Error != "" {
		return "", ServiceFailure(resp.Error)
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("%w: renderer returned an empty session id", ErrNoSession)
	}

	c.sessionID = resp.SessionID
	slog.Info("Created rendering session", "session_id", c.sessionID)
	return c.sessionID, nil
}

// Render executes one product-composition render with bounded retry.
func (c *HTTPClient) Render(ctx context.Context, req RenderRequest) (RenderResult, error) {
	ctx, span := tracer.Start(ctx, "HTTPClient.Render")
	defer span.End()
	span.SetAttributes(
		attribute.Int("render.deltas", len(req.ProductDeltas)),
		attribute.Bool("render.additive", req.Flags.Additive),
		attribute.Bool("render.reset", req.Flags.Reset),
		attribute.Bool("render.removal", req.Flags.Removal),
	)

	sessionID, err := c.EnsureSession(ctx)
	if err != nil {
		return RenderResult{}, err
	}

	env, err := c.call(ctx, "/v1/render", renderWireRequest{SessionID: sessionID, RenderRequest: req})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RenderResult{}, err
	}
	return RenderResult{RenderedImage: env.RenderedImage}, nil
}

// ApplySurfaces applies every carried axis in one combined call.
func (c *HTTPClient) ApplySurfaces(ctx context.Context, baseImage string, surfaces SurfaceFields) (SurfacesResult, error) {
	ctx, span := tracer.Start(ctx, "HTTPClient.ApplySurfaces")
	defer span.End()

	sessionID, err := c.EnsureSession(ctx)
	if err != nil {
		return SurfacesResult{}, err
	}

	env, err := c.call(ctx, "/v1/surfaces/apply", applySurfacesRequest{
		SessionID: sessionID,
		BaseImage: baseImage,
		Surfaces:  surfaces,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SurfacesResult{}, err
	}
	return SurfacesResult{RenderedImage: env.RenderedImage, SurfacesApplied: env.SurfacesApplied}, nil
}

// ApplyWallColor applies only the wall color axis.
func (c *HTTPClient) ApplyWallColor(ctx context.Context, baseImage string, color datatypes.WallColor) (RenderResult, error) {
	return c.applySingle(ctx, "/v1/surfaces/wall-color", applySurfaceRequest{
		BaseImage: baseImage,
		SurfaceID: color.ID,
		Name:      color.Name,
		Code:      color.Code,
		Hex:       color.Hex,
	})
}

// ApplyWallTexture applies only the wall texture axis.
func (c *HTTPClient) ApplyWallTexture(ctx context.Context, baseImage string, texture datatypes.WallTexture) (RenderResult, error) {
	return c.applySingle(ctx, "/v1/surfaces/wall-texture", applySurfaceRequest{
		BaseImage: baseImage,
		SurfaceID: texture.ID,
		Name:      texture.Name,
	})
}

// ApplyFloorTile applies only the floor tile axis.
func (c *HTTPClient) ApplyFloorTile(ctx context.Context, baseImage string, tile datatypes.FloorTile) (RenderResult, error) {
	return c.applySingle(ctx, "/v1/surfaces/floor-tile", applySurfaceRequest{
		BaseImage: baseImage,
		SurfaceID: tile.ID,
		Name:      tile.Name,
	})
}

// GenerateAngleView produces an alternate-angle view of the scene.
func (c *HTTPClient) GenerateAngleView(ctx context.Context, baseImage, targetAngle, productsDescription string) (RenderResult, error) {
	ctx, span := tracer.Start(ctx, "HTTPClient.GenerateAngleView")
	defer span.End()
	span.SetAttributes(attribute.String("render.angle", targetAngle))

	sessionID, err := c.EnsureSession(ctx)
	if err != nil {
		return RenderResult{}, err
	}

	env, err := c.call(ctx, "/v1/angles", angleViewRequest{
		SessionID:           sessionID,
		BaseImage:           baseImage,
		TargetAngle:         targetAngle,
		ProductsDescription: productsDescription,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RenderResult{}, err
	}
	return RenderResult{RenderedImage: env.RenderedImage}, nil
}

func (c *HTTPClient) applySingle(ctx context.Context, path string, req applySurfaceRequest) (RenderResult, error) {
	ctx, span := tracer.Start(ctx, "HTTPClient.applySingle")
	defer span.End()
	span.SetAttributes(attribute.String("render.surface_path", path))

	sessionID, err := c.EnsureSession(ctx)
	if err != nil {
		return RenderResult{}, err
	}
	req.SessionID = sessionID

	env, err := c.call(ctx, path, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RenderResult{}, err
	}
	return RenderResult{RenderedImage: env.RenderedImage}, nil
}

// call posts the payload with bounded retry and decodes the standard
// envelope, converting a service-reported error into ErrServiceFailure.
func (c *HTTPClient) call(ctx context.Context, path string, payload any) (renderEnvelope, error) {
	var env renderEnvelope
	err := retry(ctx, c.retryConfig, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			slog.Warn("Retrying renderer call", "path", path, "attempt", attempt,
				"max_attempts", c.retryConfig.MaxAttempts)
		}
		return c.post(ctx, path, payload, &env)
	})
	if err != nil {
		return renderEnvelope{}, err
	}
	if env.Error != "" {
		return renderEnvelope{}, ServiceFailure(env.Error)
	}
	if env.RenderedImage == "" {
		return renderEnvelope{}, ServiceFailure("renderer returned no image")
	}
	return env, nil
}

// post performs one attempt. Network errors and 5xx responses are marked
// transient so the retry loop picks them up; 4xx responses surface as
// service failures immediately.
func (c *HTTPClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal renderer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create renderer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("Renderer call failed", "path", path, "error", err)
		return markTransient(fmt.Errorf("renderer call failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return markTransient(fmt.Errorf("failed to read renderer response: %w", err))
	}

	if resp.StatusCode >= 500 {
		slog.Error("Renderer returned a server error", "path", path,
			"status_code", resp.StatusCode, "response", string(respBody))
		return markTransient(fmt.Errorf("renderer failed with status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("Renderer rejected the request", "path", path,
			"status_code", resp.StatusCode, "response", string(respBody))
		return ServiceFailure(fmt.Sprintf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		slog.Error("Failed to parse renderer response", "path", path, "error", err)
		return fmt.Errorf("failed to parse renderer response: %w", err)
	}
	return nil
}
