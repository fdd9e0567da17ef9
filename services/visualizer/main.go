// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/RoomStudio/services/visualizer/angles"
	"github.com/AleutianAI/RoomStudio/services/visualizer/composition"
	"github.com/AleutianAI/RoomStudio/services/visualizer/engine"
	"github.com/AleutianAI/RoomStudio/services/visualizer/history"
	"github.com/AleutianAI/RoomStudio/services/visualizer/observability"
	"github.com/AleutianAI/RoomStudio/services/visualizer/render"
	"github.com/AleutianAI/RoomStudio/services/visualizer/routes"
	"github.com/AleutianAI/RoomStudio/services/visualizer/store"
	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "roomstudio-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("visualizer-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func retryConfigFromEnv() render.RetryConfig {
	cfg := render.DefaultRetryConfig()
	if raw := os.Getenv("RENDER_MAX_ATTEMPTS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.MaxAttempts = n
		} else {
			slog.Warn("RENDER_MAX_ATTEMPTS is invalid, using default", "value", raw)
		}
	}
	if raw := os.Getenv("RENDER_RETRY_DELAY_SECONDS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.Delay = time.Duration(n) * time.Second
		} else {
			slog.Warn("RENDER_RETRY_DELAY_SECONDS is invalid, using default", "value", raw)
		}
	}
	return cfg
}

func main() {
	port := os.Getenv("VISUALIZER_PORT")
	if port == "" {
		port = "12240"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	rendererURL := os.Getenv("RENDERER_BASE_URL")
	// Sanitize: Trim quotes and whitespace just in case Podman passes them literally
	rendererURL = strings.Trim(rendererURL, "\"' ")
	if rendererURL == "" {
		rendererURL = "http://roomstudio-renderer:12250"
		slog.Warn("RENDERER_BASE_URL not set, using default", "url", rendererURL)
	}

	dbPath := os.Getenv("ROOMSTUDIO_DB_PATH")
	if dbPath == "" {
		dbPath = "/data/roomstudio.db"
	}
	projects, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("FATAL: Could not open the project store at %s: %v", dbPath, err)
	}
	defer projects.Close()

	observability.InitMetrics()

	client, err := render.NewHTTPClient(rendererURL, retryConfigFromEnv())
	if err != nil {
		log.Fatalf("FATAL: Could not initialize the renderer client: %v", err)
	}
	model := composition.NewModel("")
	hist := history.NewManager(history.DefaultMaxDepth)
	cache := angles.NewCache(client)
	eng := engine.New(client, model, hist, cache, observability.DefaultMetrics)

	router := gin.Default()
	router.Use(otelgin.Middleware("visualizer-service"))

	routes.SetupRoutes(router, eng, projects)
	log.Println("started up the container")

	log.Println("Starting the visualizer server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
