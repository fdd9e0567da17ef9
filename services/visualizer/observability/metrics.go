// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the visualizer.
//
// Metrics cover render orchestration (by change kind and status), renderer
// call latency, undo/redo activity, and angle cache effectiveness. Exposed
// via the /metrics endpoint for Prometheus + Grafana.
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "roomstudio"

const visualizerSubsystem = "visualizer"

// VisualizerMetrics holds all Prometheus metrics for the visualizer
// engine. Initialize once at startup via InitMetrics().
type VisualizerMetrics struct {
	// RendersTotal counts orchestrated renders.
	// Labels: change (initial, additive, ...), status (success, error)
	RendersTotal *prometheus.CounterVec

	// RenderDurationSeconds measures one orchestration end to end,
	// retries included.
	// Labels: change
	RenderDurationSeconds *prometheus.HistogramVec

	// HistoryStepsTotal counts undo/redo applications.
	// Labels: direction (undo, redo), outcome (restored, cleared, empty)
	HistoryStepsTotal *prometheus.CounterVec

	// AngleViewsTotal counts angle view requests.
	// Labels: angle, source (cache, generated, error)
	AngleViewsTotal *prometheus.CounterVec

	// RendersInFlight tracks whether a render is currently running (0/1).
	RendersInFlight prometheus.Gauge

	// SurfaceFallbacksTotal counts combined-call failures that fell back
	// to sequential per-surface calls.
	SurfaceFallbacksTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance, set by InitMetrics().
var DefaultMetrics *VisualizerMetrics

// InitMetrics creates and registers all visualizer metrics. Call once at
// startup.
func InitMetrics() *VisualizerMetrics {
	m := &VisualizerMetrics{
		RendersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: visualizerSubsystem,
			Name:      "renders_total",
			Help:      "Orchestrated renders by change classification and status.",
		}, []string{"change", "status"}),
		RenderDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: visualizerSubsystem,
			Name:      "render_duration_seconds",
			Help:      "End-to-end orchestration duration including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"change"}),
		HistoryStepsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: visualizerSubsystem,
			Name:      "history_steps_total",
			Help:      "Undo/redo applications by direction and outcome.",
		}, []string{"direction", "outcome"}),
		AngleViewsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: visualizerSubsystem,
			Name:      "angle_views_total",
			Help:      "Angle view requests by angle and source.",
		}, []string{"angle", "source"}),
		RendersInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: visualizerSubsystem,
			Name:      "renders_in_flight",
			Help:      "Whether a render orchestration is currently running.",
		}),
		SurfaceFallbacksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: visualizerSubsystem,
			Name:      "surface_fallbacks_total",
			Help:      "Combined surface calls that fell back to sequential per-surface calls.",
		}),
	}
	DefaultMetrics = m
	return m
}
