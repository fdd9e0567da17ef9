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
	"fmt"
	"os"
	"time"

	"github.com/AleutianAI/RoomStudio/services/visualizer/datatypes"
	"github.com/spf13/cobra"
)

// runHealthCommand pings the visualizer's /health endpoint.
func runHealthCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var status struct {
		Status string `json:"status"`
	}
	if err := apiCall(ctx, "GET", "/health", nil, &status); err != nil {
		cliLogger.Error("health check failed", "error", err)
		fmt.Fprintf(os.Stderr, "Visualizer is unreachable: %v\n", err)
		os.Exit(1)
	}

	printResult(status, func() []string {
		return []string{fmt.Sprintf("Visualizer at %s is %s", visualizerURL, status.Status)}
	})
}

// runStateCommand fetches and displays the visualizer's current state.
func runStateCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var state datatypes.StateResponse
	if err := apiCall(ctx, "GET", "/v1/state", nil, &state); err != nil {
		cliLogger.Error("state fetch failed", "error", err)
		fmt.Fprintf(os.Stderr, "Failed to fetch state: %v\n", err)
		os.Exit(1)
	}

	printResult(state, func() []string {
		lines := []string{
			fmt.Sprintf("Placements:     %d", len(state.Current.Placements)),
			fmt.Sprintf("History depth:  %d (redo %d)", state.HistoryDepth, state.RedoDepth),
			fmt.Sprintf("Rendered image: %s", presence(state.RenderedImage)),
			fmt.Sprintf("Needs render:   %t", state.NeedsRevisualization),
		}
		for _, p := range state.Current.Placements {
			lines = append(lines, fmt.Sprintf("  %dx %s (%s)",
				p.EffectiveQuantity(), p.Name, p.Key()))
		}
		return lines
	})
}

func presence(image string) string {
	if image == "" {
		return "none"
	}
	return fmt.Sprintf("yes (%d bytes)", len(image))
}
