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

// runUndoCommand steps the visualizer back one rendered state.
func runUndoCommand(cmd *cobra.Command, args []string) {
	runHistoryStep("/v1/undo", "undo")
}

// runRedoCommand reapplies the most recently undone state.
func runRedoCommand(cmd *cobra.Command, args []string) {
	runHistoryStep("/v1/redo", "redo")
}

func runHistoryStep(path, direction string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var step datatypes.HistoryStepResponse
	if err := apiCall(ctx, "POST", path, nil, &step); err != nil {
		cliLogger.Error("history step failed", "direction", direction, "error", err)
		fmt.Fprintf(os.Stderr, "Failed to %s: %v\n", direction, err)
		os.Exit(1)
	}

	printResult(step, func() []string {
		if step.Cleared {
			return []string{"History is empty now; the room was cleared back to its photo."}
		}
		lines := []string{fmt.Sprintf("Applied %s: %d product(s) in the room.",
			direction, len(step.ProductIDs))}
		for _, id := range step.ProductIDs {
			lines = append(lines, fmt.Sprintf("  %dx %s", step.Quantities[id], id))
		}
		return lines
	})
}

// runAngleCommand fetches an alternate viewing angle of the current render.
func runAngleCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), apiCallTimeout)
	defer cancel()

	var view datatypes.AngleResponse
	path := "/v1/angles/" + args[0]
	if err := apiCall(ctx, "GET", path, nil, &view); err != nil {
		cliLogger.Error("angle fetch failed", "angle", args[0], "error", err)
		fmt.Fprintf(os.Stderr, "Failed to fetch the %s view: %v\n", args[0], err)
		os.Exit(1)
	}

	printResult(view, func() []string {
		source := "generated"
		if view.Cached {
			source = "cached"
		}
		return []string{fmt.Sprintf("%s view (%s): %d bytes of image data",
			view.Angle, source, len(view.Image))}
	})
}
