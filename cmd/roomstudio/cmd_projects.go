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

// runProjectsListCommand lists all saved projects.
func runProjectsListCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var result struct {
		Projects []datatypes.ProjectInfo `json:"projects"`
	}
	if err := apiCall(ctx, "GET", "/v1/projects", nil, &result); err != nil {
		cliLogger.Error("project list failed", "error", err)
		fmt.Fprintf(os.Stderr, "Failed to list projects: %v\n", err)
		os.Exit(1)
	}

	printResult(result, func() []string {
		if len(result.Projects) == 0 {
			return []string{"No saved projects."}
		}
		lines := make([]string, 0, len(result.Projects))
		for _, p := range result.Projects {
			lines = append(lines, fmt.Sprintf("%-24s %3d entries  saved %s",
				p.Name, p.EntryCount,
				time.Unix(p.SavedAt, 0).Format(time.RFC3339)))
		}
		return lines
	})
}

// runProjectsSaveCommand saves the visualizer's history under a name.
func runProjectsSaveCommand(cmd *cobra.Command, args []string) {
	runProjectAction(args[0], "save")
}

// runProjectsLoadCommand loads a named project into the visualizer.
func runProjectsLoadCommand(cmd *cobra.Command, args []string) {
	runProjectAction(args[0], "load")
}

func runProjectAction(name, action string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var result struct {
		Status  string `json:"status"`
		Name    string `json:"name"`
		Entries int    `json:"entries"`
	}
	path := fmt.Sprintf("/v1/projects/%s/%s", name, action)
	if err := apiCall(ctx, "POST", path, nil, &result); err != nil {
		cliLogger.Error("project action failed", "action", action, "name", name, "error", err)
		fmt.Fprintf(os.Stderr, "Failed to %s project %q: %v\n", action, name, err)
		os.Exit(1)
	}

	printResult(result, func() []string {
		verb := "Saved"
		if action == "load" {
			verb = "Loaded"
		}
		return []string{fmt.Sprintf("%s project %q (%d history entries).",
			verb, result.Name, result.Entries)}
	})
}
