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
	"os"

	"github.com/AleutianAI/RoomStudio/pkg/logging"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	visualizerURL string
	jsonOutput    bool
	verboseLogs   bool

	cliLogger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "roomstudio",
		Short: "A cli to manage and inspect the RoomStudio visualizer",
		Long: `RoomStudio is a tool for driving the room visualization service:
				checking its health, stepping the undo/redo history, fetching
				angle views, and saving or loading design projects.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logging.LevelInfo
			if verboseLogs {
				level = logging.LevelDebug
			}
			cliLogger = logging.New(logging.Config{
				Level:   level,
				LogDir:  "~/.roomstudio/logs",
				Service: "cli",
			})
			if visualizerURL == "" {
				visualizerURL = os.Getenv("ROOMSTUDIO_VISUALIZER_URL")
			}
			if visualizerURL == "" {
				visualizerURL = "http://localhost:12240"
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cliLogger != nil {
				_ = cliLogger.Close()
			}
		},
	}

	// --- Health / State ---
	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check whether the visualizer service is up",
		Run:   runHealthCommand, // Defined in cmd_health.go
	}
	stateCmd = &cobra.Command{
		Use:   "state",
		Short: "Show the current composition and history depth",
		Run:   runStateCommand, // Defined in cmd_health.go
	}

	// --- History ---
	undoCmd = &cobra.Command{
		Use:   "undo",
		Short: "Step the visualizer back to the previous rendered state",
		Run:   runUndoCommand, // Defined in cmd_history.go
	}
	redoCmd = &cobra.Command{
		Use:   "redo",
		Short: "Reapply the most recently undone rendered state",
		Run:   runRedoCommand, // Defined in cmd_history.go
	}
	angleCmd = &cobra.Command{
		Use:   "angle [front|left|right|top]",
		Short: "Fetch an alternate viewing angle of the current render",
		Args:  cobra.ExactArgs(1),
		Run:   runAngleCommand, // Defined in cmd_history.go
	}

	// --- Projects ---
	projectsCmd = &cobra.Command{
		Use:   "projects",
		Short: "Save, load, and list design projects",
	}
	projectsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List saved projects",
		Run:   runProjectsListCommand, // Defined in cmd_projects.go
	}
	projectsSaveCmd = &cobra.Command{
		Use:   "save [name]",
		Short: "Save the current visualizer history as a named project",
		Args:  cobra.ExactArgs(1),
		Run:   runProjectsSaveCommand, // Defined in cmd_projects.go
	}
	projectsLoadCmd = &cobra.Command{
		Use:   "load [name]",
		Short: "Load a named project into the visualizer",
		Args:  cobra.ExactArgs(1),
		Run:   runProjectsLoadCommand, // Defined in cmd_projects.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&visualizerURL, "url", "",
		"Base URL of the visualizer service (default $ROOMSTUDIO_VISUALIZER_URL or http://localhost:12240)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output as JSON for scripting")
	rootCmd.PersistentFlags().BoolVarP(&verboseLogs, "verbose", "v", false,
		"Enable debug logging")

	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsSaveCmd)
	projectsCmd.AddCommand(projectsLoadCmd)

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(redoCmd)
	rootCmd.AddCommand(angleCmd)
	rootCmd.AddCommand(projectsCmd)
}
