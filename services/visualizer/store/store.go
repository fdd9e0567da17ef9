// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists named projects: the serialized history-entry
// stack of a composition session. Entries are stored in plain serializable
// form (image reference string, placements, product-id list, quantity map)
// and loading reconstructs and verifies the derived id-set/quantity-map
// invariants.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/RoomStudio/services/visualizer/datatypes"

	_ "modernc.org/sqlite"
)

// ErrProjectNotFound is returned when loading a name that was never saved.
var ErrProjectNotFound = errors.New("project not found")

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	name     TEXT PRIMARY KEY,
	saved_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS project_entries (
	project_name   TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	entry_id       TEXT NOT NULL,
	rendered_image TEXT NOT NULL,
	placements     TEXT NOT NULL,
	product_ids    TEXT NOT NULL,
	quantities     TEXT NOT NULL,
	wall_color     TEXT,
	composition    TEXT,
	PRIMARY KEY (project_name, position)
);
`

// ProjectStore is a SQLite-backed project store.
type ProjectStore struct {
	db *sql.DB
}

// Open opens (or creates) the store at path with production-safe pragmas
// applied via EXEC. Use ":memory:" in tests.
func Open(path string) (*ProjectStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open project store: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create project schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify project store: %w", err)
	}
	slog.Info("Opened project store", "path", path)
	return &ProjectStore{db: db}, nil
}

// Close closes the underlying database.
func (s *ProjectStore) Close() error {
	return s.db.Close()
}

// Save replaces the named project with the given history entries (oldest
// first) in one transaction.
func (s *ProjectStore) Save(ctx context.Context, name string, entries []datatypes.HistoryEntry) error {
	if name == "" {
		return fmt.Errorf("project name must not be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin save transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to clear previous project: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO projects (name, saved_at) VALUES (?, ?)`,
		name, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	for i, entry := range entries {
		placements, err := json.Marshal(entry.Placements)
		if err != nil {
			return fmt.Errorf("failed to serialize placements for entry %d: %w", i, err)
		}
		productIDs, err := json.Marshal(entry.ProductIDs)
		if err != nil {
			return fmt.Errorf("failed to serialize product ids for entry %d: %w", i, err)
		}
		quantities, err := json.Marshal(entry.Quantities)
		if err != nil {
			return fmt.Errorf("failed to serialize quantities for entry %d: %w", i, err)
		}
		var wallColor, compositionJSON []byte
		if entry.WallColor != nil {
			if wallColor, err = json.Marshal(entry.WallColor); err != nil {
				return fmt.Errorf("failed to serialize wall color for entry %d: %w", i, err)
			}
		}
		if entry.Composition != nil {
			if compositionJSON, err = json.Marshal(entry.Composition); err != nil {
				return fmt.Errorf("failed to serialize composition for entry %d: %w", i, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO project_entries
				(project_name, position, entry_id, rendered_image,
				 placements, product_ids, quantities, wall_color, composition)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			name, i, entry.EntryID, entry.RenderedImage,
			string(placements), string(productIDs), string(quantities),
			nullableText(wallColor), nullableText(compositionJSON)); err != nil {
			return fmt.Errorf("failed to save entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project save: %w", err)
	}
	slog.Info("Saved project", "name", name, "entries", len(entries))
	return nil
}

// Load reads the named project's entries (oldest first), rebuilds each
// entry's derived caches when missing, and rejects entries whose persisted
// caches disagree with their placements.
func (s *ProjectStore) Load(ctx context.Context, name string) ([]datatypes.HistoryEntry, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE name = ?`, name).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up project: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %q", ErrProjectNotFound, name)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, rendered_image, placements, product_ids, quantities,
		       wall_color, composition
		FROM project_entries
		WHERE project_name = ?
		ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load project entries: %w", err)
	}
	defer rows.Close()

	var entries []datatypes.HistoryEntry
	for rows.Next() {
		var entry datatypes.HistoryEntry
		var placements, productIDs, quantities string
		var wallColor, compositionJSON sql.NullString
		if err := rows.Scan(&entry.EntryID, &entry.RenderedImage,
			&placements, &productIDs, &quantities, &wallColor, &compositionJSON); err != nil {
			return nil, fmt.Errorf("failed to scan project entry: %w", err)
		}
		if err := json.Unmarshal([]byte(placements), &entry.Placements); err != nil {
			return nil, fmt.Errorf("failed to parse placements: %w", err)
		}
		if err := json.Unmarshal([]byte(productIDs), &entry.ProductIDs); err != nil {
			return nil, fmt.Errorf("failed to parse product ids: %w", err)
		}
		if err := json.Unmarshal([]byte(quantities), &entry.Quantities); err != nil {
			return nil, fmt.Errorf("failed to parse quantities: %w", err)
		}
		if wallColor.Valid {
			entry.WallColor = &datatypes.WallColor{}
			if err := json.Unmarshal([]byte(wallColor.String), entry.WallColor); err != nil {
				return nil, fmt.Errorf("failed to parse wall color: %w", err)
			}
		}
		if compositionJSON.Valid {
			entry.Composition = &datatypes.Composition{}
			if err := json.Unmarshal([]byte(compositionJSON.String), entry.Composition); err != nil {
				return nil, fmt.Errorf("failed to parse composition: %w", err)
			}
		}

		if len(entry.ProductIDs) == 0 && len(entry.Quantities) == 0 {
			entry.Rebuild()
		} else if !entry.DerivedAgree() {
			return nil, fmt.Errorf("project %q entry %s: cached id set/quantity map disagree with placements",
				name, entry.EntryID)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read project entries: %w", err)
	}
	return entries, nil
}

// List returns a summary of every saved project, most recent first.
func (s *ProjectStore) List(ctx context.Context) ([]datatypes.ProjectInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.name, p.saved_at, COUNT(e.position)
		FROM projects p
		LEFT JOIN project_entries e ON e.project_name = p.name
		GROUP BY p.name, p.saved_at
		ORDER BY p.saved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var infos []datatypes.ProjectInfo
	for rows.Next() {
		var info datatypes.ProjectInfo
		if err := rows.Scan(&info.Name, &info.SavedAt, &info.EntryCount); err != nil {
			return nil, fmt.Errorf("failed to scan project summary: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// nullableText converts an optional JSON blob to a sql value.
func nullableText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
