// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/autobrr/blobaudit/internal/dbinterface"
)

var sqlIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// FileReferenceStore lists the file paths held in one column of a domain table.
// Rows with NULL or empty values reference nothing.
type FileReferenceStore struct {
	name    string
	table   string
	column  string
	baseDir string
}

// NewFileReferenceStore validates table and column as plain SQL identifiers since
// they are interpolated into the query.
func NewFileReferenceStore(name, table, column, baseDir string) (*FileReferenceStore, error) {
	if !sqlIdentifier.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if !sqlIdentifier.MatchString(column) {
		return nil, fmt.Errorf("invalid column name %q", column)
	}
	if baseDir != "" && !filepath.IsAbs(baseDir) {
		return nil, fmt.Errorf("base dir must be absolute: %s", baseDir)
	}
	if name == "" {
		name = table + "." + column
	}

	return &FileReferenceStore{
		name:    name,
		table:   table,
		column:  column,
		baseDir: baseDir,
	}, nil
}

func (s *FileReferenceStore) Name() string {
	return s.name
}

// ListLiveFilePaths reads every distinct non-empty path through q. Relative
// values are joined onto the base dir when one is configured and returned as-is otherwise.
func (s *FileReferenceStore) ListLiveFilePaths(ctx context.Context, q dbinterface.Querier) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT %[2]s FROM %[1]s WHERE %[2]s IS NOT NULL AND %[2]s <> ''`,
		s.table, s.column,
	)

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: query references: %w", s.name, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("%s: scan reference: %w", s.name, err)
		}
		if s.baseDir != "" && !filepath.IsAbs(p) {
			p = filepath.Join(s.baseDir, p)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate references: %w", s.name, err)
	}

	return paths, nil
}
