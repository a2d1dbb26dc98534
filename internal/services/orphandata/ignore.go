// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphandata

import (
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoreMatcher decides which scanned paths are skipped. Patterns use
// gitignore syntax and are matched against the path relative to its storage
// root. Protected paths are matched exactly.
type IgnoreMatcher struct {
	patterns  *ignore.GitIgnore
	protected map[FilePath]struct{}
}

// NewIgnoreMatcher compiles patterns. Blank lines and # comments are ignored.
func NewIgnoreMatcher(patterns []string, protected []string) *IgnoreMatcher {
	m := &IgnoreMatcher{
		protected: make(map[FilePath]struct{}, len(protected)),
	}

	var lines []string
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	if len(lines) > 0 {
		m.patterns = ignore.CompileIgnoreLines(lines...)
	}

	for _, p := range protected {
		if p == "" {
			continue
		}
		m.protected[NormalizePath(p)] = struct{}{}
	}
	return m
}

// Match reports whether path under root should be skipped. Directories are
// matched with a trailing slash so "tmp/" patterns prune whole subtrees.
func (m *IgnoreMatcher) Match(root, path string, isDir bool) bool {
	if m == nil {
		return false
	}

	if !isDir {
		if _, ok := m.protected[NormalizePath(path)]; ok {
			return true
		}
	}

	if m.patterns == nil {
		return false
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}

	rel = filepath.ToSlash(rel)
	if isDir {
		rel += "/"
	}
	return m.patterns.MatchesPath(rel)
}
