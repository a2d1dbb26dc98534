// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphandata

import (
	"slices"
	"sync"
	"time"

	"github.com/autobrr/blobaudit/pkg/pathcmp"
)

// FilePath is a canonical absolute path. Two paths name the same file iff
// their FilePath values are equal.
type FilePath string

// NormalizePath returns the canonical form of p. Disk paths and referenced
// paths must both pass through here before comparison.
func NormalizePath(p string) FilePath {
	return FilePath(pathcmp.Canonical(p))
}

func (p FilePath) String() string {
	return string(p)
}

// DiskFile is one regular file found by the scanner.
type DiskFile struct {
	Path FilePath `json:"path"`
	// OSPath is the path as enumerated, used for filesystem calls.
	OSPath     string    `json:"osPath"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// PathSet is a thread-safe set of FilePath values.
type PathSet struct {
	paths map[FilePath]struct{}
	mu    sync.RWMutex
}

// NewPathSet creates a new empty PathSet.
func NewPathSet() *PathSet {
	return &PathSet{
		paths: make(map[FilePath]struct{}),
	}
}

// Add adds a normalized path to the set.
func (s *PathSet) Add(p FilePath) {
	s.mu.Lock()
	s.paths[p] = struct{}{}
	s.mu.Unlock()
}

// Has checks if a normalized path exists in the set.
func (s *PathSet) Has(p FilePath) bool {
	s.mu.RLock()
	_, ok := s.paths[p]
	s.mu.RUnlock()
	return ok
}

// Len returns the number of paths in the set.
func (s *PathSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paths)
}

// Sorted returns the members in ascending order.
func (s *PathSet) Sorted() []FilePath {
	s.mu.RLock()
	out := make([]FilePath, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	s.mu.RUnlock()

	slices.Sort(out)
	return out
}
