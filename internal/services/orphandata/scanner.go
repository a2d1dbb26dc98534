// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphandata

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"

	"github.com/autobrr/blobaudit/pkg/pathcmp"
)

// Scanner enumerates regular files under the storage roots.
type Scanner struct {
	roots  []string
	ignore *IgnoreMatcher
}

// NewScanner drops duplicate roots and roots nested inside another root, so
// every file is yielded once.
func NewScanner(roots []string, matcher *IgnoreMatcher) *Scanner {
	return &Scanner{
		roots:  dedupeRoots(roots),
		ignore: matcher,
	}
}

// Roots returns the effective storage roots.
func (s *Scanner) Roots() []string {
	return slices.Clone(s.roots)
}

// Files lazily yields every non-ignored regular file. Symlinks and other
// non-regular entries are skipped. Any enumeration error, a missing root
// included, is yielded once, wrapped in ErrScanFailed, and ends
// the sequence; callers must discard everything yielded before it.
func (s *Scanner) Files(ctx context.Context) iter.Seq2[DiskFile, error] {
	return func(yield func(DiskFile, error) bool) {
		for _, root := range s.roots {
			info, err := os.Stat(root)
			if err != nil {
				// A missing root is usually an unmounted volume, not an empty store.
				yield(DiskFile{}, fmt.Errorf("%w: stat root %s: %w", ErrScanFailed, root, err))
				return
			}
			if !info.IsDir() {
				yield(DiskFile{}, fmt.Errorf("%w: storage root is not a directory: %s", ErrScanFailed, root))
				return
			}

			if !s.walkRoot(ctx, root, yield) {
				return
			}
		}
	}
}

// walkRoot returns false when the sequence must stop.
func (s *Scanner) walkRoot(ctx context.Context, root string, yield func(DiskFile, error) bool) bool {
	stopped := false

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			// Unreadable entries fail the whole scan.
			return err
		}

		// Don't follow symlinks
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if d.IsDir() {
			if path != root && s.ignore.Match(root, path, true) {
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		if s.ignore.Match(root, path, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Removed between readdir and stat; nothing to reconcile.
				return nil
			}
			return err
		}

		file := DiskFile{
			Path:       NormalizePath(path),
			OSPath:     path,
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		}
		if !yield(file, nil) {
			stopped = true
			return fs.SkipAll
		}
		return nil
	})

	if stopped {
		return false
	}
	if err != nil {
		yield(DiskFile{}, fmt.Errorf("%w: %s: %w", ErrScanFailed, root, err))
		return false
	}
	return true
}

// ScanAll collects Files into a slice.
func (s *Scanner) ScanAll(ctx context.Context) ([]DiskFile, error) {
	var files []DiskFile
	for file, err := range s.Files(ctx) {
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func dedupeRoots(roots []string) []string {
	type root struct {
		os        string
		canonical string
	}

	cleaned := make([]root, 0, len(roots))
	for _, r := range roots {
		if r == "" {
			continue
		}
		cleaned = append(cleaned, root{os: filepath.Clean(r), canonical: pathcmp.Canonical(r)})
	}

	// Shorter paths first so parents are kept before their children.
	slices.SortStableFunc(cleaned, func(a, b root) int {
		return len(a.canonical) - len(b.canonical)
	})

	var kept []root
	for _, r := range cleaned {
		nested := false
		for _, k := range kept {
			if pathcmp.IsWithin(k.canonical, r.canonical) {
				nested = true
				break
			}
		}
		if !nested {
			kept = append(kept, r)
		}
	}

	out := make([]string, len(kept))
	for i, k := range kept {
		out[i] = k.os
	}
	return out
}
