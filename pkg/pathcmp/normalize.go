// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pathcmp provides shared path normalization helpers used when
// comparing paths reported by record stores against paths found on disk.
// Both sides must go through the same helpers or equal files compare unequal.
package pathcmp

import (
	"path/filepath"
	"runtime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// FoldCase reports whether paths are compared case-insensitively on this
// platform. Windows and macOS default filesystems are case-insensitive.
func FoldCase() bool {
	return runtime.GOOS == "windows" || runtime.GOOS == "darwin"
}

// Canonical returns the comparison form of p:
// - unicode NFC (macOS hands back decomposed names, SQL rows are usually composed)
// - filepath.Clean, which also drops trailing separators
// - case folded where the platform filesystem is case-insensitive
//
// Invalid UTF-8 is preserved byte-for-byte; filenames on Unix are arbitrary bytes.
func Canonical(p string) string {
	if p == "" {
		return ""
	}
	if utf8.ValidString(p) {
		p = norm.NFC.String(p)
	}
	p = filepath.Clean(p)
	if FoldCase() {
		p = strings.ToLower(p)
	}
	return p
}

// Resolve returns p as an absolute canonical path. Relative paths are joined
// onto base; an empty base leaves relative paths relative.
func Resolve(base, p string) string {
	if p == "" {
		return ""
	}
	if !filepath.IsAbs(p) && base != "" {
		p = filepath.Join(base, p)
	}
	return Canonical(p)
}

// IsWithin reports whether path equals root or lies below it, matching only
// at separator boundaries so /data/foo never contains /data/foobar.
// Both arguments must already be canonical.
func IsWithin(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	if path == root {
		return true
	}
	if !strings.HasPrefix(path, root) {
		return false
	}
	if strings.HasSuffix(root, string(filepath.Separator)) {
		return true
	}
	return path[len(root)] == filepath.Separator
}

// Longest returns the longest root in roots that contains path, or "" when
// none does. Roots and path must already be canonical.
func Longest(path string, roots []string) string {
	longest := ""
	for _, root := range roots {
		if !IsWithin(root, path) {
			continue
		}
		if len(root) > len(longest) {
			longest = root
		}
	}
	return longest
}
