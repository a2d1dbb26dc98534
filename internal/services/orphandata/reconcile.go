// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphandata

import (
	"errors"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"
)

// AuditReport is the immutable result of one reconciliation.
type AuditReport struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"startedAt"`

	// Orphaned are files on disk that no live record references, sorted by path.
	Orphaned []DiskFile `json:"orphaned"`

	// Dangling are referenced paths with no file on disk, sorted.
	Dangling []FilePath `json:"dangling"`

	ScannedCount   int   `json:"scannedCount"`
	ReferenceCount int   `json:"referenceCount"`
	OrphanBytes    int64 `json:"orphanBytes"`

	Succeeded bool `json:"succeeded"`
}

// Reconcile set-differences disk files against live references. Both sides
// must already be normalized.
func Reconcile(files []DiskFile, live *PathSet, startedAt time.Time) *AuditReport {
	report := &AuditReport{
		StartedAt:      startedAt,
		ScannedCount:   len(files),
		ReferenceCount: live.Len(),
		Orphaned:       []DiskFile{},
		Dangling:       []FilePath{},
		Succeeded:      true,
	}

	onDisk := make(map[FilePath]struct{}, len(files))
	for _, f := range files {
		onDisk[f.Path] = struct{}{}
		if live.Has(f.Path) {
			continue
		}
		report.Orphaned = append(report.Orphaned, f)
		report.OrphanBytes += f.Size
	}

	for _, p := range live.Sorted() {
		if _, ok := onDisk[p]; !ok {
			report.Dangling = append(report.Dangling, p)
		}
	}

	slices.SortFunc(report.Orphaned, func(a, b DiskFile) int {
		return strings.Compare(string(a.Path), string(b.Path))
	})

	return report
}

// DropPresentDangling removes dangling entries that do exist on disk but were
// never scanned: ignored or protected files, symlinks, and files that appeared
// after the scan. Only a path lstat reports as missing stays dangling.
func (r *AuditReport) DropPresentDangling(lstat func(string) (os.FileInfo, error)) {
	if lstat == nil {
		lstat = os.Lstat
	}
	r.Dangling = slices.DeleteFunc(r.Dangling, func(p FilePath) bool {
		_, err := lstat(p.String())
		return !errors.Is(err, fs.ErrNotExist)
	})
}
