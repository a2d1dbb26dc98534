// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphandata

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func diskFile(path string, size int64, mtime time.Time) DiskFile {
	return DiskFile{Path: NormalizePath(path), OSPath: path, Size: size, ModifiedAt: mtime}
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	root := filepath.Join(string(filepath.Separator), "srv", "blobs")
	now := time.Now()
	files := []DiskFile{
		diskFile(filepath.Join(root, "c.bin"), 3, now),
		diskFile(filepath.Join(root, "a.bin"), 1, now),
		diskFile(filepath.Join(root, "b.bin"), 2, now),
	}

	live := NewPathSet()
	live.Add(NormalizePath(filepath.Join(root, "a.bin")))
	live.Add(NormalizePath(filepath.Join(root, "d.bin")))

	report := Reconcile(files, live, now)

	assert.True(t, report.Succeeded)
	assert.Equal(t, now, report.StartedAt)
	assert.Equal(t, 3, report.ScannedCount)
	assert.Equal(t, 2, report.ReferenceCount)
	assert.Equal(t, []string{"b.bin", "c.bin"}, reportPaths(report.Orphaned))
	assert.Equal(t, int64(5), report.OrphanBytes)
	assert.Equal(t, []FilePath{NormalizePath(filepath.Join(root, "d.bin"))}, report.Dangling)
}

func TestReconcileTreatsNormalizedFormsAsEqual(t *testing.T) {
	t.Parallel()

	root := filepath.Join(string(filepath.Separator), "srv", "blobs")
	disk := filepath.Join(root, "x", "a.bin")

	live := NewPathSet()
	live.Add(NormalizePath(filepath.Join(root, "x", ".", "y", "..", "a.bin") + string(filepath.Separator)))

	report := Reconcile([]DiskFile{diskFile(disk, 1, time.Now())}, live, time.Now())
	assert.Empty(t, report.Orphaned)
	assert.Empty(t, report.Dangling)
}

func TestReconcileEmptyInputs(t *testing.T) {
	t.Parallel()

	report := Reconcile(nil, NewPathSet(), time.Now())
	assert.NotNil(t, report.Orphaned)
	assert.NotNil(t, report.Dangling)
	assert.Zero(t, report.ScannedCount)
	assert.Zero(t, report.OrphanBytes)
}

func TestDropPresentDangling(t *testing.T) {
	t.Parallel()

	root := filepath.Join(string(filepath.Separator), "srv", "blobs")
	gone := NormalizePath(filepath.Join(root, "gone.bin"))
	ignored := NormalizePath(filepath.Join(root, "cache.tmp"))
	denied := NormalizePath(filepath.Join(root, "locked", "a.bin"))

	report := &AuditReport{Dangling: []FilePath{ignored, gone, denied}}
	report.DropPresentDangling(func(name string) (os.FileInfo, error) {
		switch FilePath(name) {
		case gone:
			return nil, &fs.PathError{Op: "lstat", Path: name, Err: fs.ErrNotExist}
		case denied:
			return nil, &fs.PathError{Op: "lstat", Path: name, Err: fs.ErrPermission}
		}
		return nil, nil
	})

	assert.Equal(t, []FilePath{gone}, report.Dangling)
}
