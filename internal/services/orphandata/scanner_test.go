// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphandata

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScannerYieldsRegularFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := writeAgedFile(t, filepath.Join(root, "a.bin"), 10, time.Hour)
	b := writeAgedFile(t, filepath.Join(root, "nested", "deep", "b.bin"), 20, time.Hour)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	files, err := NewScanner([]string{root}, nil).ScanAll(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 2)

	byPath := map[string]DiskFile{}
	for _, f := range files {
		byPath[f.OSPath] = f
	}
	require.Contains(t, byPath, a)
	require.Contains(t, byPath, b)
	assert.Equal(t, int64(10), byPath[a].Size)
	assert.Equal(t, int64(20), byPath[b].Size)
	assert.Equal(t, NormalizePath(a), byPath[a].Path)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), byPath[a].ModifiedAt, 5*time.Second)
}

func TestScannerSkipsSymlinks(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}

	root := t.TempDir()
	outside := t.TempDir()
	target := writeAgedFile(t, filepath.Join(outside, "target.bin"), 1, time.Hour)
	writeAgedFile(t, filepath.Join(outside, "dir", "inner.bin"), 1, time.Hour)
	writeAgedFile(t, filepath.Join(root, "real.bin"), 1, time.Hour)

	require.NoError(t, os.Symlink(target, filepath.Join(root, "link.bin")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "dir"), filepath.Join(root, "linkdir")))

	files, err := NewScanner([]string{root}, nil).ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"real.bin"}, reportPaths(files))
}

func TestScannerAppliesIgnoreMatcher(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	lock := filepath.Join(root, "blobaudit.lock")
	writeAgedFile(t, filepath.Join(root, "keep.bin"), 1, time.Hour)
	writeAgedFile(t, filepath.Join(root, "upload.partial"), 1, time.Hour)
	writeAgedFile(t, filepath.Join(root, "tmp", "scratch.bin"), 1, time.Hour)
	writeAgedFile(t, lock, 0, time.Hour)

	matcher := NewIgnoreMatcher([]string{"*.partial", "tmp/"}, []string{lock})
	files, err := NewScanner([]string{root}, matcher).ScanAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.bin"}, reportPaths(files))
}

func TestScannerMissingRootFails(t *testing.T) {
	t.Parallel()

	present := t.TempDir()
	writeAgedFile(t, filepath.Join(present, "a.bin"), 1, time.Hour)
	missing := filepath.Join(t.TempDir(), "unmounted")

	files, err := NewScanner([]string{present, missing}, nil).ScanAll(context.Background())
	require.ErrorIs(t, err, ErrScanFailed)
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.Nil(t, files, "no partial listing survives a failed scan")
}

func TestScannerRootIsFileFails(t *testing.T) {
	t.Parallel()

	file := writeAgedFile(t, filepath.Join(t.TempDir(), "not-a-dir"), 1, time.Hour)
	_, err := NewScanner([]string{file}, nil).ScanAll(context.Background())
	require.ErrorIs(t, err, ErrScanFailed)
}

func TestScannerUnreadableDirectoryFails(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	root := t.TempDir()
	writeAgedFile(t, filepath.Join(root, "a.bin"), 1, time.Hour)
	locked := filepath.Join(root, "locked")
	writeAgedFile(t, filepath.Join(locked, "b.bin"), 1, time.Hour)
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	files, err := NewScanner([]string{root}, nil).ScanAll(context.Background())
	require.ErrorIs(t, err, ErrScanFailed)
	assert.Nil(t, files, "a failed scan must not return a partial listing")
}

func TestScannerDedupesOverlappingRoots(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	child := filepath.Join(root, "child")
	writeAgedFile(t, filepath.Join(root, "a.bin"), 1, time.Hour)
	writeAgedFile(t, filepath.Join(child, "b.bin"), 1, time.Hour)

	scanner := NewScanner([]string{child, root, root + string(filepath.Separator)}, nil)
	assert.Equal(t, []string{filepath.Clean(root)}, scanner.Roots())

	files, err := scanner.ScanAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestScannerSiblingRootsAreNotNested(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	foo := filepath.Join(base, "foo")
	foobar := filepath.Join(base, "foobar")
	writeAgedFile(t, filepath.Join(foo, "a.bin"), 1, time.Hour)
	writeAgedFile(t, filepath.Join(foobar, "b.bin"), 1, time.Hour)

	scanner := NewScanner([]string{foo, foobar}, nil)
	assert.Len(t, scanner.Roots(), 2)

	files, err := scanner.ScanAll(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.bin", "b.bin"}, reportPaths(files))
}

func TestScannerFilesStopsEarly(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, name := range []string{"a.bin", "b.bin", "c.bin"} {
		writeAgedFile(t, filepath.Join(root, name), 1, time.Hour)
	}

	count := 0
	for _, err := range NewScanner([]string{root}, nil).Files(context.Background()) {
		require.NoError(t, err)
		count++
		if count == 1 {
			break
		}
	}
	assert.Equal(t, 1, count)
}

func TestScannerCancelledContextFails(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeAgedFile(t, filepath.Join(root, "a.bin"), 1, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScanner([]string{root}, nil).ScanAll(ctx)
	require.ErrorIs(t, err, ErrScanFailed)
	require.ErrorIs(t, err, context.Canceled)
}
