// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphandata

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/blobaudit/pkg/pathcmp"
)

// Remover deletes a single file.
type Remover interface {
	Remove(name string) error
}

type osRemover struct{}

func (osRemover) Remove(name string) error {
	return os.Remove(name)
}

// CleanupResult summarizes one cleanup pass. With Committed false, Deleted
// lists what would have been removed and nothing was touched.
type CleanupResult struct {
	Committed    bool              `json:"committed"`
	Deleted      []DiskFile        `json:"deleted"`
	DeletedCount int               `json:"deletedCount"`
	DeletedBytes int64             `json:"deletedBytes"`
	SkippedRace  []DiskFile        `json:"skippedRace"`
	Failures     []DeletionFailure `json:"-"`
}

// FailureCount returns the number of orphans that could not be removed.
func (r *CleanupResult) FailureCount() int {
	if r == nil {
		return 0
	}
	return len(r.Failures)
}

// Executor applies the race guard and removes orphans.
type Executor struct {
	roots   []string
	margin  time.Duration
	remover Remover
	lstat   func(string) (os.FileInfo, error)
}

// NewExecutor creates an executor that only deletes inside roots.
func NewExecutor(roots []string, margin time.Duration, remover Remover) *Executor {
	if margin < 0 {
		margin = 0
	}
	if remover == nil {
		remover = osRemover{}
	}

	canonical := make([]string, 0, len(roots))
	for _, r := range roots {
		if r != "" {
			canonical = append(canonical, pathcmp.Canonical(r))
		}
	}

	return &Executor{
		roots:   canonical,
		margin:  margin,
		remover: remover,
		lstat:   os.Lstat,
	}
}

// Cutoff returns the newest modification time an orphan may have and still be deleted.
func (e *Executor) Cutoff(startedAt time.Time) time.Time {
	return startedAt.Add(-e.margin)
}

// Cleanup deletes every orphan in report whose modification time is strictly
// before the cutoff. Orphans at or after it are skipped. Individual failures
// are collected and never stop the batch. With commit false nothing is removed.
func (e *Executor) Cleanup(report *AuditReport, commit bool) *CleanupResult {
	result := &CleanupResult{
		Committed:   commit,
		Deleted:     []DiskFile{},
		SkippedRace: []DiskFile{},
	}
	if report == nil {
		return result
	}

	cutoff := e.Cutoff(report.StartedAt)

	for _, f := range report.Orphaned {
		if !f.ModifiedAt.Before(cutoff) {
			result.SkippedRace = append(result.SkippedRace, f)
			continue
		}

		if !commit {
			result.Deleted = append(result.Deleted, f)
			result.DeletedCount++
			result.DeletedBytes += f.Size
			continue
		}

		disposition, err := e.deleteFile(f, cutoff)
		switch {
		case err != nil:
			failure := DeletionFailure{Path: f.OSPath, Err: err}
			result.Failures = append(result.Failures, failure)
			if isReadOnlyFSError(err) {
				log.Warn().Err(err).Str("path", f.OSPath).Msg("orphandata: filesystem is read-only, cannot delete orphan")
			} else {
				log.Warn().Err(err).Str("path", f.OSPath).Msg("orphandata: failed to delete orphan")
			}
		case disposition == deleteDispositionSkippedRace:
			result.SkippedRace = append(result.SkippedRace, f)
		default:
			result.Deleted = append(result.Deleted, f)
			result.DeletedCount++
			result.DeletedBytes += f.Size
		}
	}

	return result
}

type deleteDisposition int

const (
	deleteDispositionDeleted deleteDisposition = iota
	deleteDispositionSkippedRace
)

// deleteFile removes a single orphan with safety checks. It re-stats the file
// so a write that landed after the scan is still caught. Never removes directories.
func (e *Executor) deleteFile(f DiskFile, cutoff time.Time) (deleteDisposition, error) {
	if err := e.validateDeleteTarget(f); err != nil {
		return 0, err
	}

	info, err := e.lstat(f.OSPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("already gone: %w", err)
		}
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("refusing to delete directory as file: %s", f.OSPath)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("refusing to delete non-regular file: %s", f.OSPath)
	}
	if !info.ModTime().Before(cutoff) {
		return deleteDispositionSkippedRace, nil
	}

	if err := e.remover.Remove(f.OSPath); err != nil {
		return 0, err
	}
	return deleteDispositionDeleted, nil
}

// validateDeleteTarget checks that target is absolute and strictly inside a storage root.
func (e *Executor) validateDeleteTarget(f DiskFile) error {
	if !filepath.IsAbs(f.OSPath) {
		return fmt.Errorf("refusing non-absolute path: %s", f.OSPath)
	}

	target := pathcmp.Canonical(f.OSPath)
	if target != string(f.Path) {
		return fmt.Errorf("path does not match scanned file: %s", f.OSPath)
	}

	root := pathcmp.Longest(target, e.roots)
	if root == "" {
		return fmt.Errorf("path escapes storage roots: %s", f.OSPath)
	}
	if target == root {
		return fmt.Errorf("refusing to delete storage root: %s", root)
	}
	return nil
}
