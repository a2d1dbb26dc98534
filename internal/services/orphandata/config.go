// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphandata

import (
	"time"

	"github.com/autobrr/blobaudit/internal/domain"
)

const (
	// DefaultSafetyMargin is subtracted from the audit start time; orphans modified
	// after the result are presumed to be in-flight writes.
	DefaultSafetyMargin = 60 * time.Second

	defaultCollectConcurrency = 4
)

// Config holds the engine configuration.
type Config struct {
	// StorageRoots are absolute directories scanned for blob files.
	StorageRoots []string

	// IgnorePatterns use gitignore syntax relative to each storage root.
	IgnorePatterns []string

	// ProtectedPaths are engine-owned files that are never reported or deleted
	// even when they live inside a storage root.
	ProtectedPaths []string

	SafetyMargin time.Duration

	// AuditInterval is the minimum time between scheduled audits. Zero disables
	// time-based scheduling; version changes still trigger.
	AuditInterval time.Duration

	// SchedulerInterval is how often Start re-evaluates whether an audit is due.
	SchedulerInterval time.Duration

	CollectConcurrency int

	// AppVersion is recorded after each cleanup audit.
	AppVersion string

	// LockPath is the cross-process audit lock file. Empty disables the file lock.
	LockPath string
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		SafetyMargin:       DefaultSafetyMargin,
		AuditInterval:      24 * time.Hour,
		SchedulerInterval:  time.Hour,
		CollectConcurrency: defaultCollectConcurrency,
	}
}

// ConfigFromDomain maps the application config onto the engine config.
func ConfigFromDomain(cfg *domain.Config, lockPath string, protected ...string) Config {
	c := DefaultConfig()
	c.StorageRoots = append([]string(nil), cfg.StorageRoots...)
	c.IgnorePatterns = append([]string(nil), cfg.IgnorePatterns...)
	c.SafetyMargin = cfg.SafetyMargin()
	c.AuditInterval = cfg.AuditInterval()
	if cfg.SchedulerIntervalMinutes > 0 {
		c.SchedulerInterval = cfg.SchedulerInterval()
	}
	if cfg.CollectConcurrency > 0 {
		c.CollectConcurrency = cfg.CollectConcurrency
	}
	c.AppVersion = cfg.Version
	c.LockPath = lockPath

	if lockPath != "" {
		c.ProtectedPaths = append(c.ProtectedPaths, lockPath)
	}
	c.ProtectedPaths = append(c.ProtectedPaths, protected...)
	return c
}

// SQLiteSidecars returns dbPath together with the journal files SQLite keeps next to it.
func SQLiteSidecars(dbPath string) []string {
	if dbPath == "" {
		return nil
	}
	return []string{dbPath, dbPath + "-wal", dbPath + "-shm", dbPath + "-journal"}
}
