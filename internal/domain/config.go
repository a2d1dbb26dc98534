// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Version       string `toml:"appVersion" mapstructure:"appVersion"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`
	DatabasePath  string `toml:"databasePath" mapstructure:"databasePath"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`

	MetricsEnabled bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost    string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort    int    `toml:"metricsPort" mapstructure:"metricsPort"`

	// MetricsBasicAuthUsers is a comma separated list of user:password pairs.
	MetricsBasicAuthUsers string `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers"`

	// StorageRoots are the blob directories that are scanned for orphans.
	StorageRoots []string `toml:"storageRoots" mapstructure:"storageRoots"`

	// IgnorePatterns use gitignore syntax, evaluated relative to each storage root.
	IgnorePatterns []string `toml:"ignorePatterns" mapstructure:"ignorePatterns"`

	// SafetyMarginSeconds: files modified later than audit start minus this margin are never deleted.
	SafetyMarginSeconds      int `toml:"safetyMarginSeconds" mapstructure:"safetyMarginSeconds"`
	AuditIntervalHours       int `toml:"auditIntervalHours" mapstructure:"auditIntervalHours"`
	SchedulerIntervalMinutes int `toml:"schedulerIntervalMinutes" mapstructure:"schedulerIntervalMinutes"`
	CollectConcurrency       int `toml:"collectConcurrency" mapstructure:"collectConcurrency"`

	Collaborators []CollaboratorConfig `toml:"collaborators" mapstructure:"collaborators"`
}

// CollaboratorConfig describes a record table whose column holds referenced file paths.
type CollaboratorConfig struct {
	Name   string `toml:"name" mapstructure:"name"`
	Table  string `toml:"table" mapstructure:"table"`
	Column string `toml:"column" mapstructure:"column"`
	// BaseDir resolves relative paths stored in the column. Optional.
	BaseDir string `toml:"baseDir" mapstructure:"baseDir"`
}

func (c *Config) SafetyMargin() time.Duration {
	return time.Duration(c.SafetyMarginSeconds) * time.Second
}

func (c *Config) AuditInterval() time.Duration {
	return time.Duration(c.AuditIntervalHours) * time.Hour
}

func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.SchedulerIntervalMinutes) * time.Minute
}

// Validate checks settings the engine cannot run safely without.
func (c *Config) Validate() error {
	var errs []error

	for _, root := range c.StorageRoots {
		if strings.TrimSpace(root) == "" {
			errs = append(errs, errors.New("storageRoots entry is empty"))
			continue
		}
		if !filepath.IsAbs(root) {
			errs = append(errs, fmt.Errorf("storage root must be absolute: %s", root))
		}
	}

	if c.SafetyMarginSeconds < 0 {
		errs = append(errs, fmt.Errorf("safetyMarginSeconds must be >= 0, got %d", c.SafetyMarginSeconds))
	}
	if c.AuditIntervalHours < 0 {
		errs = append(errs, fmt.Errorf("auditIntervalHours must be >= 0, got %d", c.AuditIntervalHours))
	}

	seen := make(map[string]struct{}, len(c.Collaborators))
	for i, collab := range c.Collaborators {
		if strings.TrimSpace(collab.Name) == "" {
			errs = append(errs, fmt.Errorf("collaborators[%d]: name is required", i))
		}
		if strings.TrimSpace(collab.Table) == "" || strings.TrimSpace(collab.Column) == "" {
			errs = append(errs, fmt.Errorf("collaborators[%d]: table and column are required", i))
		}
		if collab.BaseDir != "" && !filepath.IsAbs(collab.BaseDir) {
			errs = append(errs, fmt.Errorf("collaborators[%d]: baseDir must be absolute: %s", i, collab.BaseDir))
		}
		if _, dup := seen[collab.Name]; dup {
			errs = append(errs, fmt.Errorf("collaborators[%d]: duplicate name %q", i, collab.Name))
		}
		seen[collab.Name] = struct{}{}
	}

	return errors.Join(errs...)
}
