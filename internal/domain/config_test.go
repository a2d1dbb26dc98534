// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		StorageRoots:        []string{"/srv/blobs/attachments", "/srv/blobs/avatars"},
		SafetyMarginSeconds: 60,
		AuditIntervalHours:  24,
		Collaborators: []CollaboratorConfig{
			{Name: "attachments", Table: "attachments", Column: "local_path"},
			{Name: "avatars", Table: "profiles", Column: "avatar_path", BaseDir: "/srv/blobs/avatars"},
		},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "relative root",
			mutate:  func(c *Config) { c.StorageRoots = append(c.StorageRoots, "blobs") },
			wantErr: "storage root must be absolute",
		},
		{
			name:    "empty root",
			mutate:  func(c *Config) { c.StorageRoots = append(c.StorageRoots, "  ") },
			wantErr: "storageRoots entry is empty",
		},
		{
			name:    "negative margin",
			mutate:  func(c *Config) { c.SafetyMarginSeconds = -1 },
			wantErr: "safetyMarginSeconds",
		},
		{
			name: "collaborator missing column",
			mutate: func(c *Config) {
				c.Collaborators = append(c.Collaborators, CollaboratorConfig{Name: "stickers", Table: "sticker_packs"})
			},
			wantErr: "table and column are required",
		},
		{
			name: "duplicate collaborator",
			mutate: func(c *Config) {
				c.Collaborators = append(c.Collaborators, c.Collaborators[0])
			},
			wantErr: "duplicate name",
		},
		{
			name: "relative base dir",
			mutate: func(c *Config) {
				c.Collaborators[1].BaseDir = "avatars"
			},
			wantErr: "baseDir must be absolute",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigDurations(t *testing.T) {
	cfg := Config{SafetyMarginSeconds: 90, AuditIntervalHours: 12, SchedulerIntervalMinutes: 30}
	assert.Equal(t, 90*time.Second, cfg.SafetyMargin())
	assert.Equal(t, 12*time.Hour, cfg.AuditInterval())
	assert.Equal(t, 30*time.Minute, cfg.SchedulerInterval())
}
