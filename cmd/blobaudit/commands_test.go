// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/blobaudit/internal/database"
)

type fixture struct {
	configDir string
	root      string
	kept      string
	orphan    string
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	f := fixture{
		configDir: filepath.Join(t.TempDir(), "config"),
		root:      t.TempDir(),
	}
	require.NoError(t, os.MkdirAll(f.configDir, 0o755))

	f.kept = writeAgedFile(t, filepath.Join(f.root, "kept.bin"), 48*time.Hour)
	f.orphan = writeAgedFile(t, filepath.Join(f.root, "nested", "orphan.bin"), 48*time.Hour)

	cfg := fmt.Sprintf(`
appVersion = "1.2.3"
dataDir = '%s'
storageRoots = ['%s']
logLevel = "ERROR"

[[collaborators]]
name = "attachments"
table = "attachments"
column = "path"
`, f.configDir, f.root)
	require.NoError(t, os.WriteFile(filepath.Join(f.configDir, "config.toml"), []byte(cfg), 0o644))

	db, err := database.New(filepath.Join(f.configDir, "blobaudit.db"))
	require.NoError(t, err)
	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TABLE attachments (id INTEGER PRIMARY KEY, path TEXT)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO attachments (path) VALUES (?), (?), (NULL)`,
		f.kept, filepath.Join(f.root, "missing.bin"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	return f
}

func writeAgedFile(t *testing.T, path string, age time.Duration) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("blob"), 0o644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func runCommand(args ...string) (string, error) {
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func mustRunCommand(t *testing.T, args ...string) string {
	t.Helper()
	output, err := runCommand(args...)
	require.NoError(t, err, output)
	return output
}

func TestAuditCommandDryRunThenCleanup(t *testing.T) {
	f := newFixture(t)

	output := mustRunCommand(t, "audit", "--config", f.configDir)
	assert.Contains(t, output, "(dry run): succeeded")
	assert.Contains(t, output, "Would delete: 1")
	assert.Contains(t, output, "Dangling references: 1")
	assert.FileExists(t, f.orphan)

	output = mustRunCommand(t, "state", "show", "--config", f.configDir)
	assert.Contains(t, output, "No cleaning recorded yet")
	assert.Contains(t, output, "Audit due: true")

	output = mustRunCommand(t, "audit", "--cleanup", "--config", f.configDir)
	assert.Contains(t, output, "(cleanup): succeeded")
	assert.Contains(t, output, "Deleted: 1")
	assert.NoFileExists(t, f.orphan)
	assert.FileExists(t, f.kept)

	output = mustRunCommand(t, "state", "show", "--config", f.configDir)
	assert.Contains(t, output, "Last cleaning version: 1.2.3")
	assert.Contains(t, output, "Audit due: false")

	output = mustRunCommand(t, "history", "--config", f.configDir)
	assert.Contains(t, output, "cleanup")
	assert.Contains(t, output, "dry_run")
	assert.Contains(t, output, "by=cli")

	mustRunCommand(t, "state", "reset", "--config", f.configDir)
	output = mustRunCommand(t, "state", "show", "--config", f.configDir)
	assert.Contains(t, output, "Audit due: true")
}

func TestAuditCommandJSON(t *testing.T) {
	f := newFixture(t)

	output := mustRunCommand(t, "audit", "--json", "--config", f.configDir)

	var out auditOutput
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	assert.Equal(t, "dry run", out.Mode)
	assert.Equal(t, "succeeded", out.Outcome)
	assert.False(t, out.Committed)
	require.Len(t, out.Deleted, 1)
	assert.Equal(t, "orphan.bin", filepath.Base(out.Deleted[0].Path))
	assert.Len(t, out.Dangling, 1)
	assert.Equal(t, 2, out.Scanned)
}

func TestAuditCommandAbortsOnMissingTable(t *testing.T) {
	f := newFixture(t)

	cfgPath := filepath.Join(f.configDir, "config.toml")
	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	data = append(data, []byte("\n[[collaborators]]\nname = \"avatars\"\ntable = \"avatars\"\ncolumn = \"path\"\n")...)
	require.NoError(t, os.WriteFile(cfgPath, data, 0o644))

	output, err := runCommand("audit", "--cleanup", "--config", f.configDir)
	require.Error(t, err)
	assert.Contains(t, output, "aborted")
	assert.FileExists(t, f.orphan)
}

func TestHistoryCommandEmpty(t *testing.T) {
	f := newFixture(t)

	output := mustRunCommand(t, "history", "--config", f.configDir)
	assert.Contains(t, output, "No audits recorded")

	output = mustRunCommand(t, "history", "--json", "--config", f.configDir)
	assert.JSONEq(t, "[]", output)
}

func TestVersionCommand(t *testing.T) {
	output := mustRunCommand(t, "version")
	assert.Contains(t, output, "Version:")
}
