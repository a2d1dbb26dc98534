// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphandata

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/autobrr/blobaudit/internal/database"
	"github.com/autobrr/blobaudit/internal/dbinterface"
)

type staticCollaborator struct {
	name  string
	paths []string
	err   error
}

func (c staticCollaborator) Name() string { return c.name }

func (c staticCollaborator) ListLiveFilePaths(context.Context, dbinterface.Querier) ([]string, error) {
	return c.paths, c.err
}

// blockingCollaborator holds collection open until release is closed.
type blockingCollaborator struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingCollaborator() *blockingCollaborator {
	return &blockingCollaborator{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (c *blockingCollaborator) Name() string { return "blocking" }

func (c *blockingCollaborator) ListLiveFilePaths(ctx context.Context, _ dbinterface.Querier) ([]string, error) {
	c.once.Do(func() { close(c.started) })
	select {
	case <-c.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return nil, nil
}

type memStateStore struct {
	mu       sync.Mutex
	values   map[string]string
	setCalls int
	err      error
}

func newMemStateStore() *memStateStore {
	return &memStateStore{values: make(map[string]string)}
}

func (m *memStateStore) GetMany(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string)
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memStateStore) SetMany(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.setCalls++
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

func (m *memStateStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memStateStore) snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// recordingRemover counts removals and optionally fails some paths.
type recordingRemover struct {
	mu      sync.Mutex
	removed []string
	fail    map[string]error
}

func (r *recordingRemover) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.fail[name]; ok {
		return err
	}
	r.removed = append(r.removed, name)
	return os.Remove(name)
}

// writeAgedFile creates path with content and sets its mtime to now-age.
func writeAgedFile(t *testing.T, path string, size int, age time.Duration) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func waitResult(t *testing.T, task *AuditTask) Result {
	t.Helper()
	require.NotNil(t, task)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := task.Wait(ctx)
	require.NoError(t, err, "audit did not finish")
	return res
}

func reportPaths(files []DiskFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.Base(f.OSPath)
	}
	return out
}
