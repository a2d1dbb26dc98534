// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValueStoreGetMissing(t *testing.T) {
	store := NewKeyValueStore(newTestDB(t))

	value, ok, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestKeyValueStoreSetManyAndGetMany(t *testing.T) {
	ctx := context.Background()
	store := NewKeyValueStore(newTestDB(t))

	require.NoError(t, store.SetMany(ctx, map[string]string{
		"OrphanDataCleaner_LastCleaningVersion": "1.0.0",
		"OrphanDataCleaner_LastCleaningDate":    "2026-01-02T03:04:05Z",
	}))

	got, err := store.GetMany(ctx, "OrphanDataCleaner_LastCleaningVersion", "OrphanDataCleaner_LastCleaningDate", "other")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"OrphanDataCleaner_LastCleaningVersion": "1.0.0",
		"OrphanDataCleaner_LastCleaningDate":    "2026-01-02T03:04:05Z",
	}, got)

	// Overwrite keeps a single row per key.
	require.NoError(t, store.SetMany(ctx, map[string]string{"OrphanDataCleaner_LastCleaningVersion": "1.1.0"}))
	value, ok, err := store.Get(ctx, "OrphanDataCleaner_LastCleaningVersion")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1.1.0", value)
}

func TestKeyValueStoreGetManyEmpty(t *testing.T) {
	store := NewKeyValueStore(newTestDB(t))

	got, err := store.GetMany(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKeyValueStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewKeyValueStore(newTestDB(t))

	require.NoError(t, store.SetMany(ctx, map[string]string{"a": "1", "b": "2", "c": "3"}))
	require.NoError(t, store.Delete(ctx, "a", "b", "missing"))

	got, err := store.GetMany(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"c": "3"}, got)
}

func TestIsDatabaseBusy(t *testing.T) {
	assert.False(t, isDatabaseBusy(nil))
	assert.False(t, isDatabaseBusy(errors.New("no such table: key_value_store")))
	assert.True(t, isDatabaseBusy(fmt.Errorf("set key: %w", errors.New("database is locked (5) (SQLITE_BUSY)"))))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
}
