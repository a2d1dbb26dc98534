// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRunStoreGetLastEmpty(t *testing.T) {
	store := NewAuditRunStore(newTestDB(t))

	run, err := store.GetLast(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestAuditRunStoreInsertAndList(t *testing.T) {
	ctx := context.Background()
	store := NewAuditRunStore(newTestDB(t))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := &AuditRun{
		AuditID:      "a1",
		Mode:         AuditModeDryRun,
		Outcome:      AuditOutcomeSucceeded,
		FilesScanned: 10,
		OrphansFound: 2,
		OrphanBytes:  2048,
		StartedAt:    base,
		CompletedAt:  base.Add(time.Second),
	}
	second := &AuditRun{
		AuditID:        "a2",
		Mode:           AuditModeCleanup,
		Outcome:        AuditOutcomePartialFailure,
		TriggeredBy:    "scheduler",
		FilesDeleted:   1,
		BytesReclaimed: 1024,
		FailedDeletes:  1,
		ErrorMessage:   "1 deletion failed",
		StartedAt:      base.Add(time.Hour),
		CompletedAt:    base.Add(time.Hour + time.Second),
	}

	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, second))
	assert.NotZero(t, first.ID)
	assert.Equal(t, "manual", first.TriggeredBy)

	runs, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a2", runs[0].AuditID)
	assert.Equal(t, "a1", runs[1].AuditID)

	latest := runs[0]
	assert.Equal(t, AuditModeCleanup, latest.Mode)
	assert.Equal(t, AuditOutcomePartialFailure, latest.Outcome)
	assert.Equal(t, "scheduler", latest.TriggeredBy)
	assert.Equal(t, 1, latest.FailedDeletes)
	assert.Equal(t, int64(1024), latest.BytesReclaimed)
	assert.Equal(t, "1 deletion failed", latest.ErrorMessage)
	assert.True(t, latest.StartedAt.Equal(second.StartedAt))

	assert.Empty(t, runs[1].ErrorMessage)

	last, err := store.GetLast(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "a2", last.AuditID)

	limited, err := store.ListRecent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestAuditRunStoreRejectsUnknownOutcome(t *testing.T) {
	store := NewAuditRunStore(newTestDB(t))

	now := time.Now()
	err := store.Insert(context.Background(), &AuditRun{
		AuditID:     "bad",
		Mode:        AuditModeCleanup,
		Outcome:     "exploded",
		StartedAt:   now,
		CompletedAt: now,
	})
	require.ErrorIs(t, err, ErrInvalidAuditRun)
}

func TestAuditRunStoreRejectsDuplicateAuditID(t *testing.T) {
	store := NewAuditRunStore(newTestDB(t))
	ctx := context.Background()

	now := time.Now()
	run := func() *AuditRun {
		return &AuditRun{
			AuditID:     "same",
			Mode:        AuditModeDryRun,
			Outcome:     AuditOutcomeSucceeded,
			StartedAt:   now,
			CompletedAt: now,
		}
	}

	require.NoError(t, store.Insert(ctx, run()))
	err := store.Insert(ctx, run())
	require.ErrorIs(t, err, ErrAuditRunExists)
}
