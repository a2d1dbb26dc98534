// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphandata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/rs/zerolog/log"
)

// Persisted CleaningState keys.
const (
	LastCleaningVersionKey = "OrphanDataCleaner_LastCleaningVersion"
	LastCleaningDateKey    = "OrphanDataCleaner_LastCleaningDate"
)

// StateStore is process-wide keyed string storage. SetMany and Delete must be atomic.
type StateStore interface {
	GetMany(ctx context.Context, keys ...string) (map[string]string, error)
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// CleaningState is the marker left by the last successful cleanup audit.
type CleaningState struct {
	LastCleaningVersion string    `json:"lastCleaningVersion"`
	LastCleaningDate    time.Time `json:"lastCleaningDate"`
	// Present is false when no cleanup audit has ever completed.
	Present bool `json:"present"`
}

// Scheduler throttles full audits using the persisted CleaningState.
type Scheduler struct {
	store    StateStore
	interval time.Duration
	now      func() time.Time
}

// NewScheduler creates a scheduler. An interval <= 0 disables time-based
// triggering; version changes still trigger.
func NewScheduler(store StateStore, interval time.Duration) *Scheduler {
	return &Scheduler{
		store:    store,
		interval: interval,
		now:      time.Now,
	}
}

// State reads the persisted CleaningState. An unparseable date is returned as the zero time.
func (s *Scheduler) State(ctx context.Context) (CleaningState, error) {
	values, err := s.store.GetMany(ctx, LastCleaningVersionKey, LastCleaningDateKey)
	if err != nil {
		return CleaningState{}, fmt.Errorf("read cleaning state: %w", err)
	}

	state := CleaningState{}
	ver, hasVersion := values[LastCleaningVersionKey]
	date, hasDate := values[LastCleaningDateKey]
	if !hasVersion && !hasDate {
		return state, nil
	}

	state.Present = true
	state.LastCleaningVersion = ver
	if hasDate {
		if t, err := time.Parse(time.RFC3339Nano, date); err == nil {
			state.LastCleaningDate = t
		} else {
			log.Warn().Str("value", date).Msg("orphandata: unparseable last cleaning date")
		}
	}
	return state, nil
}

// ShouldRunFullAudit reports whether a full audit is due. force always runs.
// Otherwise it runs when no audit has completed yet, when currentVersion
// differs from the recorded one, or when more than the interval has passed.
func (s *Scheduler) ShouldRunFullAudit(ctx context.Context, currentVersion string, force bool) (bool, error) {
	if force {
		return true, nil
	}

	state, err := s.State(ctx)
	if err != nil {
		return false, err
	}

	if !state.Present {
		return true, nil
	}
	if prev := strings.TrimSpace(state.LastCleaningVersion); prev != strings.TrimSpace(currentVersion) {
		log.Debug().
			Str("previous", prev).
			Str("current", currentVersion).
			Str("change", versionChange(prev, currentVersion)).
			Msg("orphandata: app version changed since last cleaning")
		return true, nil
	}
	if s.interval <= 0 {
		return false, nil
	}
	if state.LastCleaningDate.IsZero() {
		return true, nil
	}

	now := s.now()
	// A date in the future means the clock moved backwards; don't let it stall audits.
	if state.LastCleaningDate.After(now) {
		return true, nil
	}
	return now.Sub(state.LastCleaningDate) > s.interval, nil
}

// MarkCleaningComplete records version and date together in one write.
func (s *Scheduler) MarkCleaningComplete(ctx context.Context, currentVersion string, now time.Time) error {
	if err := s.store.SetMany(ctx, map[string]string{
		LastCleaningVersionKey: currentVersion,
		LastCleaningDateKey:    now.UTC().Format(time.RFC3339Nano),
	}); err != nil {
		return fmt.Errorf("write cleaning state: %w", err)
	}
	return nil
}

// Reset clears the persisted state so the next check always runs.
func (s *Scheduler) Reset(ctx context.Context) error {
	if err := s.store.Delete(ctx, LastCleaningVersionKey, LastCleaningDateKey); err != nil {
		return fmt.Errorf("reset cleaning state: %w", err)
	}
	return nil
}

// versionChange describes how prev moved to cur: "upgrade", "downgrade",
// "rebuild" (same precedence, different build metadata or spelling) or
// "unknown" when either side is not a version.
func versionChange(prev, cur string) string {
	vp, errP := version.NewVersion(strings.TrimSpace(prev))
	vc, errC := version.NewVersion(strings.TrimSpace(cur))
	if errP != nil || errC != nil {
		return "unknown"
	}

	switch vc.Compare(vp) {
	case 1:
		return "upgrade"
	case -1:
		return "downgrade"
	default:
		return "rebuild"
	}
}
