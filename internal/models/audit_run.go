// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/autobrr/blobaudit/internal/dbinterface"
)

const (
	AuditModeDryRun  = "dry_run"
	AuditModeCleanup = "cleanup"

	AuditOutcomeSucceeded      = "succeeded"
	AuditOutcomePartialFailure = "partial_failure"
	AuditOutcomeAborted        = "aborted"
)

var (
	ErrAuditRunExists  = errors.New("audit run already recorded")
	ErrInvalidAuditRun = errors.New("invalid audit run")
)

// AuditRun is one finished audit as kept in history.
type AuditRun struct {
	ID                  int64     `json:"id"`
	AuditID             string    `json:"auditId"`
	Mode                string    `json:"mode"`
	Outcome             string    `json:"outcome"`
	TriggeredBy         string    `json:"triggeredBy"`
	FilesScanned        int       `json:"filesScanned"`
	ReferencesCollected int       `json:"referencesCollected"`
	OrphansFound        int       `json:"orphansFound"`
	OrphanBytes         int64     `json:"orphanBytes"`
	DanglingFound       int       `json:"danglingFound"`
	FilesDeleted        int       `json:"filesDeleted"`
	BytesReclaimed      int64     `json:"bytesReclaimed"`
	SkippedRace         int       `json:"skippedRace"`
	FailedDeletes       int       `json:"failedDeletes"`
	ErrorMessage        string    `json:"errorMessage,omitempty"`
	StartedAt           time.Time `json:"startedAt"`
	CompletedAt         time.Time `json:"completedAt"`
}

// AuditRunStore handles database operations for audit history.
type AuditRunStore struct {
	db dbinterface.Querier
}

func NewAuditRunStore(db dbinterface.Querier) *AuditRunStore {
	return &AuditRunStore{db: db}
}

// Insert appends a finished audit and sets run.ID.
func (s *AuditRunStore) Insert(ctx context.Context, run *AuditRun) error {
	if run == nil {
		return errors.New("audit run is nil")
	}

	triggeredBy := run.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "manual"
	}

	var errorMessage sql.NullString
	if run.ErrorMessage != "" {
		errorMessage = sql.NullString{String: run.ErrorMessage, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_runs (
			audit_id, mode, outcome, triggered_by, files_scanned, references_collected,
			orphans_found, orphan_bytes, dangling_found, files_deleted, bytes_reclaimed,
			skipped_race, failed_deletes, error_message, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.AuditID, run.Mode, run.Outcome, triggeredBy, run.FilesScanned, run.ReferencesCollected,
		run.OrphansFound, run.OrphanBytes, run.DanglingFound, run.FilesDeleted, run.BytesReclaimed,
		run.SkippedRace, run.FailedDeletes, errorMessage, run.StartedAt.UTC(), run.CompletedAt.UTC(),
	)
	if err != nil {
		switch {
		case isUniqueConstraintError(err):
			return fmt.Errorf("%w: %s", ErrAuditRunExists, run.AuditID)
		case isCheckConstraintError(err):
			return fmt.Errorf("%w: mode=%q outcome=%q", ErrInvalidAuditRun, run.Mode, run.Outcome)
		}
		return fmt.Errorf("insert audit run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("audit run id: %w", err)
	}
	run.ID = id
	run.TriggeredBy = triggeredBy
	return nil
}

const auditRunColumns = `
	id, audit_id, mode, outcome, triggered_by, files_scanned, references_collected,
	orphans_found, orphan_bytes, dangling_found, files_deleted, bytes_reclaimed,
	skipped_race, failed_deletes, error_message, started_at, completed_at`

// ListRecent returns up to limit runs, newest first.
func (s *AuditRunStore) ListRecent(ctx context.Context, limit int) ([]*AuditRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+auditRunColumns+`
		FROM audit_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit runs: %w", err)
	}
	defer rows.Close()

	var runs []*AuditRun
	for rows.Next() {
		run, err := scanAuditRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetLast returns the most recent run, or nil if there is none.
func (s *AuditRunStore) GetLast(ctx context.Context) (*AuditRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+auditRunColumns+`
		FROM audit_runs
		ORDER BY started_at DESC, id DESC
		LIMIT 1`)

	run, err := scanAuditRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditRun(row rowScanner) (*AuditRun, error) {
	var (
		run          AuditRun
		errorMessage sql.NullString
	)

	err := row.Scan(
		&run.ID,
		&run.AuditID,
		&run.Mode,
		&run.Outcome,
		&run.TriggeredBy,
		&run.FilesScanned,
		&run.ReferencesCollected,
		&run.OrphansFound,
		&run.OrphanBytes,
		&run.DanglingFound,
		&run.FilesDeleted,
		&run.BytesReclaimed,
		&run.SkippedRace,
		&run.FailedDeletes,
		&errorMessage,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if errorMessage.Valid {
		run.ErrorMessage = errorMessage.String
	}
	return &run, nil
}
