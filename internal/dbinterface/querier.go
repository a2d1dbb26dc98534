// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package dbinterface provides database interfaces to avoid import cycles.
// This package has no dependencies and can be imported by both database
// implementations and models/stores.
package dbinterface

import (
	"context"
	"database/sql"
)

// Querier is the centralized interface for database operations.
// It is implemented by *sql.DB, *sql.Tx, and *database.DB.
// This allows stores and collaborators to accept any of these types
// and enables transaction support without code duplication.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// TxQuerier is a Querier bound to an open transaction.
type TxQuerier interface {
	Querier
	Commit() error
	Rollback() error
}

// TxBeginner is an interface for types that can begin transactions.
// It is implemented by *database.DB.
type TxBeginner interface {
	Querier
	BeginTx(ctx context.Context, opts *sql.TxOptions) (TxQuerier, error)
}

// Snapshot is a read-only view of the record store. Every read made through
// the same Snapshot observes the same committed state. Release it with Rollback.
type Snapshot interface {
	Querier
	Rollback() error
}

// SnapshotSource opens read snapshots.
type SnapshotSource interface {
	BeginSnapshot(ctx context.Context) (Snapshot, error)
}
