// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package database provides the SQLite record store.
//
// WRITES:
//
// All writes go through one dedicated connection guarded by a mutex. Write
// transactions hold that mutex until Commit or Rollback, so there is never
// more than one writer and SQLITE_BUSY only happens against other processes.
//
// SNAPSHOTS:
//
// The database runs in WAL mode. BeginSnapshot opens a deferred transaction on
// the read pool; SQLite pins the snapshot at its first read, and every later read
// through the same transaction sees that state regardless of concurrent commits.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"

	"github.com/autobrr/blobaudit/internal/dbinterface"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a connection pool for reads and a dedicated connection for writes.
type DB struct {
	path      string
	conn      *sql.DB   // connection pool for reads
	writeConn *sql.Conn // dedicated connection for all writes
	writeMu   sync.Mutex

	closeOnce sync.Once
	closing   atomic.Bool
	closeErr  error
}

// Tx wraps sql.Tx. Write transactions release the writer on Commit or Rollback.
type Tx struct {
	tx      *sql.Tx
	release func()
	once    sync.Once
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// Commit commits the transaction
func (t *Tx) Commit() error {
	defer t.done()
	return t.tx.Commit()
}

// Rollback rolls back the transaction
func (t *Tx) Rollback() error {
	defer t.done()
	return t.tx.Rollback()
}

func (t *Tx) done() {
	t.once.Do(func() {
		if t.release != nil {
			t.release()
		}
	})
}

const (
	defaultBusyTimeout       = 5 * time.Second
	defaultBusyTimeoutMillis = int(defaultBusyTimeout / time.Millisecond)
	connectionSetupTimeout   = 5 * time.Second
)

var errDBClosing = errors.New("db stopping")

var driverInit sync.Once

type pragmaExecFn func(ctx context.Context, stmt string) error

func registerConnectionHook() {
	driverInit.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			ctx, cancel := context.WithTimeout(context.Background(), connectionSetupTimeout)
			defer cancel()

			return applyConnectionPragmas(ctx, func(ctx context.Context, stmt string) error {
				_, err := conn.ExecContext(ctx, stmt, nil)
				if err != nil {
					return fmt.Errorf("connection hook exec %q: %w", stmt, err)
				}
				return nil
			})
		})
	})
}

func applyConnectionPragmas(ctx context.Context, exec pragmaExecFn) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", defaultBusyTimeoutMillis),
	}

	for _, pragma := range pragmas {
		if err := exec(ctx, pragma); err != nil {
			return fmt.Errorf("apply connection pragma %q: %w", pragma, err)
		}
	}

	return nil
}

// New opens (creating if needed) the database at databasePath and applies migrations.
func New(databasePath string) (*DB, error) {
	log.Info().Msgf("Initializing database at: %s", databasePath)

	dir := filepath.Dir(databasePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}

	registerConnectionHook()

	conn, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}

	// Single connection during migrations to prevent stale schema issues
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), connectionSetupTimeout)
	defer cancel()
	if err := applyConnectionPragmas(ctx, func(ctx context.Context, stmt string) error {
		_, execErr := conn.ExecContext(ctx, stmt)
		return execErr
	}); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{
		path: databasePath,
		conn: conn,
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	conn.SetMaxOpenConns(0)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(0)

	writeConn, err := conn.Conn(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to acquire write connection: %w", err)
	}
	db.writeConn = writeConn

	log.Debug().Msgf("Database initialized at: %s", databasePath)
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// isWriteQuery determines if a query is a write operation from its first keyword.
func isWriteQuery(query string) bool {
	q := strings.TrimLeftFunc(query, unicode.IsSpace)
	if q == "" {
		return false
	}

	upper := strings.ToUpper(q)
	return strings.HasPrefix(upper, "INSERT") ||
		strings.HasPrefix(upper, "UPDATE") ||
		strings.HasPrefix(upper, "UPSERT") ||
		strings.HasPrefix(upper, "REPLACE") ||
		strings.HasPrefix(upper, "DELETE") ||
		strings.HasPrefix(upper, "CREATE") ||
		strings.HasPrefix(upper, "DROP") ||
		strings.HasPrefix(upper, "ALTER")
}

// ExecContext routes write queries through the dedicated writer connection.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if !isWriteQuery(query) {
		return db.conn.ExecContext(ctx, query, args...)
	}

	if db.closing.Load() {
		return nil, errDBClosing
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	recordWriteQuery()
	return db.writeConn.ExecContext(ctx, query, args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, query, args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.conn.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction. Read-only transactions use the pool; write
// transactions take the writer until Commit or Rollback.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (dbinterface.TxQuerier, error) {
	if opts != nil && opts.ReadOnly {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		return &Tx{tx: tx}, nil
	}

	if db.closing.Load() {
		return nil, errDBClosing
	}

	db.writeMu.Lock()
	tx, err := db.writeConn.BeginTx(ctx, opts)
	if err != nil {
		db.writeMu.Unlock()
		return nil, err
	}
	recordWriteTx()
	return &Tx{tx: tx, release: db.writeMu.Unlock}, nil
}

// BeginSnapshot opens a read snapshot of the record store.
func (db *DB) BeginSnapshot(ctx context.Context) (dbinterface.Snapshot, error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	recordSnapshot()
	return tx, nil
}

// Close closes the database.
func (db *DB) Close() error {
	db.closeOnce.Do(func() {
		db.closing.Store(true)

		ctx, cancel := context.WithTimeout(context.Background(), connectionSetupTimeout)
		defer cancel()
		if _, err := db.conn.ExecContext(ctx, "PRAGMA optimize"); err != nil {
			log.Warn().Err(err).Msg("failed to run PRAGMA optimize during close")
		}

		db.writeMu.Lock()
		if db.writeConn != nil {
			if err := db.writeConn.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close write connection")
			}
		}
		db.writeMu.Unlock()

		db.closeErr = db.conn.Close()
	})

	return db.closeErr
}

// Conn returns the underlying connection pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) migrate() error {
	ctx := context.Background()

	if _, err := db.conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".sql" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	pending, err := db.findPendingMigrations(ctx, files)
	if err != nil {
		return fmt.Errorf("failed to find pending migrations: %w", err)
	}

	if len(pending) == 0 {
		log.Debug().Msg("No pending migrations")
		return nil
	}

	return db.applyAllMigrations(ctx, pending)
}

func (db *DB) findPendingMigrations(ctx context.Context, allFiles []string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT filename FROM migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			return nil, fmt.Errorf("failed to scan migration filename: %w", err)
		}
		applied[filename] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var pending []string
	for _, f := range allFiles {
		if _, ok := applied[f]; !ok {
			pending = append(pending, f)
		}
	}
	return pending, nil
}

func (db *DB) applyAllMigrations(ctx context.Context, migrations []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	for _, filename := range migrations {
		content, err := migrationsFS.ReadFile("migrations/" + filename)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}

		if _, err := tx.ExecContext(ctx, "INSERT INTO migrations (filename) VALUES (?)", filename); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", filename, err)
		}

		log.Info().Msgf("Applied migration: %s", filename)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}
	return nil
}
