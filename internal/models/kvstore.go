// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go"

	"github.com/autobrr/blobaudit/internal/dbinterface"
)

// KeyValueStore is process-wide keyed string storage backed by key_value_store.
// Multi-key writes are applied in one transaction so readers never see half of them.
type KeyValueStore struct {
	db dbinterface.TxBeginner
}

func NewKeyValueStore(db dbinterface.TxBeginner) *KeyValueStore {
	return &KeyValueStore{db: db}
}

// Get returns the value for key and whether it was present.
func (s *KeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM key_value_store WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// GetMany returns the present subset of keys, read in one transaction.
func (s *KeyValueStore) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback()

	query := "SELECT key, value FROM key_value_store WHERE key IN (" + placeholders(len(keys)) + ")"
	rows, err := tx.QueryContext(ctx, query, toArgs(keys)...)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SetMany writes every pair atomically. Lock contention from another process is retried.
func (s *KeyValueStore) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return retry.Do(func() error {
		return s.setMany(ctx, keys, values)
	}, databaseRetryOptions(ctx)...)
}

func (s *KeyValueStore) setMany(ctx context.Context, keys []string, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO key_value_store (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, k, values[k], now); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// Delete removes keys atomically. Missing keys are not an error.
func (s *KeyValueStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return retry.Do(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin write: %w", err)
		}
		defer tx.Rollback()

		query := "DELETE FROM key_value_store WHERE key IN (" + placeholders(len(keys)) + ")"
		if _, err := tx.ExecContext(ctx, query, toArgs(keys)...); err != nil {
			return fmt.Errorf("delete keys: %w", err)
		}
		return tx.Commit()
	}, databaseRetryOptions(ctx)...)
}

func databaseRetryOptions(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Attempts(3),
		retry.Delay(100 * time.Millisecond),
		retry.MaxDelay(300 * time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isDatabaseBusy),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
