// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE
	}

	return false
}

func isCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code() == sqlitelib.SQLITE_CONSTRAINT_CHECK
	}

	return false
}

// isDatabaseBusy reports SQLITE_BUSY and SQLITE_LOCKED, including their extended codes.
func isDatabaseBusy(err error) bool {
	if err == nil {
		return false
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		code := sqlErr.Code() & 0xff
		return code == sqlitelib.SQLITE_BUSY || code == sqlitelib.SQLITE_LOCKED
	}

	return strings.Contains(err.Error(), "database is locked")
}
