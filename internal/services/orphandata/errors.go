// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphandata

import (
	"errors"
	"fmt"
)

var (
	// ErrReferenceCollectionFailed aborts an audit before scanning. Nothing is deleted.
	ErrReferenceCollectionFailed = errors.New("reference collection failed")

	// ErrScanFailed aborts an audit when any part of a storage root cannot be enumerated.
	ErrScanFailed = errors.New("scan failed")

	// ErrAuditInProgress is returned by TryTrigger while another audit is running.
	ErrAuditInProgress = errors.New("audit already in progress")

	// ErrAuditLocked means another process holds the audit lock file.
	ErrAuditLocked = errors.New("audit lock held by another process")
)

// DeletionFailure records one orphan that could not be removed.
type DeletionFailure struct {
	Path string
	Err  error
}

func (f DeletionFailure) Error() string {
	return fmt.Sprintf("delete %s: %v", f.Path, f.Err)
}

func (f DeletionFailure) Unwrap() error {
	return f.Err
}
