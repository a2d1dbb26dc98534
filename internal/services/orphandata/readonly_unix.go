// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build !windows

package orphandata

import (
	"errors"
	"syscall"
)

func isReadOnlyFSError(err error) bool {
	return errors.Is(err, syscall.EROFS)
}
