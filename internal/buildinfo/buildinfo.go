// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package buildinfo

import (
	"encoding/json"
	"fmt"
	"runtime"
)

// Set with -ldflags at build time.
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

var UserAgent string

func init() {
	UserAgent = fmt.Sprintf("blobaudit/%s (%s %s)", Version, runtime.GOOS, runtime.GOARCH)
}

func String() string {
	return fmt.Sprintf("Version: %s\nCommit: %s\nBuild date: %s\n", Version, Commit, Date)
}

func JSON() ([]byte, error) {
	return json.Marshal(struct {
		Version string `json:"version"`
		Commit  string `json:"commit"`
		Date    string `json:"date"`
	}{
		Version: Version,
		Commit:  Commit,
		Date:    Date,
	})
}
