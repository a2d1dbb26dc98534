// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package logger configures the global zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Settings controls where and how verbosely logs are written.
type Settings struct {
	Level      string
	Path       string
	MaxSize    int
	MaxBackups int
}

// Setup points the global logger at the console, or at a rotated file when Path is set.
// The returned closer flushes the file writer; it is a no-op for console output.
func Setup(s Settings) (io.Closer, error) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(ParseLevel(s.Level))

	if s.Path == "" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}).
			With().Timestamp().Logger()
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   s.Path,
		MaxSize:    s.MaxSize,
		MaxBackups: s.MaxBackups,
	}

	log.Logger = zerolog.New(rotator).With().Timestamp().Logger()
	return rotator, nil
}

// ParseLevel maps the config strings onto zerolog levels, case-insensitively.
// Empty and unknown values fall back to info.
func ParseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
