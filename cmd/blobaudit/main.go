// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/autobrr/blobaudit/internal/buildinfo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "blobaudit",
		Short:        "Find and remove blob files no database record references",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file or config directory")

	cmd.AddCommand(
		RunAuditCommand(&configPath),
		RunDaemonCommand(&configPath),
		RunStateCommand(&configPath),
		RunHistoryCommand(&configPath),
		RunVersionCommand(),
	)
	return cmd
}

func RunVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Print(buildinfo.String())
		},
	}
}
