// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func RunStateCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the persisted cleaning state",
	}

	cmd.AddCommand(runStateShowCommand(configPath), runStateResetCommand(configPath))
	return cmd
}

func runStateShowCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the last cleaning version and date and whether an audit is due",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			scheduler := a.scheduler()
			state, err := scheduler.State(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "could not read cleaning state")
			}

			due, err := scheduler.ShouldRunFullAudit(cmd.Context(), a.version(), false)
			if err != nil {
				return errors.Wrap(err, "could not evaluate schedule")
			}

			if !state.Present {
				cmd.Println("No cleaning recorded yet")
			} else {
				cmd.Printf("Last cleaning version: %s\n", state.LastCleaningVersion)
				if state.LastCleaningDate.IsZero() {
					cmd.Println("Last cleaning date: unknown")
				} else {
					cmd.Printf("Last cleaning date: %s\n", state.LastCleaningDate.Local().Format(time.RFC3339))
				}
			}
			cmd.Printf("Current version: %s\n", a.version())
			cmd.Printf("Audit due: %t\n", due)
			return nil
		},
	}
}

func runStateResetCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the cleaning state so the next scheduled check runs an audit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.scheduler().Reset(cmd.Context()); err != nil {
				return errors.Wrap(err, "could not reset cleaning state")
			}
			cmd.Println("Cleaning state reset")
			return nil
		},
	}
}
