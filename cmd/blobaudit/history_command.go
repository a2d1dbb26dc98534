// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/autobrr/blobaudit/internal/models"
)

func RunHistoryCommand(configPath *string) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent audits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := models.NewAuditRunStore(a.db).ListRecent(cmd.Context(), limit)
			if err != nil {
				return errors.Wrap(err, "could not list audits")
			}

			if asJSON {
				if runs == nil {
					runs = []*models.AuditRun{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			if len(runs) == 0 {
				cmd.Println("No audits recorded")
				return nil
			}

			for _, run := range runs {
				cmd.Printf("%s  %-8s %-15s scanned=%d orphans=%d deleted=%d reclaimed=%d skipped=%d failed=%d dangling=%d by=%s\n",
					run.StartedAt.Local().Format(time.DateTime),
					run.Mode,
					run.Outcome,
					run.FilesScanned,
					run.OrphansFound,
					run.FilesDeleted,
					run.BytesReclaimed,
					run.SkippedRace,
					run.FailedDeletes,
					run.DanglingFound,
					run.TriggeredBy,
				)
				if run.ErrorMessage != "" {
					cmd.Printf("    error: %s\n", run.ErrorMessage)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of audits to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}
