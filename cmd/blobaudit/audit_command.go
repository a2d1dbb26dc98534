// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/autobrr/blobaudit/internal/services/orphandata"
)

func RunAuditCommand(configPath *string) *cobra.Command {
	var (
		cleanup bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run one audit now. Dry run unless --cleanup is set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.newService(nil)
			if err != nil {
				return err
			}

			task, err := svc.TryTrigger(orphandata.TriggerOptions{Cleanup: cleanup, TriggeredBy: "cli"})
			if err != nil {
				return errors.Wrap(err, "could not start audit")
			}

			res, err := task.Wait(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "audit interrupted")
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(newAuditOutput(res)); err != nil {
					return errors.Wrap(err, "could not encode result")
				}
			} else {
				printAuditResult(cmd, res)
			}

			if res.Outcome == orphandata.OutcomeAborted {
				return errors.Wrap(res.Err, "audit aborted")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "Delete orphaned files instead of only reporting them")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}

type fileOutput struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

type failureOutput struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type auditOutput struct {
	AuditID     string          `json:"auditId"`
	Mode        string          `json:"mode"`
	Outcome     string          `json:"outcome"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt time.Time       `json:"completedAt"`
	Scanned     int             `json:"scanned"`
	References  int             `json:"references"`
	OrphanBytes int64           `json:"orphanBytes"`
	Orphaned    []fileOutput    `json:"orphaned"`
	Dangling    []string        `json:"dangling"`
	Deleted     []fileOutput    `json:"deleted"`
	Committed   bool            `json:"committed"`
	Reclaimed   int64           `json:"bytesReclaimed"`
	SkippedRace []fileOutput    `json:"skippedRace"`
	Failures    []failureOutput `json:"failures"`
	StateMoved  bool            `json:"stateAdvanced"`
}

func newAuditOutput(res orphandata.Result) auditOutput {
	out := auditOutput{
		AuditID:     res.AuditID,
		Mode:        modeName(res.Cleanup),
		Outcome:     string(res.Outcome),
		StartedAt:   res.StartedAt,
		CompletedAt: res.CompletedAt,
		Orphaned:    []fileOutput{},
		Dangling:    []string{},
		Deleted:     []fileOutput{},
		SkippedRace: []fileOutput{},
		Failures:    []failureOutput{},
		StateMoved:  res.StateAdvanced,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}

	if r := res.Report; r != nil {
		out.Scanned = r.ScannedCount
		out.References = r.ReferenceCount
		out.OrphanBytes = r.OrphanBytes
		out.Orphaned = toFileOutputs(r.Orphaned)
		for _, p := range r.Dangling {
			out.Dangling = append(out.Dangling, p.String())
		}
	}

	if c := res.CleanupRun; c != nil {
		out.Committed = c.Committed
		out.Deleted = toFileOutputs(c.Deleted)
		out.Reclaimed = c.DeletedBytes
		out.SkippedRace = toFileOutputs(c.SkippedRace)
		for _, f := range c.Failures {
			out.Failures = append(out.Failures, failureOutput{Path: f.Path, Error: f.Err.Error()})
		}
	}
	return out
}

func toFileOutputs(files []orphandata.DiskFile) []fileOutput {
	out := make([]fileOutput, len(files))
	for i, f := range files {
		out[i] = fileOutput{Path: f.OSPath, Size: f.Size, ModifiedAt: f.ModifiedAt}
	}
	return out
}

func modeName(cleanup bool) string {
	if cleanup {
		return "cleanup"
	}
	return "dry run"
}

func printAuditResult(cmd *cobra.Command, res orphandata.Result) {
	cmd.Printf("Audit %s (%s): %s\n", res.AuditID, modeName(res.Cleanup), res.Outcome)
	if res.Err != nil {
		cmd.Printf("Error: %v\n", res.Err)
	}

	r := res.Report
	if r == nil {
		return
	}

	cmd.Printf("Scanned files: %d\n", r.ScannedCount)
	cmd.Printf("Live references: %d\n", r.ReferenceCount)
	cmd.Printf("Orphaned: %d (%d bytes)\n", len(r.Orphaned), r.OrphanBytes)
	cmd.Printf("Dangling references: %d\n", len(r.Dangling))
	for _, p := range r.Dangling {
		cmd.Printf("  - %s\n", p)
	}

	c := res.CleanupRun
	if c == nil {
		return
	}

	if c.Committed {
		cmd.Printf("Deleted: %d (%d bytes)\n", c.DeletedCount, c.DeletedBytes)
	} else {
		cmd.Printf("Would delete: %d (%d bytes)\n", c.DeletedCount, c.DeletedBytes)
	}
	for _, f := range c.Deleted {
		cmd.Printf("  - %s\n", f.OSPath)
	}

	cmd.Printf("Skipped (recently modified): %d\n", len(c.SkippedRace))
	if len(c.Failures) > 0 {
		cmd.Printf("Failed deletions: %d\n", len(c.Failures))
		for _, f := range c.Failures {
			cmd.Printf("  - %s: %v\n", f.Path, f.Err)
		}
	}
}
