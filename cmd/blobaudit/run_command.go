// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/blobaudit/internal/database"
	"github.com/autobrr/blobaudit/internal/metrics"
	"github.com/autobrr/blobaudit/internal/services/orphandata"
)

// RunDaemonCommand keeps the scheduler running until the process is signalled.
func RunDaemonCommand(configPath *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the audit scheduler in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			var engineMetrics *orphandata.MetricsCollector
			if a.cfg.Config.MetricsEnabled {
				engineMetrics = orphandata.NewMetricsCollector()
				server := metrics.NewMetricsServer(
					metrics.NewManager(engineMetrics, database.NewMetricsCollector()),
					a.cfg.Config.MetricsHost,
					a.cfg.Config.MetricsPort,
					a.cfg.Config.MetricsBasicAuthUsers,
				)
				go func() {
					if err := server.ListenAndServe(); err != nil {
						log.Error().Err(err).Msg("Metrics server stopped")
					}
				}()
				defer func() {
					if err := server.Stop(); err != nil {
						log.Warn().Err(err).Msg("Failed to stop metrics server")
					}
				}()
			}

			svc, err := a.newService(engineMetrics)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			if force {
				if _, err := svc.RunIfDue(ctx, true); err != nil {
					return errors.Wrap(err, "could not start forced audit")
				}
			}

			svc.Start(ctx)
			log.Info().
				Str("version", a.version()).
				Strs("storageRoots", a.cfg.Config.StorageRoots).
				Dur("auditInterval", a.cfg.Config.AuditInterval()).
				Msg("blobaudit scheduler started")

			<-ctx.Done()
			log.Info().Msg("Shutting down, waiting for running audit to finish")
			svc.Wait()
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Run a cleanup audit at startup regardless of the schedule")

	return cmd
}
