// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"io"

	"github.com/pkg/errors"

	"github.com/autobrr/blobaudit/internal/buildinfo"
	"github.com/autobrr/blobaudit/internal/config"
	"github.com/autobrr/blobaudit/internal/database"
	"github.com/autobrr/blobaudit/internal/domain"
	"github.com/autobrr/blobaudit/internal/logger"
	"github.com/autobrr/blobaudit/internal/models"
	"github.com/autobrr/blobaudit/internal/services/orphandata"
)

// app holds what every command needs: config, logger and the database.
type app struct {
	cfg       *config.AppConfig
	db        *database.DB
	logCloser io.Closer
}

func openApp(configPath string) (*app, error) {
	cfg, err := config.New(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "could not load config")
	}

	closer, err := logger.Setup(logger.Settings{
		Level:      cfg.Config.LogLevel,
		Path:       cfg.Config.LogPath,
		MaxSize:    cfg.Config.LogMaxSize,
		MaxBackups: cfg.Config.LogMaxBackups,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not set up logger")
	}

	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		_ = closer.Close()
		return nil, errors.Wrap(err, "could not open database")
	}

	return &app{cfg: cfg, db: db, logCloser: closer}, nil
}

func (a *app) Close() error {
	dbErr := a.db.Close()
	_ = a.logCloser.Close()
	return dbErr
}

// version is the configured appVersion, or the build version when unset.
func (a *app) version() string {
	if v := a.cfg.Config.Version; v != "" {
		return v
	}
	return buildinfo.Version
}

func (a *app) scheduler() *orphandata.Scheduler {
	return orphandata.NewScheduler(models.NewKeyValueStore(a.db), a.cfg.Config.AuditInterval())
}

func (a *app) newService(metrics *orphandata.MetricsCollector) (*orphandata.Service, error) {
	collaborators, err := buildCollaborators(a.cfg.Config.Collaborators)
	if err != nil {
		return nil, err
	}

	engineCfg := orphandata.ConfigFromDomain(a.cfg.Config, a.cfg.GetLockPath(),
		orphandata.SQLiteSidecars(a.cfg.GetDatabasePath())...)
	engineCfg.AppVersion = a.version()

	svc, err := orphandata.NewService(engineCfg, orphandata.Deps{
		Snapshots:     a.db,
		State:         models.NewKeyValueStore(a.db),
		Collaborators: collaborators,
		History:       models.NewAuditRunStore(a.db),
		Metrics:       metrics,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not create audit service")
	}
	return svc, nil
}

func buildCollaborators(cfgs []domain.CollaboratorConfig) ([]orphandata.Collaborator, error) {
	if len(cfgs) == 0 {
		return nil, errors.New("no collaborators configured; add at least one [[collaborators]] table")
	}

	out := make([]orphandata.Collaborator, 0, len(cfgs))
	for _, c := range cfgs {
		store, err := models.NewFileReferenceStore(c.Name, c.Table, c.Column, c.BaseDir)
		if err != nil {
			return nil, errors.Wrapf(err, "collaborator %q", c.Name)
		}
		out = append(out, store)
	}
	return out, nil
}
