// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

type Manager struct {
	registry *prometheus.Registry
}

// NewManager builds a registry with the Go and process collectors plus any
// application collectors, e.g. the audit engine's.
func NewManager(extra ...prometheus.Collector) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	for _, c := range extra {
		if c == nil {
			continue
		}
		registry.MustRegister(c)
	}

	log.Info().Int("collectors", len(extra)).Msg("Metrics manager initialized")

	return &Manager{
		registry: registry,
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}
