// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type MetricsServer struct {
	manager        *Manager
	server         *http.Server
	basicAuthUsers map[string]string
}

// NewMetricsServer serves the manager's registry on /metrics. basicAuthUsers is
// a comma separated list of user:password pairs; empty disables auth.
func NewMetricsServer(manager *Manager, host string, port int, basicAuthUsers string) *MetricsServer {
	users := parseBasicAuthUsers(basicAuthUsers)

	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if len(users) > 0 {
			r.Use(middleware.BasicAuth("metrics", users))
		}
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(manager.GetRegistry(), promhttp.HandlerOpts{}))
	})

	return &MetricsServer{
		manager:        manager,
		basicAuthUsers: users,
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func parseBasicAuthUsers(raw string) map[string]string {
	users := make(map[string]string)
	for entry := range strings.SplitSeq(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		user, pass, ok := strings.Cut(entry, ":")
		if !ok || user == "" {
			log.Warn().Msg("Ignoring malformed metrics basic auth entry")
			continue
		}
		users[user] = pass
	}
	return users
}

// ListenAndServe blocks until the server stops. A graceful stop is not an error.
func (s *MetricsServer) ListenAndServe() error {
	log.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *MetricsServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
