// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orphandata

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

type MetricsCollector struct {
	mu            sync.Mutex
	auditsByLabel map[[2]string]uint64

	filesDeleted     atomic.Uint64
	bytesReclaimed   atomic.Uint64
	skippedRace      atomic.Uint64
	deletionFailures atomic.Uint64
	danglingLast     atomic.Int64
	lastSuccessUnix  atomic.Int64

	auditsDesc           *prometheus.Desc
	filesDeletedDesc     *prometheus.Desc
	bytesReclaimedDesc   *prometheus.Desc
	skippedRaceDesc      *prometheus.Desc
	deletionFailuresDesc *prometheus.Desc
	danglingDesc         *prometheus.Desc
	lastSuccessDesc      *prometheus.Desc
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		auditsByLabel: make(map[[2]string]uint64),
		auditsDesc: prometheus.NewDesc(
			"blobaudit_audits_total",
			"Number of finished audits by mode and outcome",
			[]string{"mode", "outcome"},
			nil,
		),
		filesDeletedDesc: prometheus.NewDesc(
			"blobaudit_files_deleted_total",
			"Number of orphaned files deleted",
			nil,
			nil,
		),
		bytesReclaimedDesc: prometheus.NewDesc(
			"blobaudit_bytes_reclaimed_total",
			"Bytes freed by deleting orphaned files",
			nil,
			nil,
		),
		skippedRaceDesc: prometheus.NewDesc(
			"blobaudit_race_skipped_total",
			"Number of orphans left in place because they were modified too recently",
			nil,
			nil,
		),
		deletionFailuresDesc: prometheus.NewDesc(
			"blobaudit_deletion_failures_total",
			"Number of orphans that could not be deleted",
			nil,
			nil,
		),
		danglingDesc: prometheus.NewDesc(
			"blobaudit_dangling_references",
			"Dangling references found by the most recent completed audit",
			nil,
			nil,
		),
		lastSuccessDesc: prometheus.NewDesc(
			"blobaudit_last_success_timestamp_seconds",
			"Unix time of the last audit that was not aborted",
			nil,
			nil,
		),
	}
}

// Observe records a finished audit.
func (c *MetricsCollector) Observe(res Result) {
	if c == nil {
		return
	}

	mode := "dry_run"
	if res.Cleanup {
		mode = "cleanup"
	}

	c.mu.Lock()
	c.auditsByLabel[[2]string{mode, string(res.Outcome)}]++
	c.mu.Unlock()

	if res.Outcome == OutcomeAborted {
		return
	}

	c.lastSuccessUnix.Store(res.CompletedAt.Unix())
	if res.Report != nil {
		c.danglingLast.Store(int64(len(res.Report.Dangling)))
	}

	if cr := res.CleanupRun; cr != nil {
		c.skippedRace.Add(uint64(len(cr.SkippedRace)))
		if cr.Committed {
			c.filesDeleted.Add(uint64(cr.DeletedCount))
			c.bytesReclaimed.Add(uint64(cr.DeletedBytes))
			c.deletionFailures.Add(uint64(len(cr.Failures)))
		}
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.auditsDesc
	ch <- c.filesDeletedDesc
	ch <- c.bytesReclaimedDesc
	ch <- c.skippedRaceDesc
	ch <- c.deletionFailuresDesc
	ch <- c.danglingDesc
	ch <- c.lastSuccessDesc
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	for labels, count := range c.auditsByLabel {
		ch <- prometheus.MustNewConstMetric(c.auditsDesc, prometheus.CounterValue, float64(count), labels[0], labels[1])
	}
	c.mu.Unlock()

	ch <- prometheus.MustNewConstMetric(c.filesDeletedDesc, prometheus.CounterValue, float64(c.filesDeleted.Load()))
	ch <- prometheus.MustNewConstMetric(c.bytesReclaimedDesc, prometheus.CounterValue, float64(c.bytesReclaimed.Load()))
	ch <- prometheus.MustNewConstMetric(c.skippedRaceDesc, prometheus.CounterValue, float64(c.skippedRace.Load()))
	ch <- prometheus.MustNewConstMetric(c.deletionFailuresDesc, prometheus.CounterValue, float64(c.deletionFailures.Load()))
	ch <- prometheus.MustNewConstMetric(c.danglingDesc, prometheus.GaugeValue, float64(c.danglingLast.Load()))
	ch <- prometheus.MustNewConstMetric(c.lastSuccessDesc, prometheus.GaugeValue, float64(c.lastSuccessUnix.Load()))
}
