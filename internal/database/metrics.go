// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	snapshotsTotal    atomic.Uint64
	writeQueriesTotal atomic.Uint64
	writeTxTotal      atomic.Uint64
)

func recordSnapshot() {
	snapshotsTotal.Add(1)
}

func recordWriteQuery() {
	writeQueriesTotal.Add(1)
}

func recordWriteTx() {
	writeTxTotal.Add(1)
}

type MetricsCollector struct {
	snapshotsDesc    *prometheus.Desc
	writeQueriesDesc *prometheus.Desc
	writeTxDesc      *prometheus.Desc
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		snapshotsDesc: prometheus.NewDesc(
			"blobaudit_db_snapshots_total",
			"Number of read snapshots opened for reference collection",
			nil,
			nil,
		),
		writeQueriesDesc: prometheus.NewDesc(
			"blobaudit_db_write_queries_total",
			"Number of statements executed on the dedicated write connection",
			nil,
			nil,
		),
		writeTxDesc: prometheus.NewDesc(
			"blobaudit_db_write_transactions_total",
			"Number of write transactions started",
			nil,
			nil,
		),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.snapshotsDesc
	ch <- c.writeQueriesDesc
	ch <- c.writeTxDesc
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.snapshotsDesc, prometheus.CounterValue, float64(snapshotsTotal.Load()))
	ch <- prometheus.MustNewConstMetric(c.writeQueriesDesc, prometheus.CounterValue, float64(writeQueriesTotal.Load()))
	ch <- prometheus.MustNewConstMetric(c.writeTxDesc, prometheus.CounterValue, float64(writeTxTotal.Load()))
}
