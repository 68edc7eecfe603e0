/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package metrics provides Prometheus metrics for pagedb.

METRIC CATEGORIES:
==================
- Statements: executed, by kind (SELECT, INSERT, CREATE, ...) and status
- Statement Latency: histogram of execution times by kind
- Rows: returned by queries, affected by DML
- Locks: conflicts by mode
- Statement cache: hits and misses
- Storage: table file flushes, number of tables

Every Engine owns its own registry so several engines in one process (tests,
embedded use) never collide on collector registration.

EXAMPLE METRICS:
================

	pagedb_statements_total{kind="SELECT",status="ok"} 12345
	pagedb_statement_duration_seconds_bucket{kind="INSERT",le="0.005"} 1200
	pagedb_lock_conflicts_total{mode="exclusive"} 3
	pagedb_tables 5
*/
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pagedb/internal/logging"
)

const namespace = "pagedb"

// Metrics holds the collectors of one engine.
type Metrics struct {
	registry *prometheus.Registry

	StatementsTotal   *prometheus.CounterVec
	StatementDuration *prometheus.HistogramVec
	RowsReturned      prometheus.Counter
	RowsAffected      prometheus.Counter
	LockConflicts     *prometheus.CounterVec
	CacheHits         prometheus.Counter
	CacheMisses       prometheus.Counter
	TableFlushes      prometheus.Counter
	Tables            prometheus.Gauge
}

// New creates a Metrics instance backed by a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		StatementsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statements_total",
			Help:      "Statements executed, by kind and status",
		}, []string{"kind", "status"}),
		StatementDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "statement_duration_seconds",
			Help:      "Statement execution latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		RowsReturned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_returned_total",
			Help:      "Rows produced by queries",
		}),
		RowsAffected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_affected_total",
			Help:      "Rows inserted, updated or deleted",
		}),
		LockConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_conflicts_total",
			Help:      "Table lock requests rejected because of a conflicting holder",
		}, []string{"mode"}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statement_cache_hits_total",
			Help:      "Parsed statement cache hits",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statement_cache_misses_total",
			Help:      "Parsed statement cache misses",
		}),
		TableFlushes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_flushes_total",
			Help:      "Table files written to disk",
		}),
		Tables: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tables",
			Help:      "Number of tables across all databases",
		}),
	}
}

// Registry returns the registry holding this instance's collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordStatement records one finished statement.
func (m *Metrics) RecordStatement(kind string, latency time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StatementsTotal.WithLabelValues(kind, status).Inc()
	m.StatementDuration.WithLabelValues(kind).Observe(latency.Seconds())
}

// RecordLockConflict records a rejected lock request.
func (m *Metrics) RecordLockConflict(mode string) {
	m.LockConflicts.WithLabelValues(mode).Inc()
}

// Handler returns an HTTP handler serving this instance's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server provides an HTTP server for Prometheus metrics.
type Server struct {
	addr    string
	metrics *Metrics
	mux     *http.ServeMux
	server  *http.Server
	logger  *logging.Logger
}

// NewServer creates a new metrics server listening on addr. The metrics are
// served on /metrics; other endpoints can be added with Handle.
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{
		addr:    addr,
		metrics: m,
		mux:     mux,
		logger:  logging.NewLogger("metrics"),
	}
}

// Handle registers an additional endpoint. Call it before Start.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// Start starts the metrics HTTP server. An empty address disables it.
func (s *Server) Start() error {
	if s.addr == "" {
		s.logger.Debug("Metrics server disabled")
		return nil
	}

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("Starting metrics server", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server error", "error", err)
		}
	}()

	return nil
}

// Stop stops the metrics HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("Stopping metrics server")
	return s.server.Shutdown(ctx)
}
