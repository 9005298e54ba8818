// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package orchestrator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the Prometheus counters exposed alongside each batch
// operation's structured summary (§7 surface rules).
type metrics struct {
	once sync.Once

	enrichProcessed prometheus.Counter
	enrichPromoted  prometheus.Counter
	enrichDuplicate prometheus.Counter
	enrichFailed    prometheus.Counter

	downloadSucceeded prometheus.Counter
	downloadFailed    prometheus.Counter
	downloadRequeued  prometheus.Counter

	expandStubsInserted prometheus.Counter
	expandStubsRejected prometheus.Counter
	expandEdgesRecorded prometheus.Counter
}

// orchMetrics is the process-wide singleton, registered once regardless of
// how many Orchestrator values are constructed — mirrors this codebase's
// ingestion-metrics singleton shape.
var orchMetrics metrics

func (m *metrics) init() {
	m.once.Do(func() {
		m.enrichProcessed = prometheus.NewCounter(prometheus.CounterOpts{Name: "biblio_enrich_processed_total", Help: "Raw references processed by enrich-batch"})
		m.enrichPromoted = prometheus.NewCounter(prometheus.CounterOpts{Name: "biblio_enrich_promoted_total", Help: "References promoted to enriched"})
		m.enrichDuplicate = prometheus.NewCounter(prometheus.CounterOpts{Name: "biblio_enrich_duplicate_total", Help: "References rejected as duplicates during promotion"})
		m.enrichFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "biblio_enrich_failed_total", Help: "References that found no enrichment match"})

		m.downloadSucceeded = prometheus.NewCounter(prometheus.CounterOpts{Name: "biblio_download_succeeded_total", Help: "Downloads completed successfully"})
		m.downloadFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "biblio_download_failed_total", Help: "Downloads moved to the failed bucket"})
		m.downloadRequeued = prometheus.NewCounter(prometheus.CounterOpts{Name: "biblio_download_requeued_total", Help: "Downloads requeued after a failed attempt"})

		m.expandStubsInserted = prometheus.NewCounter(prometheus.CounterOpts{Name: "biblio_expand_stubs_inserted_total", Help: "Stub references inserted by reference expansion"})
		m.expandStubsRejected = prometheus.NewCounter(prometheus.CounterOpts{Name: "biblio_expand_stubs_rejected_total", Help: "Stub references rejected as duplicates during expansion"})
		m.expandEdgesRecorded = prometheus.NewCounter(prometheus.CounterOpts{Name: "biblio_expand_edges_recorded_total", Help: "Citation edges recorded during expansion"})

		prometheus.MustRegister(
			m.enrichProcessed, m.enrichPromoted, m.enrichDuplicate, m.enrichFailed,
			m.downloadSucceeded, m.downloadFailed, m.downloadRequeued,
			m.expandStubsInserted, m.expandStubsRejected, m.expandEdgesRecorded,
		)
	})
}
