package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics holds all Prometheus metrics for the arbitrage pipeline.
type Metrics struct {
	// Graph metrics
	GraphNodes prometheus.Gauge
	GraphEdges prometheus.Gauge

	// Writer metrics
	UpdatesProcessed     prometheus.Counter
	UniqueUpdatesApplied prometheus.Counter
	InvalidIndexUpdates  prometheus.Counter
	InvalidRateUpdates   prometheus.Counter
	BatchLatency         prometheus.Histogram

	// Searcher metrics
	SearchesRun   prometheus.Counter
	CycleProfit   prometheus.Gauge
	SearchLatency prometheus.Histogram

	server *http.Server
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		GraphNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "arbiter_graph_nodes",
				Help: "Current number of nodes (tokens) in the graph",
			},
		),
		GraphEdges: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "arbiter_graph_edges",
				Help: "Current number of edges (pool directions) in the graph",
			},
		),
		UpdatesProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "arbiter_updates_processed_total",
				Help: "Total number of rate updates processed by the writer",
			},
		),
		UniqueUpdatesApplied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "arbiter_unique_updates_applied_total",
				Help: "Total number of validated rate updates applied to the graph",
			},
		),
		InvalidIndexUpdates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "arbiter_invalid_index_updates_total",
				Help: "Total number of updates dropped for an out-of-range edge index",
			},
		),
		InvalidRateUpdates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "arbiter_invalid_rate_updates_total",
				Help: "Total number of updates dropped for a non-positive or non-finite rate",
			},
		),
		BatchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "arbiter_batch_latency_seconds",
				Help:    "Time spent validating and applying one coalesced writer batch",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~200ms
			},
		),
		SearchesRun: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "arbiter_searches_run_total",
				Help: "Total number of cycle finder passes run by the searcher",
			},
		),
		CycleProfit: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "arbiter_cycle_profit",
				Help: "Profit ratio of the most recently found profitable cycle",
			},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "arbiter_search_latency_seconds",
				Help:    "Time to snapshot the graph and run the cycle finder",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
			},
		),
	}

	prometheus.MustRegister(
		m.GraphNodes,
		m.GraphEdges,
		m.UpdatesProcessed,
		m.UniqueUpdatesApplied,
		m.InvalidIndexUpdates,
		m.InvalidRateUpdates,
		m.BatchLatency,
		m.SearchesRun,
		m.CycleProfit,
		m.SearchLatency,
	)

	return m
}

// StartServer starts the HTTP server for Prometheus metrics.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	m.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		log.Info().Int("port", port).Str("path", path).Msg("starting metrics server")
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	return nil
}

// Shutdown gracefully stops the metrics server.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server != nil {
		return m.server.Shutdown(ctx)
	}
	return nil
}

// RecordGraphStats updates the graph node and edge counts.
func (m *Metrics) RecordGraphStats(nodes, edges int) {
	m.GraphNodes.Set(float64(nodes))
	m.GraphEdges.Set(float64(edges))
}

// RecordBatchLatency records the time to apply one writer batch.
func (m *Metrics) RecordBatchLatency(d time.Duration) {
	m.BatchLatency.Observe(d.Seconds())
}

// RecordSearchLatency records the time to run one searcher pass.
func (m *Metrics) RecordSearchLatency(d time.Duration) {
	m.SearchLatency.Observe(d.Seconds())
}

// RecordWriterOutcome folds one writer run's counters into the metrics.
func (m *Metrics) RecordWriterOutcome(processed, uniqueApplied, invalidIndex, invalidRate int) {
	m.UpdatesProcessed.Add(float64(processed))
	m.UniqueUpdatesApplied.Add(float64(uniqueApplied))
	m.InvalidIndexUpdates.Add(float64(invalidIndex))
	m.InvalidRateUpdates.Add(float64(invalidRate))
}

// RecordSearchOutcome folds one searcher run's counters into the metrics,
// recording the most recent cycle's profit when one was found.
func (m *Metrics) RecordSearchOutcome(searchesRun int, cycleProfit float64, foundCycle bool) {
	m.SearchesRun.Add(float64(searchesRun))
	if foundCycle {
		m.CycleProfit.Set(cycleProfit)
	}
}
