// Package telemetry wires up edgecore's structured logger and Prometheus
// metrics registry, the two ambient concerns every component reaches into.
package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// NewLogger builds the process-wide zerolog.Logger. level is one of
// zerolog's named levels ("debug", "info", "warn", "error"); an unrecognized
// value falls back to info rather than failing startup over a logging typo.
// pretty selects the human-readable console writer (local development);
// otherwise output is newline-delimited JSON suited to log aggregation.
func NewLogger(levelName string, pretty bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writer io.Writer = os.Stdout
	if pretty {
		writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// Registry holds every Prometheus collector edgecore's components publish
// to, constructed once at startup and threaded through the Engine.
type Registry struct {
	Registry *prometheus.Registry

	OpportunitiesFound    *prometheus.CounterVec
	OpportunitiesRejected *prometheus.CounterVec
	BundlesSubmitted      *prometheus.CounterVec
	BundlesIncluded       *prometheus.CounterVec
	RiskEventsTotal       *prometheus.CounterVec
	RouteSearchDuration   prometheus.Histogram
	DecodeLatency         prometheus.Histogram
	MempoolQueueDepth     *prometheus.GaugeVec
	ChainHeadBlock        *prometheus.GaugeVec
}

// NewRegistry constructs and registers every collector.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		Registry: reg,
		OpportunitiesFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgecore",
			Name:      "opportunities_found_total",
			Help:      "Opportunities surfaced by Opportunity Core, by strategy and chain.",
		}, []string{"strategy", "chain"}),
		OpportunitiesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgecore",
			Name:      "opportunities_rejected_total",
			Help:      "Opportunities rejected, by strategy and reason.",
		}, []string{"strategy", "reason"}),
		BundlesSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgecore",
			Name:      "bundles_submitted_total",
			Help:      "Bundles submitted, by chain and relay.",
		}, []string{"chain", "relay"}),
		BundlesIncluded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgecore",
			Name:      "bundles_included_total",
			Help:      "Bundles landed on chain, by chain and relay.",
		}, []string{"chain", "relay"}),
		RiskEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edgecore",
			Name:      "risk_events_total",
			Help:      "Risk Governor events emitted, by severity and scope.",
		}, []string{"severity", "scope"}),
		RouteSearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "edgecore",
			Name:      "route_search_duration_seconds",
			Help:      "Wall-clock time of on-demand route search.",
			Buckets:   prometheus.DefBuckets,
		}),
		DecodeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "edgecore",
			Name:      "decode_latency_seconds",
			Help:      "Transaction Decoder per-transaction latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		MempoolQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "edgecore",
			Name:      "mempool_queue_depth",
			Help:      "Current bounded-channel depth, by chain.",
		}, []string{"chain"}),
		ChainHeadBlock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "edgecore",
			Name:      "chain_head_block",
			Help:      "Last observed chain head, by chain.",
		}, []string{"chain"}),
	}

	reg.MustRegister(
		r.OpportunitiesFound,
		r.OpportunitiesRejected,
		r.BundlesSubmitted,
		r.BundlesIncluded,
		r.RiskEventsTotal,
		r.RouteSearchDuration,
		r.DecodeLatency,
		r.MempoolQueueDepth,
		r.ChainHeadBlock,
	)
	return r
}
