// Package metrics exposes Prometheus instruments for the rate service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedClients is the number of live websocket connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fxstream_connected_clients",
		Help: "Number of live websocket connections",
	})

	// ActivePairs is the number of distinct subscribed currency pairs.
	ActivePairs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fxstream_active_pairs",
		Help: "Number of distinct currency pairs with at least one subscriber",
	})

	// UpstreamFetchesTotal counts upstream API calls by operation and outcome.
	UpstreamFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fxstream_upstream_fetches_total",
		Help: "Upstream rate provider calls",
	}, []string{"operation", "outcome"})

	// BroadcastTicksTotal counts completed broadcast cycles.
	BroadcastTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fxstream_broadcast_ticks_total",
		Help: "Completed broadcast scheduler cycles",
	})

	// RateUpdatesDeliveredTotal counts rate-update events delivered to clients.
	RateUpdatesDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fxstream_rate_updates_delivered_total",
		Help: "rate-update events delivered to subscribed connections",
	})

	// BroadcastTickDuration observes how long a broadcast cycle takes.
	BroadcastTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fxstream_broadcast_tick_duration_seconds",
		Help:    "Duration of a full broadcast cycle in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})
)

// RecordFetch records the outcome of one upstream call.
func RecordFetch(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	UpstreamFetchesTotal.WithLabelValues(operation, outcome).Inc()
}
