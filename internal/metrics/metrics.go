// Package metrics holds the Prometheus collectors of the aggregator.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

var (
	AdapterRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregator_adapter_requests_total",
		Help: "Upstream quote requests by aggregator and outcome",
	}, []string{"aggregator", "outcome"})

	AdapterLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aggregator_adapter_latency_seconds",
		Help:    "Time to obtain one upstream quote",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"aggregator"})

	Aggregations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregator_requests_total",
		Help: "Aggregation requests by response status",
	}, []string{"status"})

	AggregationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "aggregator_request_latency_seconds",
		Help:    "End-to-end aggregation time",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 100},
	})

	Timeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aggregator_timeouts_total",
		Help: "Aggregations abandoned by the timeout guard",
	})

	SimulationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregator_simulation_failures_total",
		Help: "Simulation calls that errored, by aggregator",
	}, []string{"aggregator"})

	FeedDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aggregator_feed_dropped_total",
		Help: "Feed messages dropped because the send queue was full",
	})
)

func init() {
	prometheus.MustRegister(
		AdapterRequests,
		AdapterLatency,
		Aggregations,
		AggregationLatency,
		Timeouts,
		SimulationFailures,
		FeedDropped,
	)
}
